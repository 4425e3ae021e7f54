package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetapi/internal/client"
	"assetapi/internal/service"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandStructure(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"upload", "list", "ls", "get", "delete", "rm"} {
		t.Run(name, func(t *testing.T) {
			cmd, _, err := root.Find([]string{name})
			require.NoError(t, err)
			assert.NotEmpty(t, cmd.Short)
		})
	}
}

func TestServerFlagDefaults(t *testing.T) {
	t.Run("built-in default", func(t *testing.T) {
		t.Setenv(serverEnv, "")
		f := NewRootCommand().PersistentFlags().Lookup("server")
		assert.Equal(t, client.DefaultServer, f.DefValue)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(serverEnv, "http://assets.internal:9000")
		f := NewRootCommand().PersistentFlags().Lookup("server")
		assert.Equal(t, "http://assets.internal:9000", f.DefValue)
	})
}

func TestUploadCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Len(t, r.MultipartForm.File["files"], 1)
		json.NewEncoder(w).Encode(service.Manifest{Success: true, Message: "1 files uploaded"})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "logo.svg")
	require.NoError(t, os.WriteFile(path, []byte("<svg/>"), 0o644))

	out, err := run(t, "--server", srv.URL, "upload", path)
	require.NoError(t, err)

	var m service.Manifest
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.True(t, m.Success)
	assert.Equal(t, "1 files uploaded", m.Message)
}

func TestUploadCommandRequiresFiles(t *testing.T) {
	_, err := run(t, "upload")
	assert.Error(t, err)
}

func TestListCommand(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`{"data":[],"total":0}`))
	}))
	defer srv.Close()

	out, err := run(t, "--server", srv.URL, "list", "--kind", "image", "--limit", "20")
	require.NoError(t, err)
	assert.Equal(t, "kind=image&limit=20", query)
	assert.Contains(t, out, `"total": 0`)
}

func TestDeleteCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/assets/missing" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"request_id":"r","code":"NOT_FOUND","error":"asset not found"}`))
			return
		}
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	out, err := run(t, "--server", srv.URL, "delete", "1700000000000-abc")
	require.NoError(t, err)
	assert.Equal(t, "deleted 1700000000000-abc\n", out)

	_, err = run(t, "--server", srv.URL, "delete", "missing")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
}
