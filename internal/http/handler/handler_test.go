package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"assetapi/internal/http/middleware"
	"assetapi/internal/ingest"
	"assetapi/internal/logging"
	"assetapi/internal/model"
	"assetapi/internal/service"
	serviceMocks "assetapi/internal/service/mocks"
	"assetapi/internal/storage"
)

const testID = "1700000000000-abc123xyz"

type filePart struct {
	name        string
	contentType string
	data        []byte
}

// multipartBody builds a form whose file parts carry their own Content-Type.
func multipartBody(t *testing.T, parts []filePart, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, p.name))
		h.Set("Content-Type", p.contentType)
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(p.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func newApp(cfg ...fiber.Config) *fiber.App {
	c := fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())}
	if len(cfg) > 0 {
		c = cfg[0]
		c.ErrorHandler = ErrorHandler(logging.Discard())
	}
	app := fiber.New(c)
	app.Use(middleware.RequestID())
	return app
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := newApp()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := newApp()
	app.Get("/healthz", LivenessProbe())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadAssets(t *testing.T) {
	limits := UploadLimits{MaxFileSize: 64, MaxFiles: 3}
	svg := []byte(`<svg viewBox="0 0 64 48"></svg>`)

	t.Run("success", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockAssetService)
		app := newApp()
		app.Post("/api/upload", UploadAssets(mockSvc, limits))

		body, ct := multipartBody(t, []filePart{
			{name: "logo.svg", contentType: "image/svg+xml", data: svg},
			{name: "anim.json", contentType: "application/json", data: []byte(`{"v":5}`)},
		}, map[string]string{"metadata_1": `{"name":"anim.json"}`})

		manifest := &service.Manifest{
			Success: true,
			Message: "2 files uploaded",
			Files: []model.Asset{
				{ID: testID, OriginalName: "logo.svg", Size: int64(len(svg))},
				{ID: "1700000000000-zzz", OriginalName: "anim.json", Size: 7},
			},
		}
		mockSvc.On("Ingest", mock.Anything, mock.MatchedBy(func(files []service.UploadFile) bool {
			return len(files) == 2 &&
				files[0].OriginalName == "logo.svg" &&
				files[0].ContentType == "image/svg+xml" &&
				bytes.Equal(files[0].Data, svg) &&
				len(files[0].ClientMetadata) == 0 &&
				string(files[1].ClientMetadata) == `{"name":"anim.json"}`
		})).Return(manifest, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var got service.Manifest
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.True(t, got.Success)
		assert.Equal(t, "2 files uploaded", got.Message)
		require.Len(t, got.Files, 2)
		assert.Equal(t, int64(len(svg)), got.Files[0].Size)
		mockSvc.AssertExpectations(t)
	})

	rejected := []struct {
		name       string
		parts      []filePart
		noBody     bool
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "no files",
			parts:      nil,
			wantStatus: http.StatusBadRequest,
			wantCode:   "NO_FILES",
			wantMsg:    "No files uploaded",
		},
		{
			name:       "not multipart",
			noBody:     true,
			wantStatus: http.StatusBadRequest,
			wantCode:   "NO_FILES",
			wantMsg:    "No files uploaded",
		},
		{
			name: "too many files",
			parts: []filePart{
				{name: "a.svg", contentType: "image/svg+xml", data: svg},
				{name: "b.svg", contentType: "image/svg+xml", data: svg},
				{name: "c.svg", contentType: "image/svg+xml", data: svg},
				{name: "d.svg", contentType: "image/svg+xml", data: svg},
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "TOO_MANY_FILES",
			wantMsg:    "Too many files",
		},
		{
			name: "disallowed type",
			parts: []filePart{
				{name: "logo.svg", contentType: "image/svg+xml", data: svg},
				{name: "notes.txt", contentType: "text/plain", data: []byte("hi")},
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_FILE_TYPE",
			wantMsg:    "Invalid file type",
		},
		{
			name: "oversized file",
			parts: []filePart{
				{name: "big.bin", contentType: "application/octet-stream", data: bytes.Repeat([]byte{1}, 65)},
			},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE_TOO_LARGE",
			wantMsg:    "File too large",
		},
		{
			name: "oversized wins over type",
			parts: []filePart{
				{name: "notes.txt", contentType: "text/plain", data: []byte("hi")},
				{name: "big.bin", contentType: "application/octet-stream", data: bytes.Repeat([]byte{1}, 65)},
			},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE_TOO_LARGE",
			wantMsg:    "File too large",
		},
	}

	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(serviceMocks.MockAssetService)
			app := newApp()
			app.Post("/api/upload", UploadAssets(mockSvc, limits))

			var req *http.Request
			if tt.noBody {
				req = httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{}`))
				req.Header.Set("Content-Type", "application/json")
			} else {
				body, ct := multipartBody(t, tt.parts, nil)
				req = httptest.NewRequest(http.MethodPost, "/api/upload", body)
				req.Header.Set("Content-Type", ct)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			e := decodeError(t, resp)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantMsg, e.Error)
			assert.NotEmpty(t, e.RequestID)

			// Rejected before extraction or storage.
			mockSvc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
		})
	}

	serviceErrors := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "sniff mismatch", err: fmt.Errorf("file 0 (a.png): %w", ingest.ErrInvalidFileType), wantStatus: 400, wantMsg: "Invalid file type"},
		{name: "too large after read", err: ingest.ErrFileTooLarge, wantStatus: 413, wantMsg: "File too large"},
		{name: "storage failure", err: errors.New("disk full"), wantStatus: 500, wantMsg: "Internal server error"},
	}

	for _, tt := range serviceErrors {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(serviceMocks.MockAssetService)
			app := newApp()
			app.Post("/api/upload", UploadAssets(mockSvc, limits))

			mockSvc.On("Ingest", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			body, ct := multipartBody(t, []filePart{{name: "a.png", contentType: "image/png", data: []byte("x")}}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
			req.Header.Set("Content-Type", ct)

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			e := decodeError(t, resp)
			assert.Equal(t, tt.wantMsg, e.Error)
			assert.NotContains(t, e.Error, "disk full")
		})
	}
}

// The body limit is enforced while fasthttp reads the request, before routing, so
// this runs against a real listener.
func TestUploadAssetsBodyLimit(t *testing.T) {
	mockSvc := new(serviceMocks.MockAssetService)
	app := newApp(fiber.Config{BodyLimit: 1024, DisableStartupMessage: true})
	app.Post("/api/upload", UploadAssets(mockSvc, UploadLimits{MaxFileSize: 4096, MaxFiles: 1}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	t.Cleanup(func() { _ = app.Shutdown() })

	body, ct := multipartBody(t, []filePart{{name: "big.bin", contentType: "application/octet-stream", data: make([]byte, 2048)}}, nil)
	resp, err := http.Post("http://"+ln.Addr().String()+"/api/upload", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "File too large", decodeError(t, resp).Error)
	mockSvc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
}

func TestUploadMethodNotAllowed(t *testing.T) {
	mockSvc := new(serviceMocks.MockAssetService)
	app := newApp()
	RegisterRoutes(app, Deps{Assets: mockSvc, PublicPrefix: "/uploads"})

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(method, "/api/upload", nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
			assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
			assert.Equal(t, "Method not allowed", decodeError(t, resp).Error)
		})
	}
}

func TestListAssets(t *testing.T) {
	mockSvc := new(serviceMocks.MockAssetService)
	app := newApp()
	app.Get("/api/assets", ListAssets(mockSvc))

	t.Run("success", func(t *testing.T) {
		expected := &service.AssetListResult{
			Items: []model.Asset{{ID: testID, Filename: "logo_1_abc123.svg", Kind: model.KindVector}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, 20, 40, "vector").Return(expected, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/assets?limit=20&offset=40&kind=vector", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Data  []model.Asset `json:"data"`
			Total int           `json:"total"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Len(t, result.Data, 1)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("defaults", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 10, 0, "").Return(&service.AssetListResult{Items: []model.Asset{}}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/assets", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/assets?limit=abc", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_LIMIT", decodeError(t, resp).Code)
	})

	t.Run("invalid offset", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/assets?offset=x", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_OFFSET", decodeError(t, resp).Code)
	})

	t.Run("invalid kind", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 10, 0, "video").Return(nil, service.ErrInvalidKind).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/assets?kind=video", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_KIND", decodeError(t, resp).Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 10, 0, "").Return(nil, errors.New("service error")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/assets", nil))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "INTERNAL_ERROR", decodeError(t, resp).Code)
	})
}

func TestGetAsset(t *testing.T) {
	mockSvc := new(serviceMocks.MockAssetService)
	app := newApp()
	app.Get("/api/assets/:id", GetAsset(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, testID).Return(&model.Asset{ID: testID, Filename: "logo.svg"}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/assets/"+testID, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.Asset
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, testID, result.ID)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, "1700000000000-missing").Return(nil, service.ErrNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/assets/1700000000000-missing", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/assets/NOT-AN-ID", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Code)
	})
}

func TestDownloadAsset(t *testing.T) {
	mockSvc := new(serviceMocks.MockAssetService)
	app := newApp()
	app.Get("/api/assets/:id/download", DownloadAsset(mockSvc))

	mockSvc.On("DownloadURL", mock.Anything, testID).Return("/uploads/logo_1_abc123.svg", nil).Once()
	mockSvc.On("DownloadURL", mock.Anything, "1700000000000-gone").Return("", service.ErrNotFound).Once()

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/assets/"+testID+"/download", nil))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/uploads/logo_1_abc123.svg", resp.Header.Get("Location"))

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/api/assets/1700000000000-gone/download", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteAsset(t *testing.T) {
	mockSvc := new(serviceMocks.MockAssetService)
	app := newApp()
	app.Delete("/api/assets/:id", DeleteAsset(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, testID).Return(nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/api/assets/"+testID, nil))
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, testID).Return(service.ErrNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/api/assets/"+testID, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("storage error", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, testID).Return(errors.New("delete storage: denied")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/api/assets/"+testID, nil))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	mockSvc.AssertExpectations(t)
}

func TestServeFile(t *testing.T) {
	mockSvc := new(serviceMocks.MockAssetService)
	app := newApp()
	app.Get("/uploads/*", ServeFile(mockSvc))

	content := `<svg viewBox="0 0 1 1"></svg>`
	mockSvc.On("Open", mock.Anything, "thumbnails/logo.jpg").
		Return(io.NopCloser(strings.NewReader(content)), storage.ObjectInfo{ContentType: "image/svg+xml", Size: int64(len(content))}, nil).Once()
	mockSvc.On("Open", mock.Anything, "gone.png").Return(nil, storage.ObjectInfo{}, service.ErrNotFound).Once()
	mockSvc.On("Open", mock.Anything, "bad..key").Return(nil, storage.ObjectInfo{}, storage.ErrInvalidKey).Once()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/uploads/thumbnails/logo.jpg", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Cache-Control"), "immutable")
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, content, string(data))

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/uploads/gone.png", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/uploads/bad..key", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestErrorHandler(t *testing.T) {
	app := newApp()
	RegisterRoutes(app, Deps{Assets: new(serviceMocks.MockAssetService)})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	e := decodeError(t, resp)
	assert.Equal(t, "NOT_FOUND", e.Code)
	assert.Equal(t, resp.Header.Get(middleware.RequestIDHeader), e.RequestID)
}

func TestErrorHandlerMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"body too large", fiber.ErrRequestEntityTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", msgFileTooLarge},
		{"method not allowed", fiber.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", msgMethodNotAllowed},
		{"unavailable", fiber.ErrServiceUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "service unavailable"},
		{"unhandled", errors.New("pq: connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR", msgInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp()
			app.Get("/boom", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			e := decodeError(t, resp)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantMsg, e.Error)
		})
	}
}
