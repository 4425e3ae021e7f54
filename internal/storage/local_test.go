package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetapi/internal/config"
)

func newTestLocal(t *testing.T) (Storage, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	st, err := NewLocal(config.UploadConfig{Dir: dir, PublicPrefix: "/uploads/"})
	require.NoError(t, err)
	return st, dir
}

type failingReader struct{ n int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.n > 0 {
		n := copy(p, bytes.Repeat([]byte("x"), r.n))
		r.n = 0
		return n, nil
	}
	return 0, errors.New("connection reset")
}

func TestNewLocalCreatesDirectories(t *testing.T) {
	_, dir := newTestLocal(t)

	st, err := os.Stat(filepath.Join(dir, ThumbnailDir))
	require.NoError(t, err)
	assert.True(t, st.IsDir())

	// idempotent
	_, err = NewLocal(config.UploadConfig{Dir: dir})
	assert.NoError(t, err)

	_, err = NewLocal(config.UploadConfig{})
	assert.Error(t, err)
}

func TestLocalPutGetDelete(t *testing.T) {
	st, dir := newTestLocal(t)
	ctx := context.Background()
	body := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 1 1"></svg>`)

	info, err := st.Put(ctx, "icon_1_abc.svg", bytes.NewReader(body), PutObjectOptions{Size: int64(len(body)), ContentType: "image/svg+xml"})
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), info.Size)
	assert.Equal(t, filepath.Join(dir, "icon_1_abc.svg"), info.Location)

	rc, got, err := st.Get(ctx, "icon_1_abc.svg")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, body, data)
	assert.True(t, strings.HasPrefix(got.ContentType, "image/svg+xml"), got.ContentType)
	assert.Equal(t, int64(len(body)), got.Size)

	require.NoError(t, st.Delete(ctx, "icon_1_abc.svg"))
	_, _, err = st.Get(ctx, "icon_1_abc.svg")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting again is not an error
	assert.NoError(t, st.Delete(ctx, "icon_1_abc.svg"))
}

func TestLocalPutRefusesOverwrite(t *testing.T) {
	st, dir := newTestLocal(t)
	ctx := context.Background()

	_, err := st.Put(ctx, "a.png", strings.NewReader("first"), PutObjectOptions{Size: 5})
	require.NoError(t, err)

	_, err = st.Put(ctx, "a.png", strings.NewReader("second"), PutObjectOptions{Size: 6})
	assert.ErrorIs(t, err, ErrObjectExists)

	data, err := os.ReadFile(filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestLocalPutRemovesPartialFile(t *testing.T) {
	st, dir := newTestLocal(t)

	_, err := st.Put(context.Background(), "broken.bin", &failingReader{n: 16}, PutObjectOptions{Size: -1})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "broken.bin"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLocalPutThumbnailKey(t *testing.T) {
	st, dir := newTestLocal(t)

	_, err := st.Put(context.Background(), ThumbnailDir+"/hero.jpg", strings.NewReader("jpeg"), PutObjectOptions{Size: 4})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, ThumbnailDir, "hero.jpg"))
	assert.NoError(t, err)
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	st, _ := newTestLocal(t)
	ctx := context.Background()

	for _, key := range []string{"", "..", "../outside.txt", "thumbnails/../../x", "a\x00b"} {
		t.Run(key, func(t *testing.T) {
			_, err := st.Put(ctx, key, strings.NewReader("x"), PutObjectOptions{Size: 1})
			assert.ErrorIs(t, err, ErrInvalidKey)

			_, _, err = st.Get(ctx, key)
			assert.ErrorIs(t, err, ErrInvalidKey)

			assert.ErrorIs(t, st.Delete(ctx, key), ErrInvalidKey)
		})
	}
}

func TestLocalGetDirectoryIsNotFound(t *testing.T) {
	st, _ := newTestLocal(t)
	_, _, err := st.Get(context.Background(), ThumbnailDir)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalPutCancelledContext(t *testing.T) {
	st, _ := newTestLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.Put(ctx, "x.json", strings.NewReader("{}"), PutObjectOptions{Size: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalPresignGet(t *testing.T) {
	st, _ := newTestLocal(t)

	u, err := st.PresignGet(context.Background(), "thumbnails/hero.jpg", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/thumbnails/hero.jpg", u)

	_, err = st.PresignGet(context.Background(), "../x", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestObjectKey(t *testing.T) {
	k, err := objectKey("/thumbnails/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "thumbnails/a.jpg", k)

	_, err = objectKey("")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = objectKey("a/../b")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
