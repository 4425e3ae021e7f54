// Package client is an HTTP client for the asset API.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"assetapi/internal/ingest"
	"assetapi/internal/model"
	"assetapi/internal/service"
)

const DefaultServer = "http://localhost:8080"

// ErrNoFiles is returned by Upload when called without paths.
var ErrNoFiles = errors.New("no files to upload")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d %s: %s (request %s)", e.Status, e.Code, e.Message, e.RequestID)
}

// Client talks to one server. Requests carry the caller's trace context.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultServer
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// FileMetadata is sent as metadata_<index> next to each file part.
type FileMetadata struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
	LastModified int64  `json:"lastModified"`
}

// Upload sends every file in one multipart request and returns the manifest.
func (c *Client) Upload(ctx context.Context, paths []string) (*service.Manifest, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for i, p := range paths {
		if err := writeFilePart(w, i, p); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var m service.Manifest
	if err := c.do(req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func writeFilePart(w *multipart.Writer, index int, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	name := filepath.Base(path)
	ct := DeclaredType(name, data)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, name))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}

	md, err := json.Marshal(FileMetadata{
		Name:         name,
		Size:         int64(len(data)),
		Type:         ct,
		LastModified: st.ModTime().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return w.WriteField("metadata_"+strconv.Itoa(index), string(md))
}

var extensionTypes = map[string]string{
	".svg":   ingest.MIMESVG,
	".png":   ingest.MIMEPNG,
	".jpg":   ingest.MIMEJPEG,
	".jpeg":  ingest.MIMEJPEG,
	".webp":  ingest.MIMEWebP,
	".json":  ingest.MIMEJSON,
	".gltf":  ingest.MIMEGLTFJSON,
	".glb":   ingest.MIMEGLTFBinary,
	".obj":   ingest.MIMEOctetStream,
	".fbx":   ingest.MIMEOctetStream,
	".stl":   ingest.MIMEOctetStream,
	".3ds":   ingest.MIMEOctetStream,
	".dae":   ingest.MIMEOctetStream,
	".ply":   ingest.MIMEOctetStream,
	".usdz":  ingest.MIMEOctetStream,
	".blend": ingest.MIMEOctetStream,
}

// DeclaredType is the Content-Type sent for a file part: the extension's type when
// known, otherwise the sniffed type, and application/octet-stream when the sniffed
// type is not accepted by the server.
func DeclaredType(name string, data []byte) string {
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	t := ingest.NormalizeMIME(mimetype.Detect(data).String())
	if !ingest.IsAllowed(t) {
		return ingest.MIMEOctetStream
	}
	return t
}

// List returns one page of the catalog. An empty kind lists every kind.
func (c *Client) List(ctx context.Context, kind string, limit, offset int) (*service.AssetListResult, error) {
	q := url.Values{}
	if kind != "" {
		q.Set("kind", kind)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	u := c.baseURL + "/api/assets"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var res service.AssetListResult
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Get(ctx context.Context, id string) (*model.Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/assets/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var a model.Asset
	if err := c.do(req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/assets/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// do sends req and decodes a 2xx body into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		RequestID string `json:"request_id"`
		Code      string `json:"code"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	return &APIError{
		Status:    resp.StatusCode,
		Code:      body.Code,
		Message:   body.Error,
		RequestID: body.RequestID,
	}
}
