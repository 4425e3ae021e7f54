// Package ingest holds the per-file rules of the upload pipeline: which types are
// accepted, how stored names are generated, what metadata is extracted and how
// thumbnails are rendered. It performs no I/O beyond reading the given bytes.
package ingest

import (
	"bytes"
	"errors"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MIMESVG         = "image/svg+xml"
	MIMEPNG         = "image/png"
	MIMEJPEG        = "image/jpeg"
	MIMEWebP        = "image/webp"
	MIMEJSON        = "application/json"
	MIMEGLTFJSON    = "model/gltf+json"
	MIMEGLTFBinary  = "model/gltf-binary"
	MIMEOctetStream = "application/octet-stream"

	DefaultMaxFileSize = 10 * 1024 * 1024
)

var (
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file too large")
)

// sniffAs maps a declared type to the type content sniffing must find.
// Declared types missing here are opaque: their bytes are not checked.
var sniffAs = map[string]string{
	MIMESVG:      MIMESVG,
	MIMEPNG:      MIMEPNG,
	MIMEJPEG:     MIMEJPEG,
	MIMEWebP:     MIMEWebP,
	MIMEJSON:     MIMEJSON,
	MIMEGLTFJSON: MIMEJSON,
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var allowed = map[string]bool{
	MIMESVG:         true,
	MIMEPNG:         true,
	MIMEJPEG:        true,
	MIMEWebP:        true,
	MIMEJSON:        true,
	MIMEGLTFJSON:    true,
	MIMEGLTFBinary:  true,
	MIMEOctetStream: true,
}

// AllowedTypes lists the accepted MIME types.
func AllowedTypes() []string {
	return []string{MIMESVG, MIMEPNG, MIMEJPEG, MIMEWebP, MIMEJSON, MIMEGLTFJSON, MIMEGLTFBinary, MIMEOctetStream}
}

// NormalizeMIME lowercases a Content-Type value and drops its parameters.
func NormalizeMIME(contentType string) string {
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// IsAllowed reports whether the normalised type is on the allow-list.
func IsAllowed(mimeType string) bool {
	return allowed[mimeType]
}

// SniffMatches reports whether data looks like the declared type. The detected type
// or any of its ancestors must match, so a glTF document passes as JSON. A leading
// UTF-8 byte order mark is ignored.
func SniffMatches(declared string, data []byte) bool {
	want, checked := sniffAs[declared]
	if !checked {
		return true
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is(want) {
			return true
		}
	}
	// mimetype only reads the first 3 KiB; the <svg> root can sit behind a longer prolog.
	if declared == MIMESVG {
		_, ok := svgRoot(data)
		return ok
	}
	return false
}

// Policy is the per-file acceptance policy.
type Policy struct {
	MaxFileSize  int64
	SniffContent bool
}

// DefaultPolicy is a 10 MiB ceiling with content sniffing enforced.
func DefaultPolicy() Policy {
	return Policy{MaxFileSize: DefaultMaxFileSize, SniffContent: true}
}

func (p Policy) maxSize() int64 {
	if p.MaxFileSize <= 0 {
		return DefaultMaxFileSize
	}
	return p.MaxFileSize
}

// CheckDeclared validates what is known before the payload is read.
func (p Policy) CheckDeclared(mimeType string, size int64) error {
	if !IsAllowed(mimeType) {
		return ErrInvalidFileType
	}
	if size > p.maxSize() {
		return ErrFileTooLarge
	}
	return nil
}

// Check validates a fully read payload against its declared type.
func (p Policy) Check(mimeType string, data []byte) error {
	if err := p.CheckDeclared(mimeType, int64(len(data))); err != nil {
		return err
	}
	if p.SniffContent && !SniffMatches(mimeType, data) {
		return ErrInvalidFileType
	}
	return nil
}
