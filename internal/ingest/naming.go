package ingest

import (
	"crypto/rand"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const (
	suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	maxBaseRunes   = 100
)

var idPattern = regexp.MustCompile(`^[0-9]{1,20}-[0-9a-z]{1,32}$`)

// GenerateFilename derives the stored name: sanitized base name, upload time in
// milliseconds, a short random suffix, then the original extension.
func GenerateFilename(original string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))
	ext := path.Ext(base)
	name := strings.Trim(sanitize(strings.TrimSuffix(base, ext)), ".")
	if name == "" {
		name = "file"
	}
	ext = sanitize(ext)
	if ext == "." {
		ext = ""
	}
	return fmt.Sprintf("%s_%d_%s%s", name, now.UnixMilli(), RandomSuffix(6), ext)
}

// ThumbnailName is the stored name of a thumbnail for a generated filename.
func ThumbnailName(filename string) string {
	return strings.TrimSuffix(filename, path.Ext(filename)) + ".jpg"
}

// NewID returns a request-scoped asset identifier: timestamp plus random suffix.
func NewID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), RandomSuffix(9))
}

// ValidID reports whether id has the shape produced by NewID.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// RandomSuffix returns n random lowercase base36 characters.
func RandomSuffix(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	for i := range b {
		b[i] = suffixAlphabet[int(b[i])%len(suffixAlphabet)]
	}
	return string(b)
}

func sanitize(s string) string {
	var sb strings.Builder
	n := 0
	for _, r := range s {
		if n == maxBaseRunes {
			break
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
		n++
	}
	return sb.String()
}
