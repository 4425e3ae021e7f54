package ingest

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// ThumbnailOptions bound the thumbnail box and the JPEG quality.
type ThumbnailOptions struct {
	Size    int
	Quality int
}

func DefaultThumbnailOptions() ThumbnailOptions {
	return ThumbnailOptions{Size: 200, Quality: 80}
}

// CanThumbnail reports whether a thumbnail is rendered for the type. SVG is not rasterised.
func CanThumbnail(mimeType string) bool {
	switch mimeType {
	case MIMEPNG, MIMEJPEG, MIMEWebP:
		return true
	}
	return false
}

// Thumbnail fits the image inside a Size x Size box without upscaling and
// re-encodes it as JPEG.
func Thumbnail(data []byte, opts ThumbnailOptions) ([]byte, error) {
	if opts.Size <= 0 {
		opts.Size = DefaultThumbnailOptions().Size
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultThumbnailOptions().Quality
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	thumb := imaging.Fit(src, opts.Size, opts.Size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(opts.Quality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
