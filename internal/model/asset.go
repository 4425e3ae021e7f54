package model

import (
	"encoding/json"
	"time"
)

// Kind is the coarse class of a design asset.
type Kind string

const (
	KindImage     Kind = "image"
	KindVector    Kind = "vector"
	KindAnimation Kind = "animation"
	KindModel     Kind = "model"
	KindData      Kind = "data"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindImage, KindVector, KindAnimation, KindModel, KindData:
		return true
	}
	return false
}

// Asset is one stored upload as it appears in the upload manifest and the catalog.
// JSON names follow the web client's contract.
type Asset struct {
	ID             string          `json:"id"`
	OriginalName   string          `json:"originalName"`
	Filename       string          `json:"filename"`
	MimeType       string          `json:"mimetype"`
	Kind           Kind            `json:"kind"`
	Size           int64           `json:"size"`
	Path           string          `json:"path"`
	URL            string          `json:"url"`
	Metadata       Metadata        `json:"metadata"`
	ThumbnailURL   string          `json:"thumbnailUrl,omitempty"`
	ClientMetadata json.RawMessage `json:"clientMetadata,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`

	StorageKey   string `json:"-"`
	ThumbnailKey string `json:"-"`
}

// Dimensions are float because SVG view boxes may be fractional.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Metadata is the per-type extraction result. Which fields are set depends on the format:
// raster images fill colour information, SVG a fixed 4-channel alpha description,
// Lottie the animation timing with the version as sent (number or string). An empty value means nothing was extracted.
type Metadata struct {
	Format     string      `json:"format,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	ColorSpace string      `json:"colorSpace,omitempty"`
	Channels   int         `json:"channels,omitempty"`
	HasAlpha   *bool       `json:"hasAlpha,omitempty"`
	Version    any         `json:"version,omitempty"`
	FrameRate  float64     `json:"frameRate,omitempty"`
	Duration   float64     `json:"duration,omitempty"`
}

// IsZero reports whether no metadata was extracted.
func (m Metadata) IsZero() bool {
	return m.Format == "" && m.Dimensions == nil && m.ColorSpace == "" && m.Channels == 0 &&
		m.HasAlpha == nil && m.Version == nil && m.FrameRate == 0 && m.Duration == 0
}
