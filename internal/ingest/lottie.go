package ingest

import (
	"bytes"

	"github.com/goccy/go-json"

	"assetapi/internal/model"
)

const (
	FormatLottie = "lottie"
	FormatJSON   = "json"
)

type lottieDoc struct {
	Version   any             `json:"v"`
	FrameRate any             `json:"fr"`
	OutPoint  any             `json:"op"`
	Width     any             `json:"w"`
	Height    any             `json:"h"`
	Layers    json.RawMessage `json:"layers"`
}

// ExtractJSON recognises Lottie animations (version, positive frame rate and a
// layers array). Any other document, including unparseable input, is plain json.
func ExtractJSON(data []byte) model.Metadata {
	plain := model.Metadata{Format: FormatJSON}

	var doc lottieDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return plain
	}

	version, ok := lottieVersion(doc.Version)
	if !ok {
		return plain
	}
	fr, ok := doc.FrameRate.(float64)
	if !ok || fr <= 0 {
		return plain
	}
	if layers := bytes.TrimSpace(doc.Layers); len(layers) == 0 || layers[0] != '[' {
		return plain
	}

	return model.Metadata{
		Format:    FormatLottie,
		Version:   version,
		FrameRate: fr,
		Duration:  number(doc.OutPoint) / fr,
		Dimensions: &model.Dimensions{
			Width:  number(doc.Width),
			Height: number(doc.Height),
		},
	}
}

// lottieVersion accepts a non-zero number or a non-empty string and returns it unchanged.
func lottieVersion(v any) (any, bool) {
	switch t := v.(type) {
	case float64:
		return t, t != 0
	case string:
		return t, t != ""
	default:
		return nil, false
	}
}

func number(v any) float64 {
	f, _ := v.(float64)
	return f
}
