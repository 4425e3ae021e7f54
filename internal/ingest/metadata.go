package ingest

import (
	"strings"

	"assetapi/internal/model"
)

// Extract dispatches metadata extraction on the declared type. Types without an
// extractor (glTF, binary 3D formats) yield empty metadata. The returned error is
// informational; callers are expected to continue with empty metadata.
func Extract(mimeType string, data []byte) (model.Metadata, error) {
	switch {
	case mimeType == MIMESVG:
		return ExtractSVG(data), nil
	case strings.HasPrefix(mimeType, "image/"):
		return ExtractRaster(data)
	case mimeType == MIMEJSON:
		return ExtractJSON(data), nil
	default:
		return model.Metadata{}, nil
	}
}

// KindOf classifies an asset from its declared type and extracted metadata.
func KindOf(mimeType string, md model.Metadata) model.Kind {
	switch {
	case mimeType == MIMESVG:
		return model.KindVector
	case strings.HasPrefix(mimeType, "image/"):
		return model.KindImage
	case mimeType == MIMEJSON && md.Format == FormatLottie:
		return model.KindAnimation
	case mimeType == MIMEJSON:
		return model.KindData
	default:
		return model.KindModel
	}
}

func boolPtr(b bool) *bool { return &b }
