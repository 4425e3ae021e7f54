package ingest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"assetapi/internal/model"
)

// ExtractRaster reads the image header only; pixel data is not decoded.
func ExtractRaster(data []byte) (model.Metadata, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return model.Metadata{}, fmt.Errorf("decode image header: %w", err)
	}
	space, channels, alpha := describeColorModel(cfg.ColorModel)
	return model.Metadata{
		Format: format,
		Dimensions: &model.Dimensions{
			Width:  float64(cfg.Width),
			Height: float64(cfg.Height),
		},
		ColorSpace: space,
		Channels:   channels,
		HasAlpha:   boolPtr(alpha),
	}, nil
}

// describeColorModel maps a decoder colour model to colour space, channel count and alpha.
// PNG truecolour without alpha decodes as RGBA, with alpha as NRGBA.
func describeColorModel(m color.Model) (space string, channels int, alpha bool) {
	if p, ok := m.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return "srgb", 4, true
			}
		}
		return "srgb", 3, false
	}

	switch m {
	case color.GrayModel, color.Gray16Model:
		return "b-w", 1, false
	case color.CMYKModel:
		return "cmyk", 4, false
	case color.NYCbCrAModel, color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model:
		return "srgb", 4, true
	default:
		return "srgb", 3, false
	}
}
