package ingest

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"unicode"

	"assetapi/internal/model"
)

const FormatSVG = "svg"

// ExtractSVG reads the root <svg> element. Dimensions come from the third and fourth
// viewBox components, else from the width/height attributes, else they are zero.
func ExtractSVG(data []byte) model.Metadata {
	md := model.Metadata{
		Format:     FormatSVG,
		Dimensions: &model.Dimensions{},
		Channels:   4,
		HasAlpha:   boolPtr(true),
	}

	root, ok := svgRoot(data)
	if !ok {
		return md
	}

	if w, h, ok := viewBoxSize(attr(root, "viewBox")); ok {
		md.Dimensions.Width, md.Dimensions.Height = w, h
		return md
	}

	w, wok := leadingNumber(attr(root, "width"))
	h, hok := leadingNumber(attr(root, "height"))
	if wok && hok {
		md.Dimensions.Width, md.Dimensions.Height = w, h
	}
	return md
}

func svgRoot(data []byte) (xml.StartElement, bool) {
	dec := xml.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	dec.Strict = false
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, false
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, strings.EqualFold(se.Name.Local, "svg")
		}
	}
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func viewBoxSize(v string) (float64, float64, bool) {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	if len(parts) != 4 {
		return 0, 0, false
	}
	w, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, 0, false
	}
	h, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return 0, 0, false
	}
	return w, h, true
}

// leadingNumber parses the numeric prefix of a length such as "64px" or "100%".
func leadingNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.' || (end == 0 && (s[end] == '-' || s[end] == '+'))) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
