// Package render rasterizes normalized SVG markup to PNG.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"regexp"
	"strings"

	"github.com/gogpu/gg"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/colornames"

	"github.com/hyperifyio/svgscout/internal/asset"
)

// MaxDimension caps either side of the output bitmap.
const MaxDimension = 16384

// Transparent is the background value that leaves the canvas clear.
const Transparent = "transparent"

var hexColor = regexp.MustCompile(`^#?(?:[0-9a-fA-F]{3,4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Request describes one rasterization.
type Request struct {
	Content string
	// Scale multiplies the intrinsic size; the UI offers 1, 2 and 4.
	Scale float64
	// Background is a hex color, a CSS color name or "transparent"; empty
	// means transparent.
	Background string
}

// Result is an encoded PNG and its pixel size.
type Result struct {
	PNG    []byte
	Width  int
	Height int
}

// Render rasterizes req.Content. Any parse or decode problem fails the whole
// render; there is no blank-image fallback.
func Render(req Request) (Result, error) {
	if req.Scale <= 0 || math.IsNaN(req.Scale) || math.IsInf(req.Scale, 0) {
		return Result{}, fmt.Errorf("render: invalid scale %v", req.Scale)
	}
	bg, opaque, err := ParseBackground(req.Background)
	if err != nil {
		return Result{}, err
	}
	doc, err := asset.ParseDocument(req.Content)
	if err != nil {
		return Result{}, fmt.Errorf("render: %w", err)
	}
	if !strings.EqualFold(doc.Root().Tag, "svg") {
		return Result{}, fmt.Errorf("render: root element is <%s>, not <svg>", doc.Root().Tag)
	}
	geom := Normalize(doc)
	w, h := PixelSize(geom, req.Scale)
	markup, err := doc.WriteToString()
	if err != nil {
		return Result{}, fmt.Errorf("render: serialize: %w", err)
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(markup), oksvg.IgnoreErrorMode)
	if err != nil {
		return Result{}, fmt.Errorf("render: decode svg: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)

	dc := gg.NewContext(w, h)
	defer dc.Close()
	if opaque {
		dc.ClearWithColor(bg)
	}
	dc.DrawImage(gg.ImageBufFromImage(img), 0, 0)
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return Result{}, fmt.Errorf("render: encode png: %w", err)
	}
	return Result{PNG: buf.Bytes(), Width: w, Height: h}, nil
}

// PixelSize is the intrinsic size times the folded transform scale times the
// export scale, truncated and clamped to [1, MaxDimension].
func PixelSize(g Geometry, scale float64) (int, int) {
	return clampPixels(g.Width * g.ScaleX * scale), clampPixels(g.Height * g.ScaleY * scale)
}

func clampPixels(v float64) int {
	if math.IsNaN(v) || v < 1 {
		return 1
	}
	if v > MaxDimension {
		return MaxDimension
	}
	return int(v)
}

// ParseBackground resolves a background setting. The boolean is false for
// transparent backgrounds.
func ParseBackground(s string) (gg.RGBA, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, Transparent) {
		return gg.Transparent, false, nil
	}
	if hexColor.MatchString(s) {
		return gg.Hex(s), true, nil
	}
	if c, ok := colornames.Map[strings.ToLower(s)]; ok {
		return gg.FromColor(c), true, nil
	}
	return gg.RGBA{}, false, errors.New("render: unsupported background color " + s)
}
