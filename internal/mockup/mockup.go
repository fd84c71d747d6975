// Package mockup renders a garment preview with a flattened design printed
// on the chest.
package mockup

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/gogpu/gg"
	"github.com/teestudio/backend/internal/canvas"
)

// MinSize and MaxSize bound the square preview edge in pixels.
const (
	MinSize = 64
	MaxSize = 2048
)

// ErrSize is returned for a preview edge outside [MinSize, MaxSize].
var ErrSize = errors.New("mockup: size out of range")

const backdrop = "#f3f4f6"

// Silhouette outline on a unit square, clockwise from the left of the collar.
var shirt = []canvas.Point{
	{X: 0.38, Y: 0.08},
	// collar dip is drawn as a curve between these two
	{X: 0.62, Y: 0.08},
	{X: 0.80, Y: 0.13},
	{X: 0.98, Y: 0.32},
	{X: 0.86, Y: 0.43},
	{X: 0.77, Y: 0.36},
	{X: 0.78, Y: 0.95},
	{X: 0.22, Y: 0.95},
	{X: 0.23, Y: 0.36},
	{X: 0.14, Y: 0.43},
	{X: 0.02, Y: 0.32},
	{X: 0.20, Y: 0.13},
}

// Print area on the unit square.
var printArea = struct{ x, y, w, h float64 }{0.32, 0.22, 0.36, 0.46}

// Render draws a shirt in shirtColor on a square of edge size and fits design,
// if any, into the chest print area keeping its aspect ratio.
func Render(design image.Image, shirtColor string, size int) (image.Image, error) {
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("%w: %d", ErrSize, size)
	}
	fill, err := canvas.ParseColor(shirtColor)
	if err != nil {
		return nil, fmt.Errorf("shirt colour: %w", err)
	}
	bg, _ := canvas.ParseColor(backdrop)

	s := float64(size)
	dc := gg.NewContext(size, size)
	defer dc.Close()
	dc.ClearWithColor(bg)

	traceShirt(dc, s)
	dc.SetColor(fill.Color())
	if err := dc.FillPreserve(); err != nil {
		return nil, fmt.Errorf("filling shirt: %w", err)
	}
	dc.SetColor(outline(fill).Color())
	dc.SetLineWidth(max(1, s/256))
	dc.SetLineJoin(gg.LineJoinRound)
	if err := dc.Stroke(); err != nil {
		return nil, fmt.Errorf("outlining shirt: %w", err)
	}

	if design != nil {
		placeDesign(dc, design, s)
	}

	img, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("unexpected image type %T", dc.Image())
	}
	return img, nil
}

func traceShirt(dc *gg.Context, s float64) {
	dc.MoveTo(shirt[0].X*s, shirt[0].Y*s)
	dc.QuadraticTo(0.5*s, 0.18*s, shirt[1].X*s, shirt[1].Y*s)
	for _, p := range shirt[2:] {
		dc.LineTo(p.X*s, p.Y*s)
	}
	dc.ClosePath()
}

func placeDesign(dc *gg.Context, design image.Image, s float64) {
	b := design.Bounds()
	dw, dh := float64(b.Dx()), float64(b.Dy())
	if dw == 0 || dh == 0 {
		return
	}
	aw, ah := printArea.w*s, printArea.h*s
	k := min(aw/dw, ah/dh)
	w, h := dw*k, dh*k
	x := printArea.x*s + (aw-w)/2
	y := printArea.y*s + (ah-h)/2

	dc.DrawImageEx(gg.ImageBufFromImage(design), gg.DrawImageOptions{
		X:             x,
		Y:             y,
		DstWidth:      w,
		DstHeight:     h,
		Interpolation: gg.InterpBilinear,
		Opacity:       1,
	})
}

// outline darkens light shirts and lightens dark ones so the silhouette edge
// stays visible.
func outline(c gg.RGBA) gg.RGBA {
	lum := 0.2126*c.R + 0.7152*c.G + 0.0722*c.B
	if lum > 0.5 {
		return gg.RGBA{R: c.R * 0.7, G: c.G * 0.7, B: c.B * 0.7, A: 1}
	}
	return gg.RGBA{R: c.R + (1-c.R)*0.3, G: c.G + (1-c.G)*0.3, B: c.B + (1-c.B)*0.3, A: 1}
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding mockup: %w", err)
	}
	return buf.Bytes(), nil
}
