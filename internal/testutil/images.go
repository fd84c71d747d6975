package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/teestudio/backend/internal/canvas"
)

// PNGBytes returns a w x h PNG filled with c.
func PNGBytes(t testing.TB, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	return buf.Bytes()
}

// PNGDataURL returns PNGBytes as a data URL.
func PNGDataURL(t testing.TB, w, h int, c color.Color) string {
	t.Helper()
	return canvas.EncodeDataURL("image/png", PNGBytes(t, w, h, c))
}
