package canvas

import (
	"fmt"
	"strings"

	"github.com/gogpu/gg"
)

var namedColors = map[string]string{
	"black":       "#000000",
	"white":       "#ffffff",
	"red":         "#ff0000",
	"green":       "#008000",
	"blue":        "#0000ff",
	"yellow":      "#ffff00",
	"gray":        "#808080",
	"grey":        "#808080",
	"navy":        "#000080",
	"maroon":      "#800000",
	"transparent": "#00000000",
}

// ParseColor accepts "#rgb", "#rgba", "#rrggbb", "#rrggbbaa" (leading '#'
// optional) and a small set of CSS colour names.
func ParseColor(s string) (gg.RGBA, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if named, ok := namedColors[v]; ok {
		v = named
	}
	hex := strings.TrimPrefix(v, "#")
	switch len(hex) {
	case 3, 4, 6, 8:
	default:
		return gg.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	for _, r := range hex {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return gg.RGBA{}, fmt.Errorf("invalid colour %q", s)
		}
	}
	return gg.Hex(hex), nil
}

func withOpacity(c gg.RGBA, opacity float64) gg.RGBA {
	if opacity <= 0 || opacity > 1 {
		return c
	}
	c.A *= opacity
	return c
}
