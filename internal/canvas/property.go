package canvas

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// setProperty applies a single named property. The object is untouched when
// an error is returned.
func setProperty(o *Object, name string, value any) error {
	bad := func() error {
		return fmt.Errorf("%w: %s=%v on %s", ErrInvalidMutation, name, value, o.Kind)
	}

	switch name {
	case "left", "top":
		f, ok := toFloat(value)
		if !ok {
			return bad()
		}
		if name == "left" {
			o.Left = f
		} else {
			o.Top = f
		}
	case "opacity":
		f, ok := toFloat(value)
		if !ok || f <= 0 || f > 1 {
			return bad()
		}
		o.Opacity = f
	case "visible":
		b, ok := value.(bool)
		if !ok {
			return bad()
		}
		o.Visible = b
	case "fill":
		s, ok := value.(string)
		if !ok {
			return bad()
		}
		if _, err := ParseColor(s); err != nil {
			return bad()
		}
		switch {
		case o.Text != nil:
			o.Text.Fill = s
		case o.Shape != nil:
			o.Shape.Fill = s
		case o.Path != nil:
			o.Path.Color = s
		default:
			return bad()
		}
	case "stroke":
		s, ok := value.(string)
		if !ok || o.Shape == nil {
			return bad()
		}
		if _, err := ParseColor(s); err != nil {
			return bad()
		}
		o.Shape.Stroke = s
	case "strokeWidth":
		f, ok := toFloat(value)
		if !ok || f < 0 {
			return bad()
		}
		switch {
		case o.Shape != nil:
			o.Shape.StrokeWidth = f
		case o.Path != nil && f > 0:
			o.Path.Width = f
		default:
			return bad()
		}
	case "width", "height":
		f, ok := toFloat(value)
		if !ok || f <= 0 || o.Kind != KindRect {
			return bad()
		}
		if name == "width" {
			o.Shape.Width = f
		} else {
			o.Shape.Height = f
		}
	case "radius":
		f, ok := toFloat(value)
		if !ok || f <= 0 || o.Kind != KindCircle {
			return bad()
		}
		o.Shape.Radius = f
	case "scale":
		f, ok := toFloat(value)
		if !ok || f <= 0 || o.Image == nil {
			return bad()
		}
		o.Image.Scale = f
	case "text", "fontFamily", "fontWeight", "fontStyle":
		s, ok := value.(string)
		if !ok || o.Text == nil {
			return bad()
		}
		switch name {
		case "text":
			if s == "" {
				return bad()
			}
			o.Text.Content = s
		case "fontFamily":
			o.Text.FontFamily = s
		case "fontWeight":
			if s != "normal" && s != "bold" {
				return bad()
			}
			o.Text.FontWeight = s
		case "fontStyle":
			if s != "normal" && s != "italic" {
				return bad()
			}
			o.Text.FontStyle = s
		}
	case "fontSize":
		f, ok := toFloat(value)
		if !ok || f <= 0 || o.Text == nil {
			return bad()
		}
		o.Text.FontSize = f
	case "underline":
		b, ok := value.(bool)
		if !ok || o.Text == nil {
			return bad()
		}
		o.Text.Underline = b
	default:
		return fmt.Errorf("%w: unknown property %q", ErrInvalidMutation, name)
	}
	return nil
}

// toFloat accepts finite numbers in any of the forms JSON, msgpack or a form
// field may deliver.
func toFloat(v any) (float64, bool) {
	f, ok := rawFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func rawFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
