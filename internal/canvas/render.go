package canvas

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
)

type fontKey struct {
	mono   bool
	bold   bool
	italic bool
}

var fontData = map[fontKey][]byte{
	{false, false, false}: goregular.TTF,
	{false, true, false}:  gobold.TTF,
	{false, false, true}:  goitalic.TTF,
	{false, true, true}:   gobolditalic.TTF,
	{true, false, false}:  gomono.TTF,
	{true, true, false}:   gomonobold.TTF,
	{true, false, true}:   gomonoitalic.TTF,
	{true, true, true}:    gomonobolditalic.TTF,
}

// Parsed font sources are immutable and safe for concurrent use, so every
// engine shares them.
var (
	fontMu      sync.Mutex
	fontSources = map[fontKey]*text.FontSource{}
)

func fontSource(k fontKey) (*text.FontSource, error) {
	fontMu.Lock()
	defer fontMu.Unlock()
	if src, ok := fontSources[k]; ok {
		return src, nil
	}
	src, err := text.NewFontSource(fontData[k])
	if err != nil {
		return nil, fmt.Errorf("loading font: %w", err)
	}
	fontSources[k] = src
	return src, nil
}

func keyFor(t *TextProps) fontKey {
	fam := strings.ToLower(t.FontFamily)
	return fontKey{
		mono:   strings.Contains(fam, "mono") || strings.Contains(fam, "courier"),
		bold:   t.FontWeight == "bold",
		italic: t.FontStyle == "italic",
	}
}

type rasterizer struct{}

func newRasterizer() *rasterizer {
	return &rasterizer{}
}

// render draws the visible objects back to front at scale times the logical
// size. Coordinates are scaled explicitly because text drawing ignores the
// context transform.
func (r *rasterizer) render(s *Scene, scale float64) (*image.RGBA, error) {
	w, h := int(float64(s.Width)*scale), int(float64(s.Height)*scale)
	dc := gg.NewContext(w, h)
	defer dc.Close()

	bg, err := ParseColor(s.Background)
	if err != nil {
		return nil, err
	}
	dc.ClearWithColor(bg)

	for _, o := range s.objects {
		if !o.Visible {
			continue
		}
		if err := r.draw(dc, o, scale); err != nil {
			return nil, fmt.Errorf("drawing %s %s: %w", o.Kind, o.ID, err)
		}
	}
	img, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("unexpected image type %T", dc.Image())
	}
	return img, nil
}

func (r *rasterizer) draw(dc *gg.Context, o *Object, k float64) error {
	switch o.Kind {
	case KindRect, KindCircle:
		return r.drawShape(dc, o, k)
	case KindText:
		return r.drawText(dc, o, k)
	case KindImage:
		x, y, w, h := o.bounds()
		dc.DrawImageEx(o.Image.buf, gg.DrawImageOptions{
			X:             x * k,
			Y:             y * k,
			DstWidth:      w * k,
			DstHeight:     h * k,
			Interpolation: gg.InterpBilinear,
			Opacity:       o.Opacity,
		})
		return nil
	case KindPath:
		return r.drawPath(dc, o, k)
	}
	return fmt.Errorf("unknown kind %d", o.Kind)
}

func (r *rasterizer) drawShape(dc *gg.Context, o *Object, k float64) error {
	x, y, w, h := o.bounds()
	trace := func() {
		if o.Kind == KindCircle {
			dc.DrawCircle((x+w/2)*k, (y+h/2)*k, o.Shape.Radius*k)
		} else {
			dc.DrawRectangle(x*k, y*k, w*k, h*k)
		}
	}

	if o.Shape.Fill != "" {
		c, err := ParseColor(o.Shape.Fill)
		if err != nil {
			return err
		}
		dc.SetColor(withOpacity(c, o.Opacity).Color())
		trace()
		if err := dc.Fill(); err != nil {
			return err
		}
	}
	if o.Shape.Stroke != "" && o.Shape.StrokeWidth > 0 {
		c, err := ParseColor(o.Shape.Stroke)
		if err != nil {
			return err
		}
		dc.SetColor(withOpacity(c, o.Opacity).Color())
		dc.SetLineWidth(o.Shape.StrokeWidth * k)
		if len(o.Shape.Dash) > 0 {
			dash := make([]float64, len(o.Shape.Dash))
			for i, d := range o.Shape.Dash {
				dash[i] = d * k
			}
			dc.SetDash(dash...)
		}
		trace()
		err = dc.Stroke()
		dc.ClearDash()
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *rasterizer) drawText(dc *gg.Context, o *Object, k float64) error {
	t := o.Text
	src, err := fontSource(keyFor(t))
	if err != nil {
		return err
	}
	c, err := ParseColor(t.Fill)
	if err != nil {
		return err
	}
	dc.SetFont(src.Face(t.FontSize * k))
	dc.SetColor(withOpacity(c, o.Opacity).Color())

	tw, th := dc.MeasureString(t.Content)
	cx, cy := o.Left*k, o.Top*k
	if o.Origin == OriginTopLeft {
		cx += tw / 2
		cy += th / 2
	}
	dc.DrawStringAnchored(t.Content, cx, cy, 0.5, 0.5)

	if t.Underline {
		baseline := cy + th/2
		dc.SetLineWidth(max(1, t.FontSize*k/15))
		dc.DrawLine(cx-tw/2, baseline+t.FontSize*k*0.1, cx+tw/2, baseline+t.FontSize*k*0.1)
		return dc.Stroke()
	}
	return nil
}

func (r *rasterizer) drawPath(dc *gg.Context, o *Object, k float64) error {
	p := o.Path
	c, err := ParseColor(p.Color)
	if err != nil {
		return err
	}
	dc.SetColor(withOpacity(c, o.Opacity).Color())
	if len(p.Points) == 1 {
		dc.DrawCircle(p.Points[0].X*k, p.Points[0].Y*k, p.Width*k/2)
		return dc.Fill()
	}
	dc.SetLineWidth(p.Width * k)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	dc.MoveTo(p.Points[0].X*k, p.Points[0].Y*k)
	for _, pt := range p.Points[1:] {
		dc.LineTo(pt.X*k, pt.Y*k)
	}
	return dc.Stroke()
}
