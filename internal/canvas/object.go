package canvas

import (
	"image"

	"github.com/gogpu/gg"
)

// Role tells the engine what an object is for. Lookups for the guide,
// the placeholder and the main image go through Role, never through names.
type Role int

const (
	RoleContent Role = iota
	RoleGuide
	RolePlaceholder
	RoleMainImage
)

func (r Role) String() string {
	switch r {
	case RoleGuide:
		return "guide"
	case RolePlaceholder:
		return "placeholder"
	case RoleMainImage:
		return "main-image"
	default:
		return "content"
	}
}

// Kind is the geometric variant of an object. Exactly one payload pointer on
// Object is set, matching Kind.
type Kind int

const (
	KindRect Kind = iota
	KindCircle
	KindText
	KindImage
	KindPath
)

func (k Kind) String() string {
	switch k {
	case KindRect:
		return "rect"
	case KindCircle:
		return "circle"
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindPath:
		return "path"
	default:
		return "unknown"
	}
}

// Origin selects what Left/Top refer to.
type Origin int

const (
	OriginTopLeft Origin = iota
	OriginCenter
)

// Point is a position in logical canvas pixels.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// TextProps is the payload of a KindText object.
type TextProps struct {
	Content    string
	FontFamily string
	FontSize   float64
	FontWeight string // "normal" or "bold"
	FontStyle  string // "normal" or "italic"
	Underline  bool
	Fill       string
}

// ShapeProps is the payload of KindRect and KindCircle objects.
type ShapeProps struct {
	Width       float64 // rect only
	Height      float64 // rect only
	Radius      float64 // circle only
	Fill        string
	Stroke      string
	StrokeWidth float64
	Dash        []float64
}

// ImageProps is the payload of a KindImage object. Pixels are immutable once
// decoded and may be shared between copies.
type ImageProps struct {
	Width  int
	Height int
	Scale  float64
	Source string

	pixels image.Image
	buf    *gg.ImageBuf
}

// PathProps is the payload of a KindPath (freehand stroke) object.
type PathProps struct {
	Points []Point
	Color  string
	Width  float64
}

// Object is one entry of the scene's display list.
type Object struct {
	ID         string
	Kind       Kind
	Role       Role
	Left       float64
	Top        float64
	Origin     Origin
	Opacity    float64
	Visible    bool
	Selectable bool
	Evented    bool
	Locked     bool

	Text  *TextProps
	Shape *ShapeProps
	Image *ImageProps
	Path  *PathProps
}

// Clone returns a copy that shares no mutable state with o.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := *o
	if o.Text != nil {
		t := *o.Text
		c.Text = &t
	}
	if o.Shape != nil {
		s := *o.Shape
		s.Dash = append([]float64(nil), o.Shape.Dash...)
		c.Shape = &s
	}
	if o.Image != nil {
		i := *o.Image
		c.Image = &i
	}
	if o.Path != nil {
		p := *o.Path
		p.Points = append([]Point(nil), o.Path.Points...)
		c.Path = &p
	}
	return &c
}

// IsDesign reports whether o counts as user-visible design content.
func (o *Object) IsDesign() bool {
	return (o.Role == RoleContent || o.Role == RoleMainImage) && o.Visible
}

// valid checks that the payload matches Kind.
func (o *Object) valid() bool {
	switch o.Kind {
	case KindRect:
		return o.Shape != nil && o.Shape.Width > 0 && o.Shape.Height > 0
	case KindCircle:
		return o.Shape != nil && o.Shape.Radius > 0
	case KindText:
		return o.Text != nil && o.Text.Content != "" && o.Text.FontSize > 0
	case KindImage:
		return o.Image != nil && o.Image.pixels != nil
	case KindPath:
		return o.Path != nil && len(o.Path.Points) > 0 && o.Path.Width > 0
	}
	return false
}

// bounds returns the object's top-left corner and size in logical pixels.
// Text has no intrinsic box without a font; its box is zero-sized at its anchor.
func (o *Object) bounds() (x, y, w, h float64) {
	switch o.Kind {
	case KindRect:
		w, h = o.Shape.Width, o.Shape.Height
	case KindCircle:
		w, h = o.Shape.Radius*2, o.Shape.Radius*2
	case KindImage:
		w, h = float64(o.Image.Width)*o.Image.Scale, float64(o.Image.Height)*o.Image.Scale
	case KindPath:
		return pathBounds(o.Path.Points)
	}
	x, y = o.Left, o.Top
	if o.Origin == OriginCenter {
		x -= w / 2
		y -= h / 2
	}
	return x, y, w, h
}

func pathBounds(pts []Point) (x, y, w, h float64) {
	if len(pts) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY, maxX, maxY := pts[0].X, pts[0].Y, pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return minX, minY, maxX - minX, maxY - minY
}
