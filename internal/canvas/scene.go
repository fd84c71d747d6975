package canvas

import (
	"slices"

	"github.com/google/uuid"
)

// Brush is the freehand drawing state. Changes apply to the next stroke.
type Brush struct {
	Color string
	Width float64
}

// Scene is the mutable composition owned by one Engine. It is not safe for
// concurrent use; the Engine serialises all access.
type Scene struct {
	Width      int
	Height     int
	Background string

	objects     []*Object
	active      *Object
	drawingMode bool
	brush       Brush
}

func newScene(width, height int, background string, brush Brush) *Scene {
	return &Scene{
		Width:      width,
		Height:     height,
		Background: background,
		brush:      brush,
	}
}

func (s *Scene) guide() *Object {
	return s.findRole(RoleGuide)
}

func (s *Scene) placeholder() *Object {
	return s.findRole(RolePlaceholder)
}

func (s *Scene) mainImage() *Object {
	return s.findRole(RoleMainImage)
}

func (s *Scene) findRole(r Role) *Object {
	for _, o := range s.objects {
		if o.Role == r {
			return o
		}
	}
	return nil
}

func (s *Scene) find(id string) *Object {
	for _, o := range s.objects {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// hasDesign reports whether anything besides guide and placeholder is visible.
func (s *Scene) hasDesign() bool {
	return slices.ContainsFunc(s.objects, (*Object).IsDesign)
}

// add appends o on top and drops the placeholder, which only lives until the
// first real content arrives.
func (s *Scene) add(o *Object) {
	if o.Role == RoleContent || o.Role == RoleMainImage {
		s.remove(s.placeholder())
	}
	s.objects = append(s.objects, o)
}

func (s *Scene) remove(o *Object) bool {
	if o == nil || o.Role == RoleGuide {
		return false
	}
	i := slices.Index(s.objects, o)
	if i < 0 {
		return false
	}
	s.objects = slices.Delete(s.objects, i, i+1)
	if s.active == o {
		s.active = nil
	}
	return true
}

// installGuide places the safety-area rectangle at the back of the display
// list, or re-lays it out if it already exists.
func (s *Scene) installGuide(inset float64) {
	w, h := float64(s.Width), float64(s.Height)
	g := s.guide()
	if g == nil {
		g = &Object{
			ID:      uuid.NewString(),
			Kind:    KindRect,
			Role:    RoleGuide,
			Origin:  OriginTopLeft,
			Opacity: 1,
			Visible: true,
			Locked:  true,
			Shape: &ShapeProps{
				Stroke:      "#9ca3af",
				StrokeWidth: 1,
				Dash:        []float64{6, 4},
			},
		}
		s.objects = slices.Insert(s.objects, 0, g)
	}
	g.Left = w * inset
	g.Top = h * inset
	g.Shape.Width = w * (1 - 2*inset)
	g.Shape.Height = h * (1 - 2*inset)
}

func (s *Scene) installPlaceholder(text string) {
	if s.placeholder() != nil || s.hasDesign() || text == "" {
		return
	}
	s.objects = append(s.objects, &Object{
		ID:      uuid.NewString(),
		Kind:    KindText,
		Role:    RolePlaceholder,
		Origin:  OriginCenter,
		Left:    float64(s.Width) / 2,
		Top:     float64(s.Height) / 2,
		Opacity: 1,
		Visible: true,
		Text: &TextProps{
			Content:    text,
			FontFamily: "sans-serif",
			FontSize:   16,
			FontWeight: "normal",
			FontStyle:  "italic",
			Fill:       "#9ca3af",
		},
	})
}

// recenterChrome keeps the placeholder centred after a resize.
func (s *Scene) recenterChrome() {
	if p := s.placeholder(); p != nil {
		p.Left = float64(s.Width) / 2
		p.Top = float64(s.Height) / 2
	}
}

// hideChrome hides the guide and placeholder and clears the background for
// a clean export. The returned func restores exactly what was changed.
func (s *Scene) hideChrome() (restore func()) {
	type saved struct {
		o       *Object
		visible bool
	}
	var prev []saved
	for _, o := range s.objects {
		if o.Role == RoleGuide || o.Role == RolePlaceholder {
			prev = append(prev, saved{o, o.Visible})
			o.Visible = false
		}
	}
	bg := s.Background
	s.Background = "transparent"
	return func() {
		for _, p := range prev {
			p.o.Visible = p.visible
		}
		s.Background = bg
	}
}
