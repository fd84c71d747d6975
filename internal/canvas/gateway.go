package canvas

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TextSpec describes text added with AddText.
type TextSpec struct {
	Content    string
	FontFamily string
	FontSize   float64
	FontWeight string
	FontStyle  string
	Underline  bool
	Color      string
}

// ShapeKind names the shapes AddShape can create.
type ShapeKind string

const (
	ShapeRect   ShapeKind = "rect"
	ShapeCircle ShapeKind = "circle"
)

// ShapeSpec describes a shape added with AddShape. Size is the circle radius,
// or half the side of the square.
type ShapeSpec struct {
	Kind ShapeKind
	Fill string
	Size float64
}

// begin takes the gateway lock and the scene lock. The returned func releases
// both in reverse order.
func (e *Engine) begin() (end func(), err error) {
	if !e.inProgress.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	e.mu.Lock()
	if err := e.usable(); err != nil {
		e.mu.Unlock()
		e.inProgress.Store(false)
		return nil, err
	}
	return func() {
		e.mu.Unlock()
		e.inProgress.Store(false)
	}, nil
}

// AddObject puts a copy of obj on top of the scene and selects it. Only
// RoleContent objects may be added; the guide, the placeholder and the main
// image are managed by the engine.
func (e *Engine) AddObject(obj *Object) error {
	if obj == nil || obj.Role != RoleContent || !obj.valid() {
		return ErrInvalidMutation
	}
	end, err := e.begin()
	if err != nil {
		return err
	}
	o := obj.Clone()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if e.scene.find(o.ID) != nil {
		end()
		return fmt.Errorf("%w: duplicate object id %s", ErrInvalidMutation, o.ID)
	}
	if o.Opacity <= 0 || o.Opacity > 1 {
		o.Opacity = 1
	}
	o.Visible, o.Selectable, o.Evented, o.Locked = true, true, true, false
	e.scene.add(o)
	if !e.scene.drawingMode {
		e.scene.active = o
	}
	e.changed()
	end()

	e.notifier.touch()
	return nil
}

// AddText adds centred text.
func (e *Engine) AddText(spec TextSpec) error {
	if strings.TrimSpace(spec.Content) == "" || spec.FontSize <= 0 {
		return ErrInvalidMutation
	}
	color := spec.Color
	if color == "" {
		color = "#000000"
	}
	if _, err := ParseColor(color); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMutation, err)
	}
	w, h := e.size()
	return e.AddObject(&Object{
		Kind:   KindText,
		Role:   RoleContent,
		Origin: OriginCenter,
		Left:   float64(w) / 2,
		Top:    float64(h) / 2,
		Text: &TextProps{
			Content:    spec.Content,
			FontFamily: orDefault(spec.FontFamily, "sans-serif"),
			FontSize:   spec.FontSize,
			FontWeight: orDefault(spec.FontWeight, "normal"),
			FontStyle:  orDefault(spec.FontStyle, "normal"),
			Underline:  spec.Underline,
			Fill:       color,
		},
	})
}

// AddShape adds a centred rectangle or circle.
func (e *Engine) AddShape(spec ShapeSpec) error {
	if spec.Size <= 0 {
		return ErrInvalidMutation
	}
	if _, err := ParseColor(spec.Fill); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMutation, err)
	}
	w, h := e.size()
	o := &Object{
		Role:   RoleContent,
		Origin: OriginCenter,
		Left:   float64(w) / 2,
		Top:    float64(h) / 2,
	}
	switch spec.Kind {
	case ShapeRect:
		o.Kind = KindRect
		o.Shape = &ShapeProps{Width: spec.Size * 2, Height: spec.Size * 2, Fill: spec.Fill}
	case ShapeCircle:
		o.Kind = KindCircle
		o.Shape = &ShapeProps{Radius: spec.Size, Fill: spec.Fill}
	default:
		return fmt.Errorf("%w: unknown shape %q", ErrInvalidMutation, spec.Kind)
	}
	return e.AddObject(o)
}

// Select makes the object with the given id active. The guide and the
// placeholder can never be selected, and nothing can be selected while
// drawing mode is on.
func (e *Engine) Select(id string) error {
	end, err := e.begin()
	if err != nil {
		return err
	}
	defer end()
	o := e.scene.find(id)
	if o == nil || !o.Selectable || o.Locked || e.scene.drawingMode {
		return ErrInvalidMutation
	}
	e.scene.active = o
	return nil
}

// ClearSelection drops the active selection.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene != nil {
		e.scene.active = nil
	}
}

// UpdateActiveObjectProperty sets one property on the selected object. It is
// a no-op when nothing is selected.
func (e *Engine) UpdateActiveObjectProperty(name string, value any) error {
	end, err := e.begin()
	if err != nil {
		return err
	}
	o := e.scene.active
	if o == nil {
		end()
		return nil
	}
	if o.Role == RoleGuide || o.Locked {
		end()
		return ErrInvalidMutation
	}
	if err := setProperty(o, name, value); err != nil {
		end()
		return err
	}
	e.changed()
	end()

	e.notifier.touch()
	return nil
}

// DeleteActiveObject removes the selected object. It is a no-op when nothing
// is selected and refuses the guide overlay.
func (e *Engine) DeleteActiveObject() error {
	end, err := e.begin()
	if err != nil {
		return err
	}
	o := e.scene.active
	if o == nil {
		end()
		return nil
	}
	if o.Role == RoleGuide || o.Locked {
		end()
		return ErrInvalidMutation
	}
	e.scene.remove(o)
	if o.Role == RoleMainImage {
		e.lastLoaded = ""
	}
	e.changed()
	end()

	e.notifier.touch()
	return nil
}

func (e *Engine) size() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene == nil {
		return 0, 0
	}
	return e.scene.Width, e.scene.Height
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
