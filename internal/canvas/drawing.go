package canvas

import (
	"fmt"

	"github.com/google/uuid"
)

// SetDrawingMode switches between object selection and freehand input.
// Existing objects are not touched; the active selection is dropped when
// drawing starts.
func (e *Engine) SetDrawingMode(on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.usable(); err != nil {
		return err
	}
	e.scene.drawingMode = on
	if on {
		e.scene.active = nil
	}
	return nil
}

// DrawingMode reports whether freehand input is on.
func (e *Engine) DrawingMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene != nil && e.scene.drawingMode
}

// SetBrushWidth changes the width used by the next committed stroke.
func (e *Engine) SetBrushWidth(w float64) error {
	if w <= 0 {
		return fmt.Errorf("%w: brush width %v", ErrInvalidMutation, w)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.usable(); err != nil {
		return err
	}
	e.scene.brush.Width = w
	return nil
}

// SetBrushColor changes the colour used by the next committed stroke.
func (e *Engine) SetBrushColor(c string) error {
	if _, err := ParseColor(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMutation, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.usable(); err != nil {
		return err
	}
	e.scene.brush.Color = c
	return nil
}

// Brush returns the current brush.
func (e *Engine) Brush() Brush {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene == nil {
		return e.opts.Brush
	}
	return e.scene.brush
}

// CommitStroke adds a finished freehand stroke drawn with the current brush.
// It counts as an object addition for change notification.
func (e *Engine) CommitStroke(points []Point) error {
	if len(points) == 0 {
		return ErrInvalidMutation
	}
	end, err := e.begin()
	if err != nil {
		return err
	}
	if !e.scene.drawingMode {
		end()
		return fmt.Errorf("%w: drawing mode is off", ErrInvalidMutation)
	}
	brush := e.scene.brush
	e.scene.add(&Object{
		ID:         uuid.NewString(),
		Kind:       KindPath,
		Role:       RoleContent,
		Origin:     OriginTopLeft,
		Opacity:    1,
		Visible:    true,
		Selectable: true,
		Evented:    true,
		Path: &PathProps{
			Points: append([]Point(nil), points...),
			Color:  brush.Color,
			Width:  brush.Width,
		},
	})
	e.changed()
	end()

	e.notifier.touch()
	return nil
}
