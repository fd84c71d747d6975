package canvas

// ObjectView is the serialisable form of an Object.
type ObjectView struct {
	ID         string  `json:"id" msgpack:"id"`
	Kind       string  `json:"kind" msgpack:"kind"`
	Role       string  `json:"role" msgpack:"role"`
	Left       float64 `json:"left" msgpack:"left"`
	Top        float64 `json:"top" msgpack:"top"`
	Centered   bool    `json:"centered" msgpack:"centered"`
	Opacity    float64 `json:"opacity" msgpack:"opacity"`
	Visible    bool    `json:"visible" msgpack:"visible"`
	Selectable bool    `json:"selectable" msgpack:"selectable"`
	Locked     bool    `json:"locked,omitempty" msgpack:"locked,omitempty"`
	Active     bool    `json:"active,omitempty" msgpack:"active,omitempty"`

	Text       string    `json:"text,omitempty" msgpack:"text,omitempty"`
	FontFamily string    `json:"fontFamily,omitempty" msgpack:"fontFamily,omitempty"`
	FontSize   float64   `json:"fontSize,omitempty" msgpack:"fontSize,omitempty"`
	FontWeight string    `json:"fontWeight,omitempty" msgpack:"fontWeight,omitempty"`
	FontStyle  string    `json:"fontStyle,omitempty" msgpack:"fontStyle,omitempty"`
	Underline  bool      `json:"underline,omitempty" msgpack:"underline,omitempty"`
	Fill       string    `json:"fill,omitempty" msgpack:"fill,omitempty"`
	Stroke     string    `json:"stroke,omitempty" msgpack:"stroke,omitempty"`
	Width      float64   `json:"width,omitempty" msgpack:"width,omitempty"`
	Height     float64   `json:"height,omitempty" msgpack:"height,omitempty"`
	Radius     float64   `json:"radius,omitempty" msgpack:"radius,omitempty"`
	Source     string    `json:"source,omitempty" msgpack:"source,omitempty"`
	Points     []Point   `json:"points,omitempty" msgpack:"points,omitempty"`
	Dash       []float64 `json:"dash,omitempty" msgpack:"dash,omitempty"`
}

// Snapshot is a read-only, serialisable view of the scene.
type Snapshot struct {
	Width       int          `json:"width" msgpack:"width"`
	Height      int          `json:"height" msgpack:"height"`
	Background  string       `json:"background" msgpack:"background"`
	DrawingMode bool         `json:"drawingMode" msgpack:"drawingMode"`
	BrushColor  string       `json:"brushColor" msgpack:"brushColor"`
	BrushWidth  float64      `json:"brushWidth" msgpack:"brushWidth"`
	Objects     []ObjectView `json:"objects" msgpack:"objects"`
	State       string       `json:"notifier" msgpack:"notifier"`
}

// Snapshot returns the current scene. The zero Snapshot is returned before
// Initialize and after Close.
func (e *Engine) Snapshot() Snapshot {
	state := e.notifier.current().String()
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.scene
	if s == nil {
		return Snapshot{State: state}
	}
	snap := Snapshot{
		Width:       s.Width,
		Height:      s.Height,
		Background:  s.Background,
		DrawingMode: s.drawingMode,
		BrushColor:  s.brush.Color,
		BrushWidth:  s.brush.Width,
		Objects:     make([]ObjectView, 0, len(s.objects)),
		State:       state,
	}
	for _, o := range s.objects {
		snap.Objects = append(snap.Objects, viewOf(o, o == s.active))
	}
	return snap
}

func viewOf(o *Object, active bool) ObjectView {
	v := ObjectView{
		ID:         o.ID,
		Kind:       o.Kind.String(),
		Role:       o.Role.String(),
		Left:       o.Left,
		Top:        o.Top,
		Centered:   o.Origin == OriginCenter,
		Opacity:    o.Opacity,
		Visible:    o.Visible,
		Selectable: o.Selectable,
		Locked:     o.Locked,
		Active:     active,
	}
	switch {
	case o.Text != nil:
		v.Text = o.Text.Content
		v.FontFamily = o.Text.FontFamily
		v.FontSize = o.Text.FontSize
		v.FontWeight = o.Text.FontWeight
		v.FontStyle = o.Text.FontStyle
		v.Underline = o.Text.Underline
		v.Fill = o.Text.Fill
	case o.Shape != nil:
		v.Fill = o.Shape.Fill
		v.Stroke = o.Shape.Stroke
		v.Width = o.Shape.Width
		v.Height = o.Shape.Height
		v.Radius = o.Shape.Radius
		v.Dash = o.Shape.Dash
	case o.Image != nil:
		_, _, v.Width, v.Height = o.bounds()
		v.Source = o.Image.Source
	case o.Path != nil:
		v.Points = o.Path.Points
		v.Stroke = o.Path.Color
		v.Width = o.Path.Width
	}
	return v
}
