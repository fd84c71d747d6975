package canvas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddText(t *testing.T) {
	e, _ := readyEngine(t)

	require.NoError(t, e.AddText(TextSpec{Content: "HELLO", FontSize: 20}))

	objs := e.Objects()
	require.Len(t, objs, 2, "placeholder should be gone")
	assert.Equal(t, RoleGuide, objs[0].Role)
	txt := objs[1]
	assert.Equal(t, KindText, txt.Kind)
	assert.Equal(t, OriginCenter, txt.Origin)
	assert.InDelta(t, 150, txt.Left, 1e-9)
	assert.InDelta(t, 150, txt.Top, 1e-9)
	assert.Equal(t, "sans-serif", txt.Text.FontFamily)
	assert.Equal(t, "normal", txt.Text.FontWeight)
	assert.Equal(t, "#000000", txt.Text.Fill)

	active := e.Active()
	require.NotNil(t, active)
	assert.Equal(t, txt.ID, active.ID)

	t.Run("rejects empty content", func(t *testing.T) {
		assert.ErrorIs(t, e.AddText(TextSpec{Content: "  ", FontSize: 20}), ErrInvalidMutation)
		assert.ErrorIs(t, e.AddText(TextSpec{Content: "x", FontSize: 0}), ErrInvalidMutation)
		assert.ErrorIs(t, e.AddText(TextSpec{Content: "x", FontSize: 10, Color: "#zz"}), ErrInvalidMutation)
		assert.Len(t, e.Objects(), 2)
	})
}

func TestAddShape(t *testing.T) {
	tests := []struct {
		name   string
		spec   ShapeSpec
		kind   Kind
		width  float64
		radius float64
	}{
		{"rect", ShapeSpec{Kind: ShapeRect, Fill: "#00ff00", Size: 25}, KindRect, 50, 0},
		{"circle", ShapeSpec{Kind: ShapeCircle, Fill: "red", Size: 30}, KindCircle, 0, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := readyEngine(t)
			require.NoError(t, e.AddShape(tt.spec))

			objs := e.Objects()
			require.Len(t, objs, 2)
			s := objs[1]
			assert.Equal(t, tt.kind, s.Kind)
			assert.Equal(t, tt.spec.Fill, s.Shape.Fill)
			assert.InDelta(t, tt.width, s.Shape.Width, 1e-9)
			assert.InDelta(t, tt.radius, s.Shape.Radius, 1e-9)
		})
	}

	t.Run("unknown kind", func(t *testing.T) {
		e, _ := readyEngine(t)
		assert.ErrorIs(t, e.AddShape(ShapeSpec{Kind: "star", Fill: "#000", Size: 5}), ErrInvalidMutation)
		assert.Equal(t, 1, countRole(e.Objects(), RolePlaceholder))
	})
}

func TestAddObjectRejectsManagedRoles(t *testing.T) {
	e, _ := readyEngine(t)

	for _, r := range []Role{RoleGuide, RolePlaceholder, RoleMainImage} {
		err := e.AddObject(&Object{
			Kind:  KindRect,
			Role:  r,
			Shape: &ShapeProps{Width: 10, Height: 10, Fill: "#000"},
		})
		assert.ErrorIs(t, err, ErrInvalidMutation, r.String())
	}
	assert.Equal(t, 1, countRole(e.Objects(), RoleGuide))
}

func TestAddObjectDuplicateID(t *testing.T) {
	e, _ := readyEngine(t)
	obj := &Object{
		ID:    "box",
		Kind:  KindRect,
		Shape: &ShapeProps{Width: 10, Height: 10, Fill: "#000"},
	}
	require.NoError(t, e.AddObject(obj))
	assert.ErrorIs(t, e.AddObject(obj), ErrInvalidMutation)
	assert.Len(t, e.Objects(), 2)
}

func TestGuideStaysAtBack(t *testing.T) {
	e, _ := readyEngine(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, e.AddShape(ShapeSpec{Kind: ShapeRect, Fill: "#123456", Size: float64(5 + i)}))
	}
	require.NoError(t, e.SetDrawingMode(true))
	require.NoError(t, e.CommitStroke([]Point{{X: 1, Y: 1}, {X: 2, Y: 2}}))

	objs := e.Objects()
	assert.Equal(t, RoleGuide, objs[0].Role)
	assert.Equal(t, 1, countRole(objs, RoleGuide))
}

func TestGuideCannotBeChanged(t *testing.T) {
	e, _ := readyEngine(t)
	guide := e.Objects()[0]

	assert.ErrorIs(t, e.Select(guide.ID), ErrInvalidMutation)

	// Force the guide active, as a stray pointer event could.
	e.mu.Lock()
	e.scene.active = e.scene.guide()
	e.mu.Unlock()

	assert.ErrorIs(t, e.DeleteActiveObject(), ErrInvalidMutation)
	assert.ErrorIs(t, e.UpdateActiveObjectProperty("left", 0), ErrInvalidMutation)

	objs := e.Objects()
	require.Equal(t, RoleGuide, objs[0].Role)
	assert.Equal(t, guide.ID, objs[0].ID)
	assert.Equal(t, guide.Left, objs[0].Left)
}

func TestSelect(t *testing.T) {
	e, _ := readyEngine(t)
	require.NoError(t, e.AddShape(ShapeSpec{Kind: ShapeRect, Fill: "#000", Size: 10}))
	first := e.Active()
	require.NoError(t, e.AddShape(ShapeSpec{Kind: ShapeCircle, Fill: "#fff", Size: 10}))

	require.NoError(t, e.Select(first.ID))
	assert.Equal(t, first.ID, e.Active().ID)

	e.ClearSelection()
	assert.Nil(t, e.Active())

	assert.ErrorIs(t, e.Select("missing"), ErrInvalidMutation)

	require.NoError(t, e.SetDrawingMode(true))
	assert.ErrorIs(t, e.Select(first.ID), ErrInvalidMutation)
}

func TestUpdateActiveObjectProperty(t *testing.T) {
	t.Run("no selection is a no-op", func(t *testing.T) {
		e, _ := readyEngine(t)
		assert.NoError(t, e.UpdateActiveObjectProperty("fill", "#ff0000"))
	})

	e, _ := readyEngine(t)
	require.NoError(t, e.AddText(TextSpec{Content: "HELLO", FontSize: 20}))

	tests := []struct {
		name    string
		prop    string
		value   any
		wantErr bool
		check   func(t *testing.T, o *Object)
	}{
		{"fill", "fill", "#ff0000", false, func(t *testing.T, o *Object) {
			assert.Equal(t, "#ff0000", o.Text.Fill)
		}},
		{"font size from string", "fontSize", "32", false, func(t *testing.T, o *Object) {
			assert.Equal(t, 32.0, o.Text.FontSize)
		}},
		{"bold", "fontWeight", "bold", false, func(t *testing.T, o *Object) {
			assert.Equal(t, "bold", o.Text.FontWeight)
		}},
		{"underline", "underline", true, false, func(t *testing.T, o *Object) {
			assert.True(t, o.Text.Underline)
		}},
		{"move", "left", 10, false, func(t *testing.T, o *Object) {
			assert.Equal(t, 10.0, o.Left)
		}},
		{"text", "text", "WORLD", false, func(t *testing.T, o *Object) {
			assert.Equal(t, "WORLD", o.Text.Content)
		}},
		{"bad colour", "fill", "#nothex", true, nil},
		{"opacity out of range", "opacity", 1.5, true, nil},
		{"radius on text", "radius", 4, true, nil},
		{"unknown", "angle", 45, true, nil},
		{"bad weight", "fontWeight", "heavy", true, nil},
		{"NaN position", "left", "NaN", true, nil},
		{"infinite position", "top", "-Inf", true, nil},
		{"infinite font size", "fontSize", math.Inf(1), true, nil},
		{"NaN opacity", "opacity", math.NaN(), true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := e.Active()
			err := e.UpdateActiveObjectProperty(tt.prop, tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMutation)
				assert.Equal(t, before, e.Active(), "failed update must not change the object")
				return
			}
			require.NoError(t, err)
			tt.check(t, e.Active())
		})
	}
}

func TestDeleteActiveObject(t *testing.T) {
	t.Run("no selection is a no-op", func(t *testing.T) {
		e, _ := readyEngine(t)
		assert.NoError(t, e.DeleteActiveObject())
		assert.Len(t, e.Objects(), 2)
	})

	t.Run("add then delete restores design count", func(t *testing.T) {
		e, _ := readyEngine(t)
		design := func() int {
			n := 0
			for _, o := range e.Objects() {
				if o.IsDesign() {
					n++
				}
			}
			return n
		}
		before := design()

		require.NoError(t, e.AddShape(ShapeSpec{Kind: ShapeRect, Fill: "#000", Size: 10}))
		assert.Equal(t, before+1, design())
		require.NoError(t, e.DeleteActiveObject())

		assert.Equal(t, before, design())
		assert.Nil(t, e.Active())
		assert.Equal(t, 1, countRole(e.Objects(), RoleGuide))
	})
}

func TestBusyGatewayDropsMutation(t *testing.T) {
	e, _ := readyEngine(t)
	require.NoError(t, e.AddText(TextSpec{Content: "A", FontSize: 20}))
	before := e.Objects()

	e.inProgress.Store(true)
	assert.ErrorIs(t, e.AddText(TextSpec{Content: "B", FontSize: 20}), ErrBusy)
	assert.ErrorIs(t, e.UpdateActiveObjectProperty("fill", "#ff0000"), ErrBusy)
	assert.ErrorIs(t, e.DeleteActiveObject(), ErrBusy)
	assert.ErrorIs(t, e.CommitStroke([]Point{{X: 1, Y: 1}}), ErrBusy)
	e.inProgress.Store(false)

	after := e.Objects()
	require.Len(t, after, len(before))
	assert.Equal(t, "#000000", after[1].Text.Fill)
	assert.NoError(t, e.AddText(TextSpec{Content: "B", FontSize: 20}))
}
