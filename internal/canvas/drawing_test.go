package canvas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawingMode(t *testing.T) {
	e, _ := readyEngine(t)
	require.NoError(t, e.AddText(TextSpec{Content: "HELLO", FontSize: 20}))
	before := e.Objects()

	require.NoError(t, e.SetDrawingMode(true))
	assert.True(t, e.DrawingMode())
	assert.Nil(t, e.Active(), "drawing drops the selection")
	assert.Len(t, e.Objects(), len(before))

	require.NoError(t, e.SetDrawingMode(false))
	assert.False(t, e.DrawingMode())
	assert.Len(t, e.Objects(), len(before))
}

func TestCommitStroke(t *testing.T) {
	t.Run("requires drawing mode", func(t *testing.T) {
		e, _ := readyEngine(t)
		assert.ErrorIs(t, e.CommitStroke([]Point{{X: 1, Y: 1}}), ErrInvalidMutation)
		assert.Equal(t, 1, countRole(e.Objects(), RolePlaceholder))
	})

	t.Run("rejects empty stroke", func(t *testing.T) {
		e, _ := readyEngine(t)
		require.NoError(t, e.SetDrawingMode(true))
		assert.ErrorIs(t, e.CommitStroke(nil), ErrInvalidMutation)
	})

	t.Run("brush changes apply to the next stroke only", func(t *testing.T) {
		e, rec := readyEngine(t)
		require.NoError(t, e.SetDrawingMode(true))

		require.NoError(t, e.SetBrushColor("#ff0000"))
		require.NoError(t, e.CommitStroke([]Point{{X: 10, Y: 10}, {X: 50, Y: 50}}))
		require.NoError(t, e.SetBrushColor("#0000ff"))
		require.NoError(t, e.SetBrushWidth(12))
		require.NoError(t, e.CommitStroke([]Point{{X: 100, Y: 100}}))

		var paths []*Object
		for _, o := range e.Objects() {
			if o.Kind == KindPath {
				paths = append(paths, o)
			}
		}
		require.Len(t, paths, 2)
		assert.Equal(t, "#ff0000", paths[0].Path.Color)
		assert.Equal(t, 5.0, paths[0].Path.Width)
		assert.Equal(t, "#0000ff", paths[1].Path.Color)
		assert.Equal(t, 12.0, paths[1].Path.Width)

		assert.Equal(t, 0, countRole(e.Objects(), RolePlaceholder))
		assert.Nil(t, e.Active(), "strokes are not selected while drawing")
		assert.Equal(t, Brush{Color: "#0000ff", Width: 12}, e.Brush())

		require.Eventually(t, func() bool { return rec.changeCount() == 1 }, time.Second, 5*time.Millisecond)
		img := decodeExport(t, rec.lastChange())
		// Midpoint of the red stroke at export scale.
		r, _, b, a := img.At(60, 60).RGBA()
		assert.Greater(t, a>>8, uint32(250))
		assert.Greater(t, r>>8, b>>8)
	})
}

func TestBrushValidation(t *testing.T) {
	e, _ := readyEngine(t)

	assert.ErrorIs(t, e.SetBrushWidth(0), ErrInvalidMutation)
	assert.ErrorIs(t, e.SetBrushWidth(-3), ErrInvalidMutation)
	assert.ErrorIs(t, e.SetBrushColor("bogus"), ErrInvalidMutation)
	assert.Equal(t, Brush{Color: "#000000", Width: 5}, e.Brush())
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
		alpha   float64
	}{
		{"#ff0000", false, 1},
		{"ff0000", false, 1},
		{"#f00", false, 1},
		{"#ff000080", false, 128.0 / 255},
		{"Red", false, 1},
		{"transparent", false, 0},
		{"", true, 0},
		{"#12345", true, 0},
		{"#gg0000", true, 0},
		{"chartreuse-ish", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.alpha, c.A, 0.01)
		})
	}
}
