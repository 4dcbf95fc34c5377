package vecmath

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestRectCenteredOnOrigin(t *testing.T) {
	r := RectCenteredOnOrigin(4, 2)
	assert.Equal(t, mgl32.Vec4{-2, -1, 2, 1}, r)
	assert.Equal(t, float32(8), RectArea(r))
	assert.Equal(t, mgl32.Vec2{0, 0}, RectCenter(r))
}

func TestRectTranslate(t *testing.T) {
	r := RectTranslate(RectCenteredOnOrigin(2, 2), mgl32.Vec2{3, -1})
	assert.Equal(t, mgl32.Vec4{2, -2, 4, 0}, r)
	assert.Equal(t, mgl32.Vec2{3, -1}, RectCenter(r))
}

func TestRectConstrain(t *testing.T) {
	border := mgl32.Vec4{-20, -20, 20, 20}

	tests := []struct {
		name string
		in   mgl32.Vec4
		want mgl32.Vec4
	}{
		{"inside unchanged", mgl32.Vec4{-2, -2, 2, 2}, mgl32.Vec4{-2, -2, 2, 2}},
		{"shift left", mgl32.Vec4{18, 0, 22, 4}, mgl32.Vec4{16, 0, 20, 4}},
		{"shift right", mgl32.Vec4{-25, 0, -21, 4}, mgl32.Vec4{-20, 0, -16, 4}},
		{"shift down and up", mgl32.Vec4{0, 19, 4, 23}, mgl32.Vec4{0, 16, 4, 20}},
		{"wider than border", mgl32.Vec4{-30, 0, 30, 4}, mgl32.Vec4{-20, 0, 20, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RectConstrain(tt.in, border)
			assert.Equal(t, tt.want, got)
			assert.True(t, RectContains(border, got))
		})
	}
}

func TestVec2Mul(t *testing.T) {
	assert.Equal(t, mgl32.Vec2{3, -8}, Vec2Mul(mgl32.Vec2{1, 2}, mgl32.Vec2{3, -4}))
}

func TestRectPerimeterPoint(t *testing.T) {
	r := mgl32.Vec4{0, 0, 2, 2}
	assert.Equal(t, mgl32.Vec2{0, 0}, RectPerimeterPoint(r, 0))
	assert.Equal(t, mgl32.Vec2{2, 0}, RectPerimeterPoint(r, 0.25))
	assert.Equal(t, mgl32.Vec2{2, 2}, RectPerimeterPoint(r, 0.5))
	assert.Equal(t, mgl32.Vec2{0, 2}, RectPerimeterPoint(r, 0.75))
	assert.Equal(t, mgl32.Vec2{1, 1}, RectPerimeterPoint(mgl32.Vec4{1, 1, 1, 1}, 0.3))
}
