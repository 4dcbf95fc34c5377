// Package vecmath holds the rect helpers used for camera tracking.
// Rects are mgl32.Vec4 values laid out as [x0, y0, x1, y1].
package vecmath

import "github.com/go-gl/mathgl/mgl32"

// RectCenteredOnOrigin returns a w by h rect centered at (0, 0).
func RectCenteredOnOrigin(w, h float32) mgl32.Vec4 {
	return mgl32.Vec4{-w / 2, -h / 2, w / 2, h / 2}
}

// RectWidth returns x1 - x0.
func RectWidth(r mgl32.Vec4) float32 {
	return r[2] - r[0]
}

// RectHeight returns y1 - y0.
func RectHeight(r mgl32.Vec4) float32 {
	return r[3] - r[1]
}

// RectArea returns width times height.
func RectArea(r mgl32.Vec4) float32 {
	return RectWidth(r) * RectHeight(r)
}

// RectCenter returns the midpoint of the rect.
func RectCenter(r mgl32.Vec4) mgl32.Vec2 {
	return mgl32.Vec2{(r[0] + r[2]) / 2, (r[1] + r[3]) / 2}
}

// RectTranslate offsets every corner by v.
func RectTranslate(r mgl32.Vec4, v mgl32.Vec2) mgl32.Vec4 {
	return mgl32.Vec4{r[0] + v[0], r[1] + v[1], r[2] + v[0], r[3] + v[1]}
}

// RectConstrain moves r so that it lies inside border, keeping its size.
// On an axis where r is larger than border, the result spans border exactly.
func RectConstrain(r, border mgl32.Vec4) mgl32.Vec4 {
	x0, x1 := constrainSpan(r[0], r[2], border[0], border[2])
	y0, y1 := constrainSpan(r[1], r[3], border[1], border[3])
	return mgl32.Vec4{x0, y0, x1, y1}
}

func constrainSpan(lo, hi, bmin, bmax float32) (float32, float32) {
	if hi-lo >= bmax-bmin {
		return bmin, bmax
	}
	if lo < bmin {
		return bmin, hi + (bmin - lo)
	}
	if hi > bmax {
		return lo - (hi - bmax), bmax
	}
	return lo, hi
}

// RectContains reports whether inner lies entirely inside outer.
func RectContains(outer, inner mgl32.Vec4) bool {
	return inner[0] >= outer[0] && inner[1] >= outer[1] &&
		inner[2] <= outer[2] && inner[3] <= outer[3]
}

// Vec2Mul multiplies a and b component by component.
func Vec2Mul(a, b mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{a[0] * b[0], a[1] * b[1]}
}

// RectPerimeterPoint returns the point at fraction t (0..1) along the rect
// outline, walking clockwise from the top-left corner.
func RectPerimeterPoint(r mgl32.Vec4, t float32) mgl32.Vec2 {
	w, h := RectWidth(r), RectHeight(r)
	perim := 2 * (w + h)
	if perim <= 0 {
		return RectCenter(r)
	}
	t -= float32(int(t))
	if t < 0 {
		t++
	}
	d := t * perim
	switch {
	case d < w:
		return mgl32.Vec2{r[0] + d, r[1]}
	case d < w+h:
		return mgl32.Vec2{r[2], r[1] + (d - w)}
	case d < 2*w+h:
		return mgl32.Vec2{r[2] - (d - w - h), r[3]}
	default:
		return mgl32.Vec2{r[0], r[3] - (d - 2*w - h)}
	}
}
