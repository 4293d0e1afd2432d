// Package effects implements the pixel-domain clip effects (mosaic, blur)
// and the keyframe interpolation that positions their regions over
// clip-local time.
package effects

import (
	"image"

	"github.com/avroom/reelcut/internal/project"
)

// Region is a normalized rectangle: all fields in [0,1] relative to the
// frame.
type Region struct {
	X, Y, W, H float64
}

// DefaultRegion covers the whole frame.
func DefaultRegion() Region { return Region{X: 0, Y: 0, W: 1, H: 1} }

// RegionAt resolves an effect's region at clip-local time t. With no
// keyframes the whole frame is affected. Outside the keyframe span the
// nearest endpoint's region holds; between two keyframes each component
// interpolates linearly, with a zero-length bracket collapsing to its
// left keyframe.
func RegionAt(keyframes []project.Keyframe, t float64) Region {
	if len(keyframes) == 0 {
		return DefaultRegion()
	}
	first := keyframes[0]
	if t <= first.T {
		return Region{X: first.X, Y: first.Y, W: first.W, H: first.H}
	}
	last := keyframes[len(keyframes)-1]
	if t >= last.T {
		return Region{X: last.X, Y: last.Y, W: last.W, H: last.H}
	}
	for i := 0; i+1 < len(keyframes); i++ {
		left, right := keyframes[i], keyframes[i+1]
		if left.T <= t && t <= right.T {
			span := right.T - left.T
			factor := 0.0
			if span > 0 {
				factor = (t - left.T) / span
			}
			return Region{
				X: left.X + (right.X-left.X)*factor,
				Y: left.Y + (right.Y-left.Y)*factor,
				W: left.W + (right.W-left.W)*factor,
				H: left.H + (right.H-left.H)*factor,
			}
		}
	}
	return Region{X: last.X, Y: last.Y, W: last.W, H: last.H}
}

// PixelRect converts the normalized region to pixels by truncation,
// clamping the origin to the frame and forcing at least a 1x1 area.
func (r Region) PixelRect(width, height int) image.Rectangle {
	x := int(r.X * float64(width))
	y := int(r.Y * float64(height))
	w := int(r.W * float64(width))
	h := int(r.H * float64(height))
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return image.Rect(x, y, x+w, y+h)
}

// Apply runs one effect on the frame in place, resolving its region at
// clip-local time t against the frame's own dimensions.
func Apply(img *image.RGBA, e project.Effect, t float64) {
	b := img.Bounds()
	rect := RegionAt(e.Keyframes, t).PixelRect(b.Dx(), b.Dy()).Add(b.Min).Intersect(b)
	if rect.Empty() {
		return
	}
	switch e.Kind {
	case project.EffectMosaic:
		Mosaic(img, rect, e.Mosaic.Blocks)
	case project.EffectBlur:
		Blur(img, rect, e.Blur.Radius)
	}
}
