package effects

import (
	"image"
	"math"
)

// Blur applies a separable Gaussian blur to rect in place. The kernel
// width is derived from radius as the nearest odd size at or below it,
// and sigma follows the usual auto rule for that width. Samples past
// the rect edge mirror back inside, edge pixel included, so the blur
// never reads pixels outside the region.
func Blur(img *image.RGBA, rect image.Rectangle, radius int) {
	if radius < 1 {
		radius = 1
	}
	ksize := (radius/2)*2 + 1
	if ksize < 3 {
		return
	}
	kernel := gaussianKernel(ksize)
	c := ksize / 2
	w, h := rect.Dx(), rect.Dy()

	src := make([]float64, w*h*4)
	for y := 0; y < h; y++ {
		row := img.PixOffset(rect.Min.X, rect.Min.Y+y)
		base := y * w * 4
		for i := 0; i < w*4; i++ {
			src[base+i] = float64(img.Pix[row+i])
		}
	}

	tmp := make([]float64, w*h*4)
	for y := 0; y < h; y++ {
		base := y * w * 4
		for x := 0; x < w; x++ {
			var acc [4]float64
			for j := 0; j < ksize; j++ {
				o := base + reflect(x+j-c, w)*4
				k := kernel[j]
				acc[0] += k * src[o]
				acc[1] += k * src[o+1]
				acc[2] += k * src[o+2]
				acc[3] += k * src[o+3]
			}
			o := base + x*4
			tmp[o], tmp[o+1], tmp[o+2], tmp[o+3] = acc[0], acc[1], acc[2], acc[3]
		}
	}

	for y := 0; y < h; y++ {
		row := img.PixOffset(rect.Min.X, rect.Min.Y+y)
		for x := 0; x < w; x++ {
			var acc [4]float64
			for j := 0; j < ksize; j++ {
				o := reflect(y+j-c, h)*w*4 + x*4
				k := kernel[j]
				acc[0] += k * tmp[o]
				acc[1] += k * tmp[o+1]
				acc[2] += k * tmp[o+2]
				acc[3] += k * tmp[o+3]
			}
			for ch := 0; ch < 4; ch++ {
				v := int(acc[ch] + 0.5)
				if v > 255 {
					v = 255
				}
				img.Pix[row+x*4+ch] = uint8(v)
			}
		}
	}
}

func gaussianKernel(ksize int) []float64 {
	sigma := 0.3*((float64(ksize)-1)*0.5-1) + 0.8
	center := float64(ksize-1) / 2
	kernel := make([]float64, ksize)
	var sum float64
	for i := range kernel {
		d := float64(i) - center
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// reflect mirrors an out-of-range index back into [0,n).
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - i - 1
		}
	}
	return i
}
