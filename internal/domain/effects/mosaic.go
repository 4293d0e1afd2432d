package effects

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Mosaic pixelates rect in place: the region is shrunk by a factor of
// blocks per axis with bilinear sampling, then blown back up with
// nearest neighbour, so each surviving cell is roughly blocks pixels
// across.
func Mosaic(img *image.RGBA, rect image.Rectangle, blocks int) {
	if blocks < 1 {
		blocks = 1
	}
	sw := rect.Dx() / blocks
	if sw < 1 {
		sw = 1
	}
	sh := rect.Dy() / blocks
	if sh < 1 {
		sh = 1
	}
	region := img.SubImage(rect).(*image.RGBA)
	small := image.NewRGBA(image.Rect(0, 0, sw, sh))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), region, rect, xdraw.Src, nil)
	xdraw.NearestNeighbor.Scale(img, rect, small, small.Bounds(), xdraw.Src, nil)
}
