package productbg

import (
	"image"

	"github.com/disintegration/imaging"
)

// AlphaBounds returns the smallest rectangle enclosing every pixel whose
// alpha is not zero. ok is false when the image is fully transparent.
func AlphaBounds(img image.Image) (image.Rectangle, bool) {
	return detectObjectBounds(img)
}

func detectObjectBounds(img image.Image) (image.Rectangle, bool) {
	bounds := img.Bounds()
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X-1, bounds.Min.Y-1
	foundPixel := false

	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			i := nrgba.PixOffset(bounds.Min.X, y)
			for x := bounds.Min.X; x < bounds.Max.X; x, i = x+1, i+4 {
				if nrgba.Pix[i+3] == 0 {
					continue
				}
				foundPixel = true
				minX, maxX = min(minX, x), max(maxX, x)
				minY, maxY = min(minY, y), max(maxY, y)
			}
		}
	} else {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				_, _, _, a := img.At(x, y).RGBA()
				if a == 0 {
					continue
				}
				foundPixel = true
				minX, maxX = min(minX, x), max(maxX, x)
				minY, maxY = min(minY, y), max(maxY, y)
			}
		}
	}

	if !foundPixel {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// trim crops img to its alpha bounds. A fully transparent image is returned
// whole, with trimmed=false.
func trim(img image.Image) (cropped *image.NRGBA, rect image.Rectangle, trimmed bool) {
	rect, ok := AlphaBounds(img)
	if !ok {
		return imaging.Clone(img), img.Bounds(), false
	}
	return imaging.Crop(img, rect), rect, true
}
