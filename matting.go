package productbg

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/mjibson/go-dsp/window"
)

const (
	minMattingRadius = 4
	mattingEps       = 1e-3
)

// refineMask builds a trimap from the raw mask and resolves the unknown band
// with a guided filter steered by the source luminance.
func refineMask(img image.Image, mask *image.Gray, opts MattingOptions, pool *mattingBufferPool) (*image.Gray, error) {
	if err := checkMaskSize(img, mask); err != nil {
		return nil, err
	}
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out, nil
	}

	fg := make([]bool, w*h)
	bg := make([]bool, w*h)
	for y := range h {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		for x, v := range row {
			fg[y*w+x] = int(v) > opts.ForegroundThreshold
			bg[y*w+x] = int(v) < opts.BackgroundThreshold
		}
	}
	if opts.ErodeSize > 0 {
		fg = erode(fg, w, h, opts.ErodeSize, false)
		bg = erode(bg, w, h, opts.ErodeSize, true)
	}

	buf := pool.get(w * h)
	defer pool.put(buf)

	gray := imaging.Grayscale(img)
	for y := range h {
		for x := range w {
			i := y*w + x
			buf.guide[i] = float64(gray.Pix[y*gray.Stride+x*4]) / 255.0
			buf.mask[i] = float64(mask.Pix[y*mask.Stride+x]) / 255.0
		}
	}

	radius := max(opts.ErodeSize, minMattingRadius)
	guidedFilter(buf, w, h, hannKernel(radius))

	for i := range out.Pix {
		switch {
		case bg[i]:
			out.Pix[i] = 0
		case fg[i]:
			out.Pix[i] = 255
		default:
			out.Pix[i] = unitToByte(buf.mask[i])
		}
	}
	return out, nil
}

func checkMaskSize(img image.Image, mask *image.Gray) error {
	if mask == nil {
		return fmt.Errorf("nil mask")
	}
	if got, want := mask.Rect.Size(), img.Bounds().Size(); got != want {
		return fmt.Errorf("mask is %v, image is %v", got, want)
	}
	return nil
}

// guidedFilter replaces buf.mask with the guided filter of buf.mask by
// buf.guide. Local means are taken with the separable kernel.
func guidedFilter(buf *mattingBuffer, w, h int, kernel []float64) {
	I, p := buf.guide, buf.mask

	for i := range I {
		buf.corrI[i] = I[i] * I[i]
		buf.corrIP[i] = I[i] * p[i]
	}
	convolve(I, buf.meanI, buf.tmp, w, h, kernel)
	convolve(p, buf.meanP, buf.tmp, w, h, kernel)
	convolve(buf.corrI, buf.corrI, buf.tmp, w, h, kernel)
	convolve(buf.corrIP, buf.corrIP, buf.tmp, w, h, kernel)

	// corrI becomes a, corrIP becomes b.
	for i := range I {
		varI := buf.corrI[i] - buf.meanI[i]*buf.meanI[i]
		covIP := buf.corrIP[i] - buf.meanI[i]*buf.meanP[i]
		a := covIP / (varI + mattingEps)
		buf.corrI[i] = a
		buf.corrIP[i] = buf.meanP[i] - a*buf.meanI[i]
	}
	convolve(buf.corrI, buf.corrI, buf.tmp, w, h, kernel)
	convolve(buf.corrIP, buf.corrIP, buf.tmp, w, h, kernel)

	for i := range p {
		p[i] = buf.corrI[i]*I[i] + buf.corrIP[i]
	}
}

// hannKernel returns 2*radius+1 normalized Hann weights.
func hannKernel(radius int) []float64 {
	// Drop the zero-valued end points of the window.
	full := window.Hann(2*radius + 3)
	kernel := full[1 : len(full)-1]
	var sum float64
	for _, v := range kernel {
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// convolve applies kernel along rows then columns, clamping at the borders.
// src and dst may alias; tmp must not alias either.
func convolve(src, dst, tmp []float64, w, h int, kernel []float64) {
	radius := len(kernel) / 2

	for y := range h {
		row := y * w
		for x := range w {
			var sum float64
			for k, weight := range kernel {
				xi := clamp(x+k-radius, 0, w-1)
				sum += weight * src[row+xi]
			}
			tmp[row+x] = sum
		}
	}

	for x := range w {
		for y := range h {
			var sum float64
			for k, weight := range kernel {
				yi := clamp(y+k-radius, 0, h-1)
				sum += weight * tmp[yi*w+x]
			}
			dst[y*w+x] = sum
		}
	}
}

// erode shrinks set with a size×size square. outsideSet controls whether
// pixels beyond the image border count as members.
func erode(set []bool, w, h, size int, outsideSet bool) []bool {
	lo := size / 2
	hi := size - 1 - lo

	stride := w + 1
	integral := make([]int, stride*(h+1))
	for y := range h {
		rowSum := 0
		for x := range w {
			if set[y*w+x] {
				rowSum++
			}
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	out := make([]bool, w*h)
	for y := range h {
		for x := range w {
			if !set[y*w+x] {
				continue
			}
			x0, y0, x1, y1 := x-lo, y-lo, x+hi, y+hi
			if !outsideSet && (x0 < 0 || y0 < 0 || x1 >= w || y1 >= h) {
				continue
			}
			x0, y0 = max(x0, 0), max(y0, 0)
			x1, y1 = min(x1, w-1), min(y1, h-1)
			area := (x1 - x0 + 1) * (y1 - y0 + 1)
			count := integral[(y1+1)*stride+x1+1] - integral[y0*stride+x1+1] -
				integral[(y1+1)*stride+x0] + integral[y0*stride+x0]
			out[y*w+x] = count == area
		}
	}
	return out
}

func unitToByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
