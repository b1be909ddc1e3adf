package productbg

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func squareMask(size, lo, hi int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, size, size))
	for y := lo; y < hi; y++ {
		for x := lo; x < hi; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return mask
}

func maskBounds(m *image.Gray) image.Rectangle {
	if m == nil {
		return image.Rectangle{}
	}
	return m.Rect
}

func TestErode(t *testing.T) {
	full := make([]bool, 25)
	for i := range full {
		full[i] = true
	}

	t.Run("OutsideUnset", func(t *testing.T) {
		out := erode(full, 5, 5, 3, false)
		for y := 0; y < 5; y++ {
			for x := 0; x < 5; x++ {
				want := x >= 1 && x <= 3 && y >= 1 && y <= 3
				if out[y*5+x] != want {
					t.Errorf("at (%d,%d) expected %v", x, y, want)
				}
			}
		}
	})

	t.Run("OutsideSet", func(t *testing.T) {
		out := erode(full, 5, 5, 3, true)
		for i, v := range out {
			if !v {
				t.Errorf("pixel %d should survive erosion", i)
			}
		}
	})

	t.Run("RemovesSpeckle", func(t *testing.T) {
		set := make([]bool, 25)
		set[12] = true
		out := erode(set, 5, 5, 3, true)
		if out[12] {
			t.Errorf("isolated pixel should be eroded")
		}
	})

	t.Run("EvenSize", func(t *testing.T) {
		out := erode(full, 5, 5, 2, false)
		// Window spans [-1, 0] on each axis.
		for y := 0; y < 5; y++ {
			for x := 0; x < 5; x++ {
				want := x >= 1 && y >= 1
				if out[y*5+x] != want {
					t.Errorf("at (%d,%d) expected %v", x, y, want)
				}
			}
		}
	})
}

func TestHannKernel(t *testing.T) {
	for _, radius := range []int{1, 4, 15} {
		kernel := hannKernel(radius)
		if len(kernel) != 2*radius+1 {
			t.Fatalf("radius %d: expected %d taps, got %d", radius, 2*radius+1, len(kernel))
		}
		var sum float64
		for i, v := range kernel {
			if v <= 0 {
				t.Errorf("radius %d: tap %d is not positive", radius, i)
			}
			if math.Abs(v-kernel[len(kernel)-1-i]) > 1e-12 {
				t.Errorf("radius %d: kernel is not symmetric at %d", radius, i)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("radius %d: kernel sums to %v", radius, sum)
		}
	}
}

func TestConvolve_PreservesConstant(t *testing.T) {
	w, h := 7, 5
	src := make([]float64, w*h)
	for i := range src {
		src[i] = 0.25
	}
	dst := make([]float64, w*h)
	tmp := make([]float64, w*h)

	convolve(src, dst, tmp, w, h, hannKernel(4))
	for i, v := range dst {
		if math.Abs(v-0.25) > 1e-9 {
			t.Fatalf("pixel %d: expected 0.25, got %v", i, v)
		}
	}
}

func TestRefineMask(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 60, 60))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	mask := squareMask(60, 15, 45)

	t.Run("CertainRegionsKept", func(t *testing.T) {
		opts := MattingOptions{AlphaMatting: true, ForegroundThreshold: 240, BackgroundThreshold: 10}
		out, err := refineMask(img, mask, opts, newMattingBufferPool())
		if err != nil {
			t.Fatalf("refineMask failed: %v", err)
		}
		for i := range out.Pix {
			if out.Pix[i] != mask.Pix[i] {
				t.Fatalf("pixel %d: expected %d, got %d", i, mask.Pix[i], out.Pix[i])
			}
		}
	})

	t.Run("ErosionOpensUnknownBand", func(t *testing.T) {
		opts := MattingOptions{AlphaMatting: true, ForegroundThreshold: 240, BackgroundThreshold: 10, ErodeSize: 10}
		out, err := refineMask(img, mask, opts, newMattingBufferPool())
		if err != nil {
			t.Fatalf("refineMask failed: %v", err)
		}

		if out.GrayAt(30, 30).Y != 255 {
			t.Errorf("deep foreground should stay opaque, got %d", out.GrayAt(30, 30).Y)
		}
		if out.GrayAt(2, 2).Y != 0 {
			t.Errorf("deep background should stay transparent, got %d", out.GrayAt(2, 2).Y)
		}
		edge := out.GrayAt(15, 30).Y
		if edge == 0 || edge == 255 {
			t.Errorf("edge pixel should be feathered, got %d", edge)
		}
	})

	t.Run("NoCertainForeground", func(t *testing.T) {
		big := image.NewNRGBA(image.Rect(0, 0, 120, 120))
		opts := MattingOptions{AlphaMatting: true, ForegroundThreshold: 270, BackgroundThreshold: 20, ErodeSize: 15}
		out, err := refineMask(big, squareMask(120, 20, 100), opts, newMattingBufferPool())
		if err != nil {
			t.Fatalf("refineMask failed: %v", err)
		}
		if out.GrayAt(60, 60).Y < 250 {
			t.Errorf("interior should still resolve to foreground, got %d", out.GrayAt(60, 60).Y)
		}
		if out.GrayAt(1, 1).Y != 0 {
			t.Errorf("background should stay transparent, got %d", out.GrayAt(1, 1).Y)
		}
	})

	t.Run("EmptyMask", func(t *testing.T) {
		empty := image.NewGray(image.Rect(0, 0, 0, 0))
		out, err := refineMask(image.NewNRGBA(image.Rect(0, 0, 0, 0)), empty, MattingOptions{}, newMattingBufferPool())
		if err != nil {
			t.Fatalf("refineMask failed: %v", err)
		}
		if !out.Bounds().Empty() {
			t.Errorf("expected empty output, got %v", out.Bounds())
		}
	})

	t.Run("MismatchedMask", func(t *testing.T) {
		opts := MattingOptions{AlphaMatting: true, ForegroundThreshold: 240, BackgroundThreshold: 10, ErodeSize: 10}
		for _, m := range []*image.Gray{squareMask(80, 15, 45), squareMask(30, 5, 20), nil} {
			if _, err := refineMask(img, m, opts, newMattingBufferPool()); err == nil {
				t.Errorf("expected error for mask %v against a 60x60 image", maskBounds(m))
			}
		}
	})
}

func TestUnitToByte(t *testing.T) {
	tests := []struct {
		in   float64
		want uint8
	}{
		{-0.5, 0}, {0, 0}, {0.5, 128}, {1, 255}, {1.7, 255},
	}
	for _, tt := range tests {
		if got := unitToByte(tt.in); got != tt.want {
			t.Errorf("unitToByte(%v) = %d; want %d", tt.in, got, tt.want)
		}
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, min, max int
		want        int
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{0, 0, 10, 0},
		{10, 0, 10, 10},
	}

	for _, tt := range tests {
		if got := clamp(tt.v, tt.min, tt.max); got != tt.want {
			t.Errorf("clamp(%d, %d, %d) = %d; want %d", tt.v, tt.min, tt.max, got, tt.want)
		}
	}
}
