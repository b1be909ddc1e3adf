package productbg

import (
	"context"
	"image"
	"image/color"
	"testing"
)

func TestNormalizeMask(t *testing.T) {
	t.Run("Ramp", func(t *testing.T) {
		data := []float32{-2, 0, 2, 6}
		mask := normalizeMask(data, 2)
		want := []uint8{0, 64, 128, 255}
		for i, v := range want {
			if mask.Pix[i] != v {
				t.Errorf("pixel %d: expected %d, got %d", i, v, mask.Pix[i])
			}
		}
	})

	t.Run("Constant", func(t *testing.T) {
		mask := normalizeMask([]float32{0.7, 0.7, 0.7, 0.7}, 2)
		for i, v := range mask.Pix {
			if v != 0 {
				t.Errorf("pixel %d: expected 0 for constant output, got %d", i, v)
			}
		}
	})

	t.Run("IgnoresTrailingData", func(t *testing.T) {
		mask := normalizeMask([]float32{0, 1, 1, 0, 100}, 2)
		if mask.Pix[1] != 255 {
			t.Errorf("expected 255, got %d", mask.Pix[1])
		}
	})
}

func TestToGray(t *testing.T) {
	src := image.NewRGBA(image.Rect(3, 4, 5, 5))
	src.SetRGBA(3, 4, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	src.SetRGBA(4, 4, color.RGBA{R: 200, G: 200, B: 200, A: 255})

	g := toGray(src)
	if g.Bounds() != image.Rect(0, 0, 2, 1) {
		t.Fatalf("unexpected bounds %v", g.Bounds())
	}
	if g.Pix[0] != 10 || g.Pix[1] != 200 {
		t.Errorf("unexpected values %v", g.Pix)
	}

	same := image.NewGray(image.Rect(0, 0, 2, 2))
	if toGray(same) != same {
		t.Errorf("origin-anchored gray image should be returned as is")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Errorf("expected error for nil config")
	}
	if _, err := New(&Config{Model: "unknown"}); err == nil {
		t.Errorf("expected error for unknown model")
	}
}

func TestRemBG_SegmentRejectsInvalidOptions(t *testing.T) {
	r := &RemBG{}
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	if _, err := r.Segment(context.Background(), img, MattingOptions{ErodeSize: -1}); err == nil {
		t.Errorf("expected validation error")
	}
	if _, err := r.Segment(context.Background(), image.NewNRGBA(image.Rect(0, 0, 0, 0)), MattingOptions{}); err == nil {
		t.Errorf("expected error for empty image")
	}
}
