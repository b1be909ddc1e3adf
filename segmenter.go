package productbg

import (
	"context"
	"fmt"
	"image"
	"image/color"
)

// Segmenter turns a source image into a same-size cutout whose alpha channel
// marks foreground coverage.
type Segmenter interface {
	Segment(ctx context.Context, img image.Image, opts MattingOptions) (*image.NRGBA, error)
}

// MattingOptions configures the optional edge refinement applied to the raw
// model mask.
type MattingOptions struct {
	AlphaMatting bool
	// ForegroundThreshold is the mask value above which a pixel is certain
	// foreground. Values above 255 leave no certain foreground.
	ForegroundThreshold int
	// BackgroundThreshold is the mask value below which a pixel is certain background.
	BackgroundThreshold int
	// ErodeSize is the side of the square used to shrink both certain regions.
	ErodeSize int
	// PostProcessMask binarizes the raw mask at its Otsu threshold.
	PostProcessMask bool
}

// Validate rejects thresholds and sizes outside their domain.
func (o MattingOptions) Validate() error {
	if o.ForegroundThreshold < 0 {
		return fmt.Errorf("foreground threshold must be >= 0, got %d", o.ForegroundThreshold)
	}
	if o.BackgroundThreshold < 0 || o.BackgroundThreshold > 255 {
		return fmt.Errorf("background threshold must be in [0,255], got %d", o.BackgroundThreshold)
	}
	if o.ErodeSize < 0 {
		return fmt.Errorf("erode size must be >= 0, got %d", o.ErodeSize)
	}
	return nil
}

// Unavailable is the segmenter used when no model could be loaded.
type Unavailable struct {
	Model string
	Cause error
}

func (u *Unavailable) Segment(context.Context, image.Image, MattingOptions) (*image.NRGBA, error) {
	if u.Cause != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, u.Model, u.Cause)
	}
	return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, u.Model)
}

// HeuristicSegmenter segments without a model. Mask defaults to AutoMask.
type HeuristicSegmenter struct {
	Mask Mask
}

func (s HeuristicSegmenter) Segment(ctx context.Context, img image.Image, opts MattingOptions) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	maskFn := s.Mask
	if maskFn == nil {
		maskFn = AutoMask
	}
	mask := maskFn(img)
	if err := checkMaskSize(img, mask); err != nil {
		return nil, err
	}
	if opts.PostProcessMask {
		mask = binarize(mask)
	}
	if opts.AlphaMatting {
		var err error
		if mask, err = refineMask(img, mask, opts, newMattingBufferPool()); err != nil {
			return nil, err
		}
	}
	return cutout(img, mask), nil
}

// cutout keeps the source colors and takes alpha from mask.
func cutout(src image.Image, mask *image.Gray) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			a := mask.GrayAt(x-bounds.Min.X+mask.Rect.Min.X, y-bounds.Min.Y+mask.Rect.Min.Y).Y
			// Preserve source transparency: the mask can only remove coverage.
			if c.A < a {
				a = c.A
			}
			dst.SetNRGBA(x-bounds.Min.X, y-bounds.Min.Y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: a})
		}
	}
	return dst
}
