package productbg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Layout is the fixed output frame a cutout is fitted into.
type Layout struct {
	Width  int
	Height int
	// Padding is the fraction of each canvas dimension the foreground may occupy.
	Padding float64
	// RejectEmpty fails fully transparent cutouts with ErrNoForeground
	// instead of returning a blank canvas.
	RejectEmpty bool
}

// DefaultLayout is the 1080×1080 full-bleed frame.
var DefaultLayout = Layout{Width: 1080, Height: 1080, Padding: 1.0}

func (l Layout) Validate() error {
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("invalid canvas size %dx%d", l.Width, l.Height)
	}
	if !(l.Padding > 0 && l.Padding <= 1) {
		return fmt.Errorf("padding factor must be in (0,1], got %v", l.Padding)
	}
	return nil
}

// Placement records where the foreground landed on the canvas.
type Placement struct {
	Bounds  image.Rectangle
	Trimmed bool
	Ratio   float64
	Size    image.Point
	Offset  image.Point
}

// Fit returns the uniform scale factor and the scaled size for a w×h region.
func Fit(w, h int, layout Layout) (float64, image.Point, error) {
	if w <= 0 || h <= 0 {
		return 0, image.Point{}, ErrEmptyRegion
	}
	ratio := math.Min(
		float64(layout.Width)*layout.Padding/float64(w),
		float64(layout.Height)*layout.Padding/float64(h),
	)
	size := image.Pt(
		max(int(math.RoundToEven(float64(w)*ratio)), 1),
		max(int(math.RoundToEven(float64(h)*ratio)), 1),
	)
	return ratio, size, nil
}

// Center splits the leftover margin evenly, flooring the odd pixel.
func Center(size image.Point, layout Layout) image.Point {
	return image.Pt(floorDiv(layout.Width-size.X, 2), floorDiv(layout.Height-size.Y, 2))
}

// Compose trims the cutout, scales it into the layout and pastes it on white.
func Compose(matted image.Image, layout Layout) (*image.NRGBA, Placement, error) {
	if err := layout.Validate(); err != nil {
		return nil, Placement{}, err
	}

	cropped, rect, trimmed := trim(matted)
	if !trimmed && layout.RejectEmpty {
		return nil, Placement{}, ErrNoForeground
	}

	w, h := cropped.Rect.Dx(), cropped.Rect.Dy()
	ratio, size, err := Fit(w, h, layout)
	if err != nil {
		return nil, Placement{}, err
	}

	var scaled *image.NRGBA
	if size.X == w && size.Y == h {
		scaled = cropped
	} else {
		scaled = imaging.Resize(cropped, size.X, size.Y, imaging.Lanczos)
	}

	offset := Center(size, layout)
	canvas := imaging.New(layout.Width, layout.Height, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	canvas = imaging.Overlay(canvas, scaled, offset, 1.0)

	return canvas, Placement{
		Bounds:  rect,
		Trimmed: trimmed,
		Ratio:   ratio,
		Size:    size,
		Offset:  offset,
	}, nil
}

// Produce composes the cutout and encodes the canvas as JPEG. Failures are
// *ProcessingError with stage "compose" or "encode".
func Produce(matted image.Image, layout Layout) ([]byte, error) {
	canvas, _, err := Compose(matted, layout)
	if err != nil {
		return nil, &ProcessingError{Stage: "compose", Err: err}
	}
	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, canvas); err != nil {
		return nil, &ProcessingError{Stage: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
