package productbg

import (
	"bytes"
	"fmt"
	"image"
	"io"

	// Register the decoders accepted on upload besides the stdlib ones
	// imaging already pulls in.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/jpegli"
)

const (
	// JPEGQuality is the encoder quality used for every product photo.
	JPEGQuality = 100
	// DefaultMaxPixels caps width*height before any pixel buffer is allocated.
	DefaultMaxPixels = 89478485
)

// Decode parses encoded image bytes with the default pixel limit.
func Decode(data []byte) (image.Image, error) {
	return DecodeLimit(data, DefaultMaxPixels)
}

// DecodeLimit parses encoded image bytes, applying the EXIF orientation. The
// header is read first and images larger than maxPixels are rejected without
// decoding; maxPixels <= 0 means DefaultMaxPixels.
func DecodeLimit(data []byte, maxPixels int) (image.Image, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: fmt.Errorf("empty input")}
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if n := int64(cfg.Width) * int64(cfg.Height); n > int64(maxPixels) {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %dx%d is over %d pixels", ErrTooManyPixels, cfg.Width, cfg.Height, maxPixels)}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if img.Bounds().Empty() {
		return nil, &DecodeError{Err: fmt.Errorf("image has no pixels")}
	}
	return img, nil
}

// EncodeJPEG writes img at maximum quality with 4:4:4 chroma so edges against
// the white background keep full color resolution.
func EncodeJPEG(w io.Writer, img image.Image) error {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Opaque() {
		// Opaque NRGBA and RGBA share the same byte layout.
		img = &image.RGBA{Pix: nrgba.Pix, Stride: nrgba.Stride, Rect: nrgba.Rect}
	}
	err := jpegli.Encode(w, img, &jpegli.EncodingOptions{
		Quality:           JPEGQuality,
		ChromaSubsampling: image.YCbCrSubsampleRatio444,
	})
	if err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}
