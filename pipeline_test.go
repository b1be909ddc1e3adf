package productbg

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

type fakeSegmenter struct {
	calls int
	err   error
	fn    func(img image.Image) *image.NRGBA
}

func (f *fakeSegmenter) Segment(_ context.Context, img image.Image, _ MattingOptions) (*image.NRGBA, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.fn(img), nil
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

// keepCenter cuts out a centered square covering half of each dimension.
func keepCenter(img image.Image) *image.NRGBA {
	b := img.Bounds()
	mask := image.NewGray(b)
	for y := b.Min.Y + b.Dy()/4; y < b.Max.Y-b.Dy()/4; y++ {
		for x := b.Min.X + b.Dx()/4; x < b.Max.X-b.Dx()/4; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return cutout(img, mask)
}

func TestPipeline_Process(t *testing.T) {
	src := filled(200, 100, color.NRGBA{R: 30, G: 60, B: 90, A: 255})
	data := encodePNG(t, src)

	seg := &fakeSegmenter{fn: keepCenter}
	p := &Pipeline{Segmenter: seg, Layout: DefaultLayout}

	out, err := p.Process(context.Background(), data)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if seg.calls != 1 {
		t.Errorf("expected one segmentation call, got %d", seg.calls)
	}

	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 1080, 1080) {
		t.Errorf("unexpected output bounds %v", img.Bounds())
	}
	// The 100x50 foreground fills the width: rows above 270 stay white.
	r, g, b, _ := img.At(540, 100).RGBA()
	if r>>8 < 250 || g>>8 < 250 || b>>8 < 250 {
		t.Errorf("expected white band, got %d %d %d", r>>8, g>>8, b>>8)
	}
	_, _, b, _ = img.At(540, 540).RGBA()
	if b>>8 > 110 || b>>8 < 70 {
		t.Errorf("expected product color at center, got blue %d", b>>8)
	}
}

func TestPipeline_Errors(t *testing.T) {
	data := encodePNG(t, filled(10, 10, color.NRGBA{A: 255}))
	ctx := context.Background()

	t.Run("MissingInput", func(t *testing.T) {
		p := &Pipeline{Segmenter: &fakeSegmenter{fn: keepCenter}, Layout: DefaultLayout}
		_, err := p.Process(ctx, nil)
		if !errors.Is(err, ErrMissingInput) {
			t.Errorf("expected ErrMissingInput, got %v", err)
		}
		if !IsClientError(err) {
			t.Errorf("missing input should be a client error")
		}
	})

	t.Run("UndecodableBytes", func(t *testing.T) {
		seg := &fakeSegmenter{fn: keepCenter}
		p := &Pipeline{Segmenter: seg, Layout: DefaultLayout}
		_, err := p.Process(ctx, []byte("definitely not an image"))
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("expected *DecodeError, got %v", err)
		}
		if !IsClientError(err) {
			t.Errorf("decode failure should be a client error")
		}
		if seg.calls != 0 {
			t.Errorf("segmenter must not run on undecodable input")
		}
	})

	t.Run("TooManyPixels", func(t *testing.T) {
		seg := &fakeSegmenter{fn: keepCenter}
		p := &Pipeline{Segmenter: seg, Layout: DefaultLayout, MaxPixels: 50}
		_, err := p.Process(ctx, data)
		if !errors.Is(err, ErrTooManyPixels) || !IsClientError(err) {
			t.Errorf("expected client ErrTooManyPixels, got %v", err)
		}
		if seg.calls != 0 {
			t.Errorf("segmenter must not run on oversized input")
		}
	})

	t.Run("SegmentFailure", func(t *testing.T) {
		cause := errors.New("inference failed")
		p := &Pipeline{Segmenter: &fakeSegmenter{err: cause}, Layout: DefaultLayout}
		_, err := p.Process(ctx, data)
		var procErr *ProcessingError
		if !errors.As(err, &procErr) || procErr.Stage != "segment" {
			t.Fatalf("expected segment ProcessingError, got %v", err)
		}
		if !errors.Is(err, cause) {
			t.Errorf("cause should be preserved")
		}
		if IsClientError(err) {
			t.Errorf("segment failure is not a client error")
		}
	})

	t.Run("NoSegmenter", func(t *testing.T) {
		p := &Pipeline{Layout: DefaultLayout}
		_, err := p.Process(ctx, data)
		if !errors.Is(err, ErrModelUnavailable) {
			t.Errorf("expected ErrModelUnavailable, got %v", err)
		}
	})

	t.Run("UnavailableModel", func(t *testing.T) {
		p := &Pipeline{Segmenter: &Unavailable{Model: "isnet-general-use"}, Layout: DefaultLayout}
		_, err := p.Process(ctx, data)
		var procErr *ProcessingError
		if !errors.As(err, &procErr) || !errors.Is(err, ErrModelUnavailable) {
			t.Errorf("expected ProcessingError wrapping ErrModelUnavailable, got %v", err)
		}
	})

	t.Run("EmptyForegroundRejected", func(t *testing.T) {
		layout := DefaultLayout
		layout.RejectEmpty = true
		empty := func(img image.Image) *image.NRGBA {
			return image.NewNRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
		}
		p := &Pipeline{Segmenter: &fakeSegmenter{fn: empty}, Layout: layout}
		_, err := p.Process(ctx, data)
		var procErr *ProcessingError
		if !errors.As(err, &procErr) || procErr.Stage != "compose" {
			t.Fatalf("expected compose ProcessingError, got %v", err)
		}
		if !errors.Is(err, ErrNoForeground) {
			t.Errorf("expected ErrNoForeground, got %v", err)
		}
	})

	t.Run("InvalidLayout", func(t *testing.T) {
		p := &Pipeline{Segmenter: &fakeSegmenter{fn: keepCenter}}
		_, err := p.Process(ctx, data)
		var procErr *ProcessingError
		if !errors.As(err, &procErr) || procErr.Stage != "compose" {
			t.Errorf("expected compose ProcessingError, got %v", err)
		}
	})
}

func TestPipeline_Fingerprint(t *testing.T) {
	a := &Pipeline{Layout: DefaultLayout}
	b := &Pipeline{Layout: Layout{Width: 1080, Height: 1080, Padding: 0.95}}
	c := &Pipeline{Layout: DefaultLayout, Matting: MattingOptions{AlphaMatting: true}}

	if a.Fingerprint() == b.Fingerprint() || a.Fingerprint() == c.Fingerprint() {
		t.Errorf("fingerprints should differ across options")
	}
	if a.Fingerprint() != (&Pipeline{Layout: DefaultLayout}).Fingerprint() {
		t.Errorf("fingerprint should be stable")
	}
}
