package productbg

import (
	"context"
	"errors"
	"fmt"
)

// Pipeline turns uploaded bytes into an encoded product photo.
type Pipeline struct {
	Segmenter Segmenter
	Matting   MattingOptions
	Layout    Layout
	// MaxPixels limits decoded image size; zero means DefaultMaxPixels.
	MaxPixels int
}

// Process runs decode, segment, compose and encode once, in that order.
// Failures are *DecodeError or *ProcessingError; empty input is ErrMissingInput.
func (p *Pipeline) Process(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrMissingInput
	}
	img, err := DecodeLimit(data, p.MaxPixels)
	if err != nil {
		return nil, err
	}
	if p.Segmenter == nil {
		return nil, &ProcessingError{Stage: "segment", Err: ErrModelUnavailable}
	}

	matted, err := p.Segmenter.Segment(ctx, img, p.Matting)
	if err != nil {
		return nil, &ProcessingError{Stage: "segment", Err: err}
	}

	return Produce(matted, p.Layout)
}

// Fingerprint identifies the options that influence the output bytes.
func (p *Pipeline) Fingerprint() string {
	m, l := p.Matting, p.Layout
	return fmt.Sprintf("m%t-%d-%d-%d-%t:l%dx%d-%g-%t",
		m.AlphaMatting, m.ForegroundThreshold, m.BackgroundThreshold, m.ErodeSize, m.PostProcessMask,
		l.Width, l.Height, l.Padding, l.RejectEmpty)
}

// IsClientError reports whether err was caused by the uploaded input rather
// than by the service.
func IsClientError(err error) bool {
	var decodeErr *DecodeError
	return errors.Is(err, ErrMissingInput) || errors.As(err, &decodeErr)
}
