package productbg

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingInput is returned when a request carries no image bytes.
	ErrMissingInput = errors.New("no image")
	// ErrModelUnavailable is returned by a segmenter whose model never loaded.
	ErrModelUnavailable = errors.New("segmentation model unavailable")
	// ErrEmptyRegion is returned when trimming leaves a zero width or height.
	ErrEmptyRegion = errors.New("cropped region has zero width or height")
	// ErrNoForeground is returned for a fully transparent mask when the
	// layout rejects empty results.
	ErrNoForeground = errors.New("no foreground detected")
	// ErrTooManyPixels is returned when the declared image dimensions exceed
	// the decode limit.
	ErrTooManyPixels = errors.New("image exceeds pixel limit")
)

// DecodeError reports source bytes that are not a decodable image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ProcessingError reports a failure in one of the pipeline stages after decode.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
