package capture

import (
	"context"
	"errors"
	"image"
)

// FacingMode selects which physical camera is preferred.
type FacingMode string

const (
	FacingEnvironment FacingMode = "environment" // rear-facing
	FacingUser        FacingMode = "user"
	FacingAny         FacingMode = ""
)

// Constraints describes the stream being requested. Audio is never requested.
type Constraints struct {
	FacingMode FacingMode
	Width      int
	Height     int
}

var (
	// ErrFacingModeUnsupported lets a Camera report that the preferred facing
	// mode does not exist; the session then retries without a preference.
	ErrFacingModeUnsupported = errors.New("requested facing mode not available")
	// ErrPermissionDenied is for cameras behind an access prompt. Local
	// devices report ErrNoDevice when they cannot be opened.
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoDevice         = errors.New("no camera device")
)

// Camera acquires live video streams.
type Camera interface {
	Open(ctx context.Context, constraints Constraints) (Stream, error)
}

// Stream is a live frame source.
type Stream interface {
	// Frame returns a copy of the current video frame.
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Encoder compresses a frozen frame into the stored image payload.
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
}

type EncoderFunc func(img image.Image) ([]byte, error)

func (f EncoderFunc) Encode(img image.Image) ([]byte, error) {
	return f(img)
}
