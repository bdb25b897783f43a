package recorder

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a Session matches exactly one of these
// with errors.Is, and still matches its cause (capture.ErrDeviceNotFound,
// codec.ErrDecoderUnavailable, ...).
var (
	ErrConfig       = errors.New("invalid configuration")
	ErrDevice       = errors.New("capture device error")
	ErrStream       = errors.New("no usable stream")
	ErrIO           = errors.New("i/o error")
	ErrDecode       = errors.New("decode error")
	ErrInvalidState = errors.New("invalid session state")
)

func kindError(kind, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", kind, err)
}
