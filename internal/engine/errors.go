package engine

import "errors"

// The three error kinds the engine exposes to callers. Everything the
// pipeline can fail with wraps one of these; the transport maps them to its
// own status codes with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrEmptyInput   = errors.New("empty_input")
	ErrInternal     = errors.New("internal_error")
)

// Category returns the error category the transport exposes to callers, or
// "internal_error" for anything unrecognised.
func Category(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	default:
		return "internal_error"
	}
}
