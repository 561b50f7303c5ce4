package gw

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every error caused by a malformed packet.
var ErrValidation = errors.New("invalid packet")

var (
	ErrMissingField           = fmt.Errorf("%w: missing field", ErrValidation)
	ErrUnsupportedModulation  = fmt.Errorf("%w: unsupported modulation", ErrValidation)
	ErrInvalidSpreadingFactor = fmt.Errorf("%w: unexpected spreading-factor", ErrValidation)
	ErrInvalidDataRate        = fmt.Errorf("%w: unexpected datarate", ErrValidation)
	ErrInvalidContext         = fmt.Errorf("%w: context must be exactly 4 bytes", ErrValidation)
	ErrPayloadTooLarge        = fmt.Errorf("%w: payload too large", ErrValidation)
	ErrInvalidTiming          = fmt.Errorf("%w: invalid timing", ErrValidation)
)

// reason returns a short label for metrics.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrUnsupportedModulation):
		return "unsupported_modulation"
	case errors.Is(err, ErrInvalidSpreadingFactor):
		return "invalid_spreading_factor"
	case errors.Is(err, ErrInvalidDataRate):
		return "invalid_datarate"
	case errors.Is(err, ErrInvalidContext):
		return "invalid_context"
	case errors.Is(err, ErrPayloadTooLarge):
		return "payload_too_large"
	case errors.Is(err, ErrInvalidTiming):
		return "invalid_timing"
	default:
		return "other"
	}
}
