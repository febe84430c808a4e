package models

import "errors"

var (
	// ErrSelectionCancelled is returned when the image source yields nothing.
	ErrSelectionCancelled = errors.New("image selection cancelled")
	// ErrDecode marks images that could not be turned into engine input.
	ErrDecode = errors.New("image could not be decoded")
	// ErrInference marks failures inside the inference engine.
	ErrInference = errors.New("inference failed")
)

// FailureOf classifies an engine error.
func FailureOf(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrDecode):
		return FailureDecode
	default:
		return FailureInference
	}
}
