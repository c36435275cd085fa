package domain

import (
	"errors"
	"fmt"
)

// ErrSpeechUnsupported is returned when the runtime has no speech capability.
var ErrSpeechUnsupported = errors.New("speech capability unsupported")

// GenerationError means the external question service was unreachable or returned unusable
// content. Callers switch to the fallback bank instead of retrying.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	if e.Cause == nil {
		return "question generation failed"
	}
	return fmt.Sprintf("question generation failed: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// RecognitionError means a recognition attempt produced no usable transcript and the
// answer has to be typed instead.
type RecognitionError struct {
	Cause error
}

func (e *RecognitionError) Error() string {
	if e.Cause == nil {
		return "speech recognition failed, manual entry required"
	}
	return fmt.Sprintf("speech recognition failed, manual entry required: %v", e.Cause)
}

func (e *RecognitionError) Unwrap() error { return e.Cause }

// PersistenceError means the completed session could not be written.
type PersistenceError struct {
	Key   string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist session %q: %v", e.Key, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// ValidationError rejects malformed setup input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a setup validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
