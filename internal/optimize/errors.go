package optimize

import (
	"errors"
	"fmt"
)

// Kind classifies an optimization error.
type Kind string

const (
	// KindConfiguration marks invalid run parameters detected before any
	// generation or evaluation call is made.
	KindConfiguration Kind = "configuration"
	// KindValidation marks a malformed EvaluationResult or DimensionScore.
	KindValidation Kind = "validation"
	// KindGeneration marks a failed or unusable generator call. Fatal to
	// the run.
	KindGeneration Kind = "generation"
	// KindEvaluation marks a failed or unusable evaluator call. Fatal to
	// the run.
	KindEvaluation Kind = "evaluation"
)

// Error represents an optimization error with context that can be wrapped
// with additional information.
type Error struct {
	// Kind classifies the error.
	Kind Kind
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	prefix := string(e.Kind)
	if e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", prefix, e.Op)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// NewConfigurationError creates a configuration error with the given message.
func NewConfigurationError(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// NewConfigurationErrorf creates a configuration error with a formatted message.
func NewConfigurationErrorf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError creates a validation error with the given message.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewValidationErrorf creates a validation error with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewGenerationError creates a generation error with the given message.
func NewGenerationError(message string) *Error {
	return &Error{Kind: KindGeneration, Message: message}
}

// NewEvaluationError creates an evaluation error with the given message.
func NewEvaluationError(message string) *Error {
	return &Error{Kind: KindEvaluation, Message: message}
}

// WrapGenerationError wraps a failed generator call. If err is nil it
// returns nil.
func WrapGenerationError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindGeneration, Message: message, Err: err}
}

// WrapEvaluationError wraps a failed evaluator call. If err is nil it
// returns nil.
func WrapEvaluationError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindEvaluation, Message: message, Err: err}
}

// IsKind reports whether any error in err's chain is an optimization Error
// of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
