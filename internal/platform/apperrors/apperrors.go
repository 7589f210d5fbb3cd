// Package apperrors is the error taxonomy shared by the ledger services.
//
// Every error a service returns to its caller is one of four kinds. The kind tells
// the caller what to do: fix the request (SemanticValidation, DoesNotExist), treat
// the call as already done (AlreadyExists), or escalate (Unknown). Unknown errors
// are always preceded by a critical alert at the point they are raised.
package apperrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind classifies an Error.
type Kind string

const (
	KindSemanticValidation Kind = "SEMANTIC_VALIDATION"
	KindDoesNotExist       Kind = "DOES_NOT_EXIST"
	KindAlreadyExists      Kind = "ALREADY_EXISTS"
	KindUnknown            Kind = "UNKNOWN"
)

// Sentinels for errors.Is.
var (
	ErrSemanticValidation = &Error{Kind: KindSemanticValidation}
	ErrDoesNotExist       = &Error{Kind: KindDoesNotExist}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrUnknown            = &Error{Kind: KindUnknown}
)

// Error is a classified service error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	default:
		return e.Message + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrDoesNotExist) works
// for every DoesNotExist error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NewSemanticValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindSemanticValidation, Message: fmt.Sprintf(format, args...)}
}

func NewDoesNotExistError(format string, args ...any) *Error {
	return &Error{Kind: KindDoesNotExist, Message: fmt.Sprintf(format, args...)}
}

func NewAlreadyExistsError(format string, args ...any) *Error {
	return &Error{Kind: KindAlreadyExists, Message: fmt.Sprintf(format, args...)}
}

func NewUnknownError(format string, args ...any) *Error {
	return &Error{Kind: KindUnknown, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// FromValidation folds validator field errors into a single SemanticValidation error
// listing "field: rule" pairs. Any other error is wrapped as-is.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Wrap(KindSemanticValidation, err, "invalid request")
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fe.Namespace()+": "+rule)
	}
	return NewSemanticValidationError("invalid request: %s", strings.Join(parts, ", "))
}
