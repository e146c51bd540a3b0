package utils

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Every failure raised by the writer is fatal; the kind only
// tells the caller which rule was broken.
var (
	// ErrSchema marks declaration errors: bad names, duplicates, type or
	// shape mismatches, incompatible options.
	ErrSchema = errors.New("schema error")

	// ErrSequence marks calls made in the wrong file state.
	ErrSequence = errors.New("sequencing error")

	// ErrEncoding marks internal layout invariant violations.
	ErrEncoding = errors.New("encoding error")

	// ErrIO marks failures of the underlying output file.
	ErrIO = errors.New("i/o error")
)

// H5Error represents a structured HDF5 error.
type H5Error struct {
	Kind    error
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *H5Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// Unwrap provides compatibility with errors.Unwrap().
func (e *H5Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the kind of this error.
func (e *H5Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// WrapError creates a contextual error.
// The kind of a wrapped H5Error is inherited.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	var kind error
	var h5 *H5Error
	if errors.As(cause, &h5) {
		kind = h5.Kind
	}
	return &H5Error{
		Kind:    kind,
		Context: context,
		Cause:   cause,
	}
}

// SchemaError reports a declaration error for the object at context.
func SchemaError(context, format string, args ...interface{}) error {
	return newKindError(ErrSchema, context, format, args...)
}

// SequenceError reports an operation issued in the wrong file state.
func SequenceError(context, format string, args ...interface{}) error {
	return newKindError(ErrSequence, context, format, args...)
}

// EncodingError reports a violated layout invariant.
func EncodingError(context, format string, args ...interface{}) error {
	return newKindError(ErrEncoding, context, format, args...)
}

// IOError wraps a failure of the output file.
func IOError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &H5Error{
		Kind:    ErrIO,
		Context: context,
		Cause:   errors.WithStack(cause),
	}
}

func newKindError(kind error, context, format string, args ...interface{}) error {
	return &H5Error{
		Kind:    kind,
		Context: context,
		Cause:   errors.Errorf(format, args...),
	}
}
