package converter

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/idia-astro/hdf5convert/internal/swizzle"
)

// Failure kinds. Every error returned by Convert matches exactly one of
// them with errors.Is.
var (
	ErrConfig      = errors.New("configuration error")
	ErrIO          = errors.New("I/O error")
	ErrOutOfMemory = errors.New("out of memory")
	ErrInvariant   = errors.New("invariant violation")
)

// ErrAttribute is returned by a Sink for an attribute it cannot store. The
// converter skips such attributes with a warning.
var ErrAttribute = errors.New("attribute rejected")

// Error is a conversion failure.
type Error struct {
	// Kind is one of ErrConfig, ErrIO, ErrOutOfMemory or ErrInvariant.
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func configError(op string, format string, args ...any) *Error {
	return newError(ErrConfig, op, fmt.Errorf(format, args...))
}

// recovered turns a panic value into an error. Refused allocations become
// ErrOutOfMemory; everything else is an internal bug.
func recovered(op string, r any) error {
	if err, ok := r.(*Error); ok {
		return err
	}
	if re, ok := r.(runtime.Error); ok && strings.Contains(re.Error(), "makeslice") {
		return newError(ErrOutOfMemory, op, re)
	}
	if err, ok := r.(error); ok {
		return newError(ErrInvariant, op, err)
	}
	return newError(ErrInvariant, op, fmt.Errorf("%v", r))
}

// classify wraps err from a lower layer, keeping an existing kind.
func classify(op string, err error) error {
	var ce *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce):
		return err
	case errors.Is(err, swizzle.ErrAlloc):
		return newError(ErrOutOfMemory, op, err)
	case errors.Is(err, swizzle.ErrShape):
		return newError(ErrInvariant, op, err)
	default:
		return newError(ErrIO, op, err)
	}
}
