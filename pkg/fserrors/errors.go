// Package fserrors defines the error taxonomy shared by every layer of
// the block allocator and file-data mapper: the bitmap and buddy
// allocators, the file block mapper, and the write path adapter all
// construct their failures through this package instead of bare
// fmt.Errorf or sentinel errors, so callers can branch on kind without
// string matching.
package fserrors

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind identifies the category of a failure, independent of the
// message text.
type Kind int

const (
	// NoSpace indicates bitmap or buddy exhaustion. Surfaced to
	// callers as out-of-space; never retried internally.
	NoSpace Kind = iota
	// IoCorrupt indicates a missing mandatory reference that mkfs
	// must have placed. Fatal for the operation.
	IoCorrupt
	// Io indicates an underlying block read/write failure.
	Io
	// Invalid indicates an assertion violation on order/alignment
	// input; a programming error.
	Invalid
	// NoMem indicates a cache or page allocation failure.
	NoMem
)

func (k Kind) String() string {
	switch k {
	case NoSpace:
		return "NoSpace"
	case IoCorrupt:
		return "IoCorrupt"
	case Io:
		return "Io"
	case Invalid:
		return "Invalid"
	case NoMem:
		return "NoMem"
	default:
		return "Unknown"
	}
}

var kindCodes = map[Kind]codes.Code{
	NoSpace:   codes.ResourceExhausted,
	IoCorrupt: codes.DataLoss,
	Io:        codes.Unavailable,
	Invalid:   codes.InvalidArgument,
	NoMem:     codes.ResourceExhausted,
}

// Error is the concrete error type returned by every exported operation
// in this module.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

// Unwrap lets errors.Is/As see through to the cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// GRPCStatus satisfies status.FromError's interface so that
// status.Code(err) returns the code for this kind, matching the
// convention the rest of this module's neighboring packages use for
// cross-boundary error reporting.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(kindCodes[e.kind], e.Error())
}

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// NoSpaceErr builds a NoSpace error.
func NoSpaceErr(format string, args ...interface{}) error {
	return newErr(NoSpace, format, args...)
}

// IoCorruptErr builds an IoCorrupt error.
func IoCorruptErr(format string, args ...interface{}) error {
	return newErr(IoCorrupt, format, args...)
}

// IoErr builds an Io error, wrapping the underlying cause.
func IoErr(cause error, format string, args ...interface{}) error {
	e := newErr(Io, format, args...)
	e.cause = cause
	return e
}

// InvalidErr builds an Invalid error.
func InvalidErr(format string, args ...interface{}) error {
	return newErr(Invalid, format, args...)
}

// NoMemErr builds a NoMem error.
func NoMemErr(format string, args ...interface{}) error {
	return newErr(NoMem, format, args...)
}

// KindOf returns the Kind of err and true, or false if err is not an
// *Error produced by this package. It does not look through wrapped
// errors.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if e, ok := err.(*Error); ok {
		fe = e
	} else {
		return 0, false
	}
	return fe.kind, true
}

// Is reports whether err carries the given kind. It exists so callers
// that only care about NoSpace vs. everything else don't need to import
// codes/status themselves.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
