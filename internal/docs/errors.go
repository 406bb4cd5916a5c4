package docs

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedInput        = errors.New("malformed search index")
	ErrParentIndexOutOfRange = errors.New("parent index out of range")
)

type ErrorKind int

const (
	MalformedInput ErrorKind = iota + 1
	ParentIndexOutOfRange
)

func (k ErrorKind) sentinel() error {
	switch k {
	case MalformedInput:
		return ErrMalformedInput
	case ParentIndexOutOfRange:
		return ErrParentIndexOutOfRange
	}
	return nil
}

// DecodeError reports a package that could not be decoded. Item is the
// position in the package's item list, or -1 when the failure is not tied
// to a single item.
type DecodeError struct {
	Kind    ErrorKind
	Package string
	Item    int
	Err     error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decoding package %q", e.Package)
	if e.Item >= 0 {
		msg += fmt.Sprintf(": item %d", e.Item)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg + ": " + e.Kind.sentinel().Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a DecodeError against ErrMalformedInput or
// ErrParentIndexOutOfRange.
func (e *DecodeError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Malformed wraps err as a MalformedInput failure of pkg.
func Malformed(pkg string, err error) *DecodeError {
	return &DecodeError{Kind: MalformedInput, Package: pkg, Item: -1, Err: err}
}
