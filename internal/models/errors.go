// Package models defines the data structures for the forwarder mapping engine.
package models

import (
	"errors"
	"fmt"
)

// Contract-violation errors. These are the only failures the core surfaces
// to its caller; malformed input (bad regexes, missing fields, unparseable
// values) is handled locally and never raised.
var (
	// ErrInternalInconsistency indicates the engine reached a state its own
	// invariants rule out, such as an extraction pattern type outside the
	// closed set.
	ErrInternalInconsistency = errors.New("internal inconsistency")
)

// UnsupportedMethodError reports an extraction-pattern method outside the
// supported set. It is distinct from ErrInternalInconsistency: the former is
// bad configuration crossing the boundary, the latter a broken invariant.
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("unsupported extraction method: %q", e.Method)
}

// IsUnsupportedMethod reports whether err is an UnsupportedMethodError.
func IsUnsupportedMethod(err error) bool {
	var target *UnsupportedMethodError
	return errors.As(err, &target)
}
