// query/errors.go
package query

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the codec. Construction through the typed
// builders cannot produce malformed trees, so these arise only when
// decoding serialized expressions.
var (
	// ErrUnknownKind indicates an unrecognized operator discriminator.
	ErrUnknownKind = errors.New("unknown operator discriminator")

	// ErrUnknownField indicates a path step naming an unregistered field.
	ErrUnknownField = errors.New("field not registered for record type")

	// ErrTypeMismatch indicates a literal or step inconsistent with the
	// path's declared value type.
	ErrTypeMismatch = errors.New("value type mismatch")

	// ErrBadPattern indicates a stored regular expression that no longer
	// compiles.
	ErrBadPattern = errors.New("invalid regular expression")

	// ErrBadLiteral indicates a literal payload that cannot be decoded.
	ErrBadLiteral = errors.New("malformed literal")
)

// DecodeError reports a recoverable failure while decoding a serialized
// condition, modification or path. Pos locates the offending node in
// dotted-path form.
type DecodeError struct {
	Pos string // location within the expression, e.g. "and[1].path"
	Err error  // underlying sentinel, possibly wrapped
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Pos == "" {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Pos, e.Err)
}

// Unwrap exposes the underlying sentinel for errors.Is checks.
func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(pos string, err error) *DecodeError {
	return &DecodeError{Pos: pos, Err: err}
}

func decodeErrf(pos string, sentinel error, format string, args ...any) *DecodeError {
	return &DecodeError{Pos: pos, Err: fmt.Errorf(format+": %w", append(args, sentinel)...)}
}
