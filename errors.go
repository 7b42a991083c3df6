package tensorwire

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when the byte source ends before a declared
// length was fully consumed, or before a tag could be completely read. This
// is the decoder's truncation signal: the transport closing or abandoning the
// underlying stream mid-message surfaces as this error on the next chunk pull.
var ErrInsufficientData = errors.New("tensorwire: insufficient data to decode message, more bytes expected")

// ErrUnknownField is returned when a top-level tag names a field number with
// no recognized meaning, or when the end-of-message marker itself is garbled.
// It is deliberately fieldless, distinct from MalformedFieldError.
var ErrUnknownField = errors.New("tensorwire: unknown top-level field in variable message")

// ErrClosedSource is returned when a chunk is pushed to a QueueSource that
// has already been closed.
var ErrClosedSource = errors.New("tensorwire: chunk pushed to a closed source")

// WireDecodingError is returned when a value on the wire fails a local
// constraint (a varint that overflows, a length that does not fit the
// expected range, a sub-region that was not fully consumed). It means the
// peer sent corrupt data, as opposed to the stream simply ending early.
type WireDecodingError struct {
	Info string
}

func (err WireDecodingError) Error() string {
	return fmt.Sprintf("tensorwire: error decoding wire data: %s", err.Info)
}

// MalformedFieldError is returned when a known field was encoded with the
// wrong wire type or carried an invalid value. Field is the wire field number
// that failed, so callers can log which part of the message was unparsable.
type MalformedFieldError struct {
	Field uint32
	Err   error
}

func (err MalformedFieldError) Error() string {
	return fmt.Sprintf("tensorwire: malformed field %d: %v", err.Field, err.Err)
}

func (err MalformedFieldError) Unwrap() error {
	return err.Err
}

// VariableNotFoundError is returned when the destination variable named by
// the message cannot be resolved from the Scope.
type VariableNotFoundError struct {
	Name string
}

func (err VariableNotFoundError) Error() string {
	return fmt.Sprintf("tensorwire: variable %q not found in scope", err.Name)
}

// PreconditionViolation is the panic value raised when a payload or row-index
// field is encountered before the metadata it depends on (varname and type)
// has been set. A conforming producer can never trigger this by construction,
// so the decoder escalates it rather than returning it; the Receiver recovers
// it at the message boundary (see Receiver).
type PreconditionViolation struct {
	Field uint32
	Info  string
}

func (err PreconditionViolation) Error() string {
	return fmt.Sprintf("tensorwire: precondition violated at field %d: %s", err.Field, err.Info)
}

// ConfigurationError is the type of error returned from a constructor (e.g.
// NewReceiver) when the specified configuration is invalid.
type ConfigurationError string

func (err ConfigurationError) Error() string {
	return "tensorwire: invalid configuration (" + string(err) + ")"
}
