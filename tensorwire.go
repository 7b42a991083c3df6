/*
Package tensorwire implements the receiving side of a binary variable-exchange
protocol for tensor-like payloads. It provides a streaming decoder that
reconstructs a variable message (name, representation kind, element type,
shape, hierarchical offset table, raw payload) from a tag/length-delimited
wire stream, writing payload bytes directly into previously-allocated storage
that may live in host memory or on an accelerator device.

The decoder never owns the destination storage: it resolves a mutable handle
by name from a Scope and populates it through that handle. Transport framing,
compression, encryption and authentication are out of scope and are assumed
to be handled by whatever delivers the chunked byte stream.
*/
package tensorwire

import (
	"io"
	"log"
)

// StdLogger is used to log error messages.
type StdLogger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

// Logger is the instance of a StdLogger interface that tensorwire writes
// decode and receiver events to. By default it is set to discard all log
// messages via io.Discard, but you can set it to redirect wherever you want.
var Logger StdLogger = log.New(io.Discard, "[tensorwire] ", log.LstdFlags)

// PanicHandler is called for recovering from panics spawned internal to
// the library (and thus not recoverable by the caller's goroutine).
// Defaults to nil, which means panics are not recovered.
var PanicHandler func(interface{})

// withRecover launches fn with the appropriate panic handler installed.
func withRecover(fn func()) {
	defer func() {
		if PanicHandler != nil {
			if err := recover(); err != nil {
				PanicHandler(err)
			}
		}
	}()

	fn()
}
