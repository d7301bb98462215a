// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package bridge

import (
	"strings"

	"github.com/pkg/errors"
)

// Error kinds returned by Tick and Poll. Use errors.Cause to compare.
//
var (
	// ErrSinkWrite is returned when a device byte cannot be written to the
	// character stream.
	ErrSinkWrite = errors.New("sink write failed")
	// ErrLogWrite is returned when a device byte cannot be written to the log.
	ErrLogWrite = errors.New("log write failed")
	// ErrPeerWrite is returned when a reply cannot be sent to the peer.
	ErrPeerWrite = errors.New("peer write failed")
	// ErrPeerClosed is returned when the peer goes away while the bridge
	// waits for a step definition.
	ErrPeerClosed = errors.New("peer closed")
	// ErrStepTimeout is returned when a step definition payload does not
	// arrive in time.
	ErrStepTimeout = errors.New("step definition timed out")
	// ErrMalformedStep is returned when a step definition payload is not a
	// decimal number. The cycle step register is left untouched.
	ErrMalformedStep = errors.New("malformed step definition")
)

// Error is the error type returned by a Bridge.
//
type Error struct {
	Name string // bridge name
	Op   string // operation: "output", "define step", etc.
	Kind error  // one of the Err* values
	Err  error  // underlying error, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteString(": ")
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Cause returns the error kind.
//
func (e *Error) Cause() error { return e.Kind }

// Unwrap returns the error kind.
//
func (e *Error) Unwrap() error { return e.Kind }

func (b *Bridge) fail(op string, kind, err error) error {
	return &Error{Name: b.cfg.Name, Op: op, Kind: kind, Err: err}
}

// IsFatal reports whether err ends the bridge instance. A malformed step
// definition is reported but the bridge can keep ticking.
//
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Cause(err) != ErrMalformedStep
}
