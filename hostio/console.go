// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hostio

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// Console is a character stream on a pair of files, usually the process
// standard input and output.
//
type Console struct {
	*Pump
	out   *os.File
	fd    int
	state *term.State
}

// NewConsole returns a console reading from in and writing to out.
//
// If raw is true and in is a terminal, the terminal is put in raw mode until
// Close is called. Keyboard interrupts are then sent as regular input instead
// of raising a signal.
//
func NewConsole(in, out *os.File, raw bool) (*Console, error) {
	c := &Console{
		out: out,
		fd:  int(in.Fd()),
	}
	if raw && term.IsTerminal(c.fd) {
		st, err := term.MakeRaw(c.fd)
		if err != nil {
			return nil, errors.Wrap(err, "console raw mode")
		}
		c.state = st
	}
	c.Pump = NewPump(in, 0)
	return c, nil
}

// Stdio returns a console on os.Stdin and os.Stdout.
//
func Stdio(raw bool) (*Console, error) {
	return NewConsole(os.Stdin, os.Stdout, raw)
}

// Raw reports whether the console put its terminal in raw mode.
//
func (c *Console) Raw() bool { return c.state != nil }

func (c *Console) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

// Close restores the terminal state. It does not close the underlying files.
//
func (c *Console) Close() error {
	c.Pump.Close()
	if c.state != nil {
		st := c.state
		c.state = nil
		return errors.Wrap(term.Restore(c.fd, st), "console restore")
	}
	return nil
}
