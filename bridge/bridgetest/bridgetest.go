// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package bridgetest provides test doubles for the collaborators of a bridge:
// a scripted UART widget, a scripted character stream and a scripted peer.
//
package bridgetest

import (
	"bytes"
	"fmt"
	"time"

	"github.com/db47h/uartbridge/mmio"
	"github.com/pkg/errors"
)

// Write records a register write.
//
type Write struct {
	Reg   mmio.Reg
	Value uint32
}

func (w Write) String() string { return fmt.Sprintf("%s=%d", w.Reg, w.Value) }

// Device is a scripted UART widget. It implements mmio.Port.
//
// Bytes written through in_bits/in_valid are appended to Received. Bytes in
// Pending are presented one at a time on out_bits/out_valid and removed on a
// write of out_ready=1. Other registers are plain storage.
//
type Device struct {
	Regs     [mmio.RegCount]uint32
	Writes   []Write
	Received []byte
	Pending  []byte

	// InReady, if not nil, is called on every read of in_ready with the
	// number of previous reads. Otherwise in_ready reads as Regs[InReady].
	InReady func(n int) bool

	readyReads int
}

// NewDevice returns a Device that is always ready to receive and will send
// out the given bytes.
//
func NewDevice(out ...byte) *Device {
	d := &Device{Pending: append([]byte(nil), out...)}
	d.Regs[mmio.InReady] = 1
	return d
}

// Read implements mmio.Port.
//
func (d *Device) Read(r mmio.Reg) uint32 {
	switch r {
	case mmio.InReady:
		n := d.readyReads
		d.readyReads++
		if d.InReady != nil {
			return mmio.FromBool(d.InReady(n))
		}
	case mmio.OutValid:
		return mmio.FromBool(len(d.Pending) > 0)
	case mmio.OutBits:
		if len(d.Pending) > 0 {
			return uint32(d.Pending[0])
		}
		return 0
	}
	return d.Regs[r]
}

// Write implements mmio.Port.
//
func (d *Device) Write(r mmio.Reg, v uint32) {
	d.Writes = append(d.Writes, Write{r, v})
	d.Regs[r] = v
	switch r {
	case mmio.InValid:
		if v != 0 {
			d.Received = append(d.Received, byte(d.Regs[mmio.InBits]))
		}
	case mmio.OutReady:
		if v != 0 && len(d.Pending) > 0 {
			d.Pending = d.Pending[1:]
		}
	}
}

// WritesTo returns the values written to register r, in order.
//
func (d *Device) WritesTo(r mmio.Reg) []uint32 {
	var vs []uint32
	for _, w := range d.Writes {
		if w.Reg == r {
			vs = append(vs, w.Value)
		}
	}
	return vs
}

// Stream is a scripted character stream.
//
type Stream struct {
	// Input is consumed one byte per successful TryReadByte.
	Input []byte
	// Output receives written bytes.
	Output bytes.Buffer
	// Err, if not nil, is returned by Write.
	Err error
	// Reads counts TryReadByte calls.
	Reads int
}

// TryReadByte returns the next input byte, if any.
//
func (s *Stream) TryReadByte() (byte, bool) {
	s.Reads++
	if len(s.Input) == 0 {
		return 0, false
	}
	c := s.Input[0]
	s.Input = s.Input[1:]
	return c, true
}

func (s *Stream) Write(p []byte) (int, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.Output.Write(p)
}

// Peer is a scripted co-simulator link.
//
type Peer struct {
	// Input holds the bytes sent by the co-simulator.
	Input []byte
	// Output receives the bridge replies.
	Output bytes.Buffer
	// Closed makes ReadFull fail with a non timeout error once Input runs
	// out. Otherwise it fails with a timeout.
	Closed bool
	// Err, if not nil, is returned by Write.
	Err error
	// Timeouts records the timeout of every ReadFull call.
	Timeouts []time.Duration
}

// Send appends bytes to the peer input.
//
func (p *Peer) Send(b ...byte) { p.Input = append(p.Input, b...) }

// TryReadByte returns the next input byte, if any.
//
func (p *Peer) TryReadByte() (byte, bool) {
	if len(p.Input) == 0 {
		return 0, false
	}
	c := p.Input[0]
	p.Input = p.Input[1:]
	return c, true
}

// ReadFull reads len(b) bytes from Input. It does not wait: if Input is too
// short, its bytes are consumed and an error is returned.
//
func (p *Peer) ReadFull(b []byte, timeout time.Duration) error {
	p.Timeouts = append(p.Timeouts, timeout)
	n := copy(b, p.Input)
	p.Input = p.Input[n:]
	if n < len(b) {
		if p.Closed {
			return errClosed
		}
		return errTimeout{}
	}
	return nil
}

func (p *Peer) Write(b []byte) (int, error) {
	if p.Err != nil {
		return 0, p.Err
	}
	return p.Output.Write(b)
}

type errTimeout struct{}

func (errTimeout) Error() string   { return "i/o timeout" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return true }

var errClosed = errors.New("connection closed")
