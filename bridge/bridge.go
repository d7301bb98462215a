// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package bridge moves bytes between a simulated UART widget and a host
// character stream, and services the token protocol of a co-simulator that
// throttles the simulated clock.
//
// A Bridge is driven by its owner once per simulation tick:
//
//	for {
//		machine.Step()
//		if err := br.Tick(); err != nil {
//			// handle err
//		}
//	}
//
// Each call to Tick drains both directions of the UART until neither side
// transfers a byte. Within an iteration, widget registers are read first, then
// the peer is polled for a command, then transfers are decided, and finally
// the widget registers are written.
//
// A Bridge is not safe for concurrent use. Only its Override may be shared.
//
package bridge

import (
	"io"
	"time"

	"github.com/db47h/uartbridge/internal/logger"
	"github.com/db47h/uartbridge/mmio"
	"github.com/pkg/errors"
)

// A Stream is the host side of the UART: a terminal, pty or similar.
//
type Stream interface {
	// TryReadByte returns the next input byte if one is available. It never
	// blocks.
	TryReadByte() (byte, bool)
	io.Writer
}

// A Peer is a duplex byte link to the co-simulator.
//
type Peer interface {
	// TryReadByte returns the next byte if one is available. It never blocks.
	TryReadByte() (byte, bool)
	// ReadFull reads exactly len(p) bytes, waiting at most timeout. A
	// negative timeout waits forever.
	ReadFull(p []byte, timeout time.Duration) error
	io.Writer
}

// Stats counts bridge activity.
//
type Stats struct {
	BytesIn    uint64 // bytes delivered to the device
	BytesOut   uint64 // bytes received from the device
	Iterations uint64 // drain loop iterations
	Ticks      uint64
}

// Bridge connects a widget Port to a Stream and a Peer.
//
type Bridge struct {
	port   mmio.Port
	stream Stream
	peer   Peer
	ov     *Override
	cfg    Config
	perm   logger.Permission

	data  Duplex
	sync  SyncState
	stats Stats
	buf   []byte
}

// New returns a new Bridge. The bridge takes ownership of port, stream, peer
// and cfg.Log: see Close.
//
// peer may be nil if there is no co-simulator, in which case no command is
// ever polled. ov may be nil if interrupts are not relayed.
//
func New(port mmio.Port, stream Stream, peer Peer, ov *Override, cfg Config) *Bridge {
	cfg = cfg.withDefaults()
	return &Bridge{
		port:   port,
		stream: stream,
		peer:   peer,
		ov:     ov,
		cfg:    cfg,
		perm:   logger.Verbose(cfg.Verbose),
		buf:    make([]byte, cfg.StepWidth),
	}
}

// Name returns the bridge name.
//
func (b *Bridge) Name() string { return b.cfg.Name }

// Tick drains the UART. It returns once an iteration completes with no
// transfer in either direction.
//
// All returned errors are fatal to the bridge except ErrMalformedStep (see
// IsFatal).
//
func (b *Bridge) Tick() error {
	b.stats.Ticks++
	for {
		b.data.Out.Ready = true
		b.data.In.Valid = false
		b.stats.Iterations++

		b.recv()

		if err := b.Poll(); err != nil {
			return err
		}

		if b.data.In.Ready {
			if c, ok := b.input(); ok {
				b.data.In.Bits = c
				b.data.In.Valid = true
			}
		}

		inFired, outFired := b.data.In.Fire(), b.data.Out.Fire()

		if outFired {
			if err := b.output(b.data.Out.Bits); err != nil {
				return err
			}
		}

		b.send()
		b.data.In.Valid = false

		if !inFired && !outFired {
			return nil
		}
	}
}

// input returns the pending override if any, or the next stream byte.
//
func (b *Bridge) input() (byte, bool) {
	if b.ov != nil {
		if c := b.ov.Take(); c != 0 {
			return c, true
		}
	}
	return b.stream.TryReadByte()
}

func (b *Bridge) output(c byte) error {
	p := [1]byte{c}
	if err := writeByte(b.stream, p[:]); err != nil {
		err = b.fail("output", ErrSinkWrite, err)
		logger.Log(logger.Allow, b.cfg.Name, err.Error())
		return err
	}
	if b.cfg.Log != nil {
		if err := writeByte(b.cfg.Log, p[:]); err != nil {
			err = b.fail("output", ErrLogWrite, err)
			logger.Log(logger.Allow, b.cfg.Name, err.Error())
			return err
		}
	}
	return nil
}

func writeByte(w io.Writer, p []byte) error {
	n, err := w.Write(p)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	return err
}

func (b *Bridge) recv() {
	b.data.In.Ready = mmio.Bool(b.port.Read(mmio.InReady))
	b.data.Out.Valid = mmio.Bool(b.port.Read(mmio.OutValid))
	if b.data.Out.Valid {
		b.data.Out.Bits = byte(b.port.Read(mmio.OutBits))
	}
}

func (b *Bridge) send() {
	if b.data.In.Fire() {
		b.port.Write(mmio.InBits, uint32(b.data.In.Bits))
		b.port.Write(mmio.InValid, mmio.FromBool(b.data.In.Valid))
		b.stats.BytesIn++
	}
	if b.data.Out.Fire() {
		b.port.Write(mmio.OutReady, mmio.FromBool(b.data.Out.Ready))
		b.stats.BytesOut++
	}
}

// Duplex returns the channel state as of the last iteration.
//
func (b *Bridge) Duplex() Duplex { return b.data }

// Stats returns the bridge activity counters.
//
func (b *Bridge) Stats() Stats { return b.stats }

// Close closes the stream, the peer and the log writer if they implement
// io.Closer. It returns the first error encountered.
//
func (b *Bridge) Close() error {
	var first error
	for _, v := range []interface{}{b.stream, b.peer, b.cfg.Log} {
		if c, ok := v.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = errors.Wrap(err, b.cfg.Name+": close")
			}
		}
	}
	return first
}
