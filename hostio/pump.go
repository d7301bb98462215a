// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package hostio provides the host side collaborators of a bridge: console and
// pseudo-terminal character streams, UART log files and the TCP link to a
// co-simulator.
//
// All of them read through a Pump, which turns a blocking io.Reader into a
// non-blocking byte source.
//
package hostio

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrClosed is returned by ReadFull when the underlying reader is exhausted
// or the pump is closed.
//
var ErrClosed = errors.New("hostio: closed")

// ErrTimeout is returned by ReadFull when the requested bytes do not arrive
// in time. It implements Timeout() bool, like net.Error.
//
var ErrTimeout error = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string   { return "hostio: timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// DefaultPumpSize is the default buffer size of a Pump.
//
const DefaultPumpSize = 4096

// Pump reads from an io.Reader in a background goroutine and hands bytes
// over through a buffered channel. The reader is only read ahead up to the
// buffer size; bytes are never dropped.
//
type Pump struct {
	c       chan byte
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	err     error // set before stopped is closed
}

// NewPump starts pumping r. size is the number of bytes buffered ahead; if
// size <= 0, DefaultPumpSize is used.
//
func NewPump(r io.Reader, size int) *Pump {
	if size <= 0 {
		size = DefaultPumpSize
	}
	p := &Pump{
		c:       make(chan byte, size),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go p.run(r)
	return p
}

func (p *Pump) run(r io.Reader) {
	defer close(p.stopped)
	defer close(p.c)
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		for _, c := range buf[:n] {
			select {
			case p.c <- c:
			case <-p.done:
				p.err = ErrClosed
				return
			}
		}
		if err != nil {
			p.err = err
			return
		}
	}
}

// TryReadByte returns the next byte if one is available. It never blocks.
//
func (p *Pump) TryReadByte() (byte, bool) {
	select {
	case c, ok := <-p.c:
		return c, ok
	default:
		return 0, false
	}
}

// ReadFull reads exactly len(b) bytes. It waits at most timeout for them, or
// forever if timeout <= 0. On failure, the bytes read so far are in b but are
// not returned to the pump.
//
func (p *Pump) ReadFull(b []byte, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	for i := range b {
		select {
		case c, ok := <-p.c:
			if !ok {
				return ErrClosed
			}
			b[i] = c
		case <-expired:
			return ErrTimeout
		}
	}
	return nil
}

// Err returns the error that stopped the pump, typically io.EOF, or nil while
// the pump is running. Buffered bytes may still be available after the pump
// stopped.
//
func (p *Pump) Err() error {
	select {
	case <-p.stopped:
		return p.err
	default:
		return nil
	}
}

// Close stops the pump. The goroutine exits on its next delivery attempt or
// once the underlying reader returns; closing the reader is the caller's
// responsibility.
//
func (p *Pump) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
