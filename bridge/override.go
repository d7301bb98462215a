// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package bridge

import (
	"os"
	"os/signal"
	"sync/atomic"
)

// ETX is the byte sent to the device on an interrupt (ctrl-c).
//
const ETX = 0x03

// Override is a single byte slot that takes precedence over the character
// stream as input to the device. It is meant to relay keyboard interrupts when
// the terminal is not in raw mode.
//
// There is no queuing: Set replaces any pending value. Zero means nothing is
// pending. Set and Take are lock free and safe for concurrent use.
//
type Override struct {
	v atomic.Uint32
}

// Set stores b as the pending value. Set(0) cancels a pending value.
//
func (o *Override) Set(b byte) { o.v.Store(uint32(b)) }

// Take returns the pending value and clears it. It returns 0 if nothing was
// pending.
//
func (o *Override) Take() byte { return byte(o.v.Swap(0)) }

// Pending returns the pending value without clearing it.
//
func (o *Override) Pending() byte { return byte(o.v.Load()) }

// SignalByte returns the byte relayed for sig: ETX for os.Interrupt, 0 for
// anything else.
//
func SignalByte(sig os.Signal) byte {
	if sig == os.Interrupt {
		return ETX
	}
	return 0
}

// Notify relays the given signals to o until stop is called. With no
// arguments, only os.Interrupt is relayed.
//
// Relayed signals no longer trigger their default behavior.
//
func (o *Override) Notify(sig ...os.Signal) (stop func()) {
	if len(sig) == 0 {
		sig = []os.Signal{os.Interrupt}
	}
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, sig...)
	go func() {
		for {
			select {
			case s := <-ch:
				o.Set(SignalByte(s))
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
