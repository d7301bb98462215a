// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package simlib provides peripherals for sim machines: a UART bridge widget
// with a loopback target and a cycle governor for co-simulation.
//
package simlib

import (
	"github.com/db47h/uartbridge/mmio"
	"github.com/db47h/uartbridge/sim"
)

// DefaultDepth is the default depth of the UART queues.
//
const DefaultDepth = 16

// UART is a bridge widget in front of a loopback target.
//
// The host side sees two queues. Writing in_valid=1 pushes the byte latched in
// in_bits to the receive queue; in_ready is set while that queue has room.
// out_valid and out_bits present the head of the transmit queue, which is
// popped by writing out_ready=1.
//
// Every clock cycle, the target moves one byte from the receive queue to the
// transmit queue, through Transform if set.
//
type UART struct {
	// Depth of each queue. Zero means DefaultDepth.
	Depth int
	// Transform, if not nil, is applied to every byte looped back.
	Transform func(byte) byte

	inBits uint32
	rx, tx []byte
}

func (u *UART) depth() int {
	if u.Depth <= 0 {
		return DefaultDepth
	}
	return u.Depth
}

// Mount implements sim.Peripheral.
//
func (u *UART) Mount(m *sim.Machine) ([]sim.Component, error) {
	regs := []struct {
		r     mmio.Reg
		read  func() uint32
		write func(uint32)
	}{
		{mmio.InBits, func() uint32 { return u.inBits }, func(v uint32) { u.inBits = v & 0xff }},
		{mmio.InValid, nil, u.push},
		{mmio.InReady, func() uint32 { return mmio.FromBool(len(u.rx) < u.depth()) }, nil},
		{mmio.OutBits, u.head, nil},
		{mmio.OutValid, func() uint32 { return mmio.FromBool(len(u.tx) > 0) }, nil},
		{mmio.OutReady, nil, u.pop},
	}
	for _, r := range regs {
		if err := m.Map(r.r, r.read, r.write); err != nil {
			return nil, err
		}
	}
	return []sim.Component{u.loopback}, nil
}

func (u *UART) push(v uint32) {
	if v != 0 && len(u.rx) < u.depth() {
		u.rx = append(u.rx, byte(u.inBits))
	}
}

func (u *UART) head() uint32 {
	if len(u.tx) == 0 {
		return 0
	}
	return uint32(u.tx[0])
}

func (u *UART) pop(v uint32) {
	if v != 0 && len(u.tx) > 0 {
		u.tx = u.tx[1:]
	}
}

func (u *UART) loopback(*sim.Machine) {
	if len(u.rx) == 0 || len(u.tx) >= u.depth() {
		return
	}
	c := u.rx[0]
	u.rx = u.rx[1:]
	if u.Transform != nil {
		c = u.Transform(c)
	}
	u.tx = append(u.tx, c)
}

// Send queues bytes for transmission to the host, as if the target had sent
// them. Bytes beyond the queue capacity are dropped. It returns the number of
// bytes queued.
//
func (u *UART) Send(b []byte) int {
	n := u.depth() - len(u.tx)
	if n > len(b) {
		n = len(b)
	}
	if n < 0 {
		n = 0
	}
	u.tx = append(u.tx, b[:n]...)
	return n
}

// Pending returns the number of bytes in the receive and transmit queues.
//
func (u *UART) Pending() (rx, tx int) { return len(u.rx), len(u.tx) }
