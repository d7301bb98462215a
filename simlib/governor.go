// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package simlib

import (
	"github.com/db47h/uartbridge/mmio"
	"github.com/db47h/uartbridge/sim"
)

// Governor throttles a machine clock on behalf of a co-simulator.
//
// A write of in_ctrl_valid=1 grants in_ctrl_bits tokens, each worth
// cycle_step cycles, to the cycle budget. Every cycle consumes one unit of
// budget and increments cycle_count. A zero cycle_step at mount time defaults
// to 1. Mount installs Open as the machine gate.
//
type Governor struct {
	// Free lets the clock run without grants.
	Free bool

	Step   sim.Register `mmio:"cycle_step"`
	Count  sim.Register `mmio:"cycle_count,ro"`
	Budget sim.Register `mmio:"cycle_budget,ro"`

	ctrlBits uint32
	grants   uint64
}

// Mount implements sim.Peripheral.
//
func (g *Governor) Mount(m *sim.Machine) ([]sim.Component, error) {
	if g.Step == 0 {
		g.Step = 1
	}
	if err := sim.Bind(m, g); err != nil {
		return nil, err
	}
	if err := m.Map(mmio.InCtrlBits, func() uint32 { return g.ctrlBits }, func(v uint32) { g.ctrlBits = v }); err != nil {
		return nil, err
	}
	if err := m.Map(mmio.InCtrlValid, nil, g.grant); err != nil {
		return nil, err
	}
	m.SetGate(g.Open)
	return []sim.Component{g.update}, nil
}

func (g *Governor) grant(v uint32) {
	if v == 0 {
		return
	}
	g.Budget.Add(g.ctrlBits * g.Step.Load())
	g.grants++
}

func (g *Governor) update(*sim.Machine) {
	if g.Budget > 0 {
		g.Budget--
	}
	g.Count++
}

// Open reports whether the machine may run another cycle.
//
func (g *Governor) Open() bool { return g.Free || g.Budget > 0 }

// Grants returns the number of grants received.
//
func (g *Governor) Grants() uint64 { return g.grants }
