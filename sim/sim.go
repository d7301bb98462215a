// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

/*
Package sim provides a naive clocked simulator for the device side of a UART
bridge.

A Machine is built from peripherals. Each peripheral maps some of the widget
registers (see package mmio) and returns components, functions that are called
once per clock cycle. The Machine implements mmio.Port, so that a bridge can
drive it directly.

The clock can be gated: a gate function is checked before every cycle and the
machine does not advance while it returns false. This is how a co-simulator
throttles the device.

Register accesses through the Port and calls to Step must not happen
concurrently. Components of a single cycle may run concurrently on several
worker goroutines and must therefore only touch their own peripheral's state.
*/
package sim

import (
	"runtime"
	"sync"

	"github.com/db47h/uartbridge/mmio"
	"github.com/pkg/errors"
)

// A Component is updated once per clock cycle.
//
type Component func(m *Machine)

// A Peripheral is a device that can be mounted on a Machine.
//
// Mount should map the peripheral registers with m.Map and return the
// components to update every cycle.
//
type Peripheral interface {
	Mount(m *Machine) ([]Component, error)
}

// MountFn is a function that implements Peripheral.
//
type MountFn func(m *Machine) ([]Component, error)

// Mount implements Peripheral.
//
func (f MountFn) Mount(m *Machine) ([]Component, error) { return f(m) }

type handler struct {
	read  func() uint32
	write func(uint32)
}

// Machine is a runnable device simulation.
//
type Machine struct {
	regs   [mmio.RegCount]handler
	cs     []Component
	cycles uint64
	gate   func() bool

	wc []chan struct{}
	wg sync.WaitGroup
}

// NewMachine builds a new machine with the given peripherals.
//
// workers is the number of goroutines used to update the components each
// cycle. If less or equal to 0, the value of GOMAXPROCS will be used. There
// are never more workers than components.
//
// Callers must make sure to call Dispose() once the machine is no longer
// needed in order to release allocated resources.
//
func NewMachine(workers int, ps ...Peripheral) (*Machine, error) {
	if len(ps) == 0 {
		return nil, errors.New("empty peripheral list")
	}
	m := new(Machine)
	for i, p := range ps {
		cs, err := p.Mount(m)
		if err != nil {
			return nil, errors.Wrapf(err, "mount peripheral #%d", i)
		}
		m.cs = append(m.cs, cs...)
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(-1)
	}
	if workers > len(m.cs) {
		workers = len(m.cs)
	}
	size := 0
	if workers > 0 {
		size = len(m.cs) / workers
		if size*workers < len(m.cs) {
			size++
		}
	}
	for cs := m.cs; len(cs) > 0; {
		if size > len(cs) {
			size = len(cs)
		}
		wc := make(chan struct{}, 1)
		m.wc = append(m.wc, wc)
		go worker(m, cs[:size], wc)
		cs = cs[size:]
	}
	return m, nil
}

// Dispose releases all resources allocated for a machine and stops worker
// goroutines.
//
func (m *Machine) Dispose() {
	m.wg.Add(len(m.wc))
	for _, wc := range m.wc {
		close(wc)
	}
	m.wg.Wait()
	m.wc = nil
}

func worker(m *Machine, cs []Component, wc <-chan struct{}) {
	for {
		_, ok := <-wc
		if !ok {
			m.wg.Done()
			return
		}
		for _, f := range cs {
			f(m)
		}
		m.wg.Done()
	}
}

// Map maps register r to the given read and write functions. A nil read
// function reads as 0, a nil write function ignores writes.
//
// Map returns an error if r is already mapped.
//
func (m *Machine) Map(r mmio.Reg, read func() uint32, write func(uint32)) error {
	if r < 0 || int(r) >= mmio.RegCount {
		return errors.Errorf("invalid register %s", r)
	}
	if h := &m.regs[r]; h.read != nil || h.write != nil {
		return errors.Errorf("register %s already mapped", r)
	}
	if read == nil {
		read = func() uint32 { return 0 }
	}
	if write == nil {
		write = func(uint32) {}
	}
	m.regs[r] = handler{read, write}
	return nil
}

// Read implements mmio.Port. Unmapped registers read as 0.
//
func (m *Machine) Read(r mmio.Reg) uint32 {
	if h := m.regs[r]; h.read != nil {
		return h.read()
	}
	return 0
}

// Write implements mmio.Port. Writes to unmapped registers are ignored.
//
func (m *Machine) Write(r mmio.Reg, v uint32) {
	if h := m.regs[r]; h.write != nil {
		h.write(v)
	}
}

// SetGate sets the clock gate. The machine only advances while gate returns
// true. A nil gate never blocks the clock.
//
func (m *Machine) SetGate(gate func() bool) { m.gate = gate }

// Open returns true if the clock gate allows the next cycle.
//
func (m *Machine) Open() bool { return m.gate == nil || m.gate() }

// Step runs one clock cycle if the gate allows it. It returns false if the
// clock did not advance.
//
func (m *Machine) Step() bool {
	if !m.Open() {
		return false
	}
	m.wg.Add(len(m.wc))
	for _, wc := range m.wc {
		wc <- struct{}{}
	}
	m.wg.Wait()
	m.cycles++
	return true
}

// Run runs at most n cycles and returns the number of cycles actually run.
// It stops early when the gate closes.
//
func (m *Machine) Run(n uint64) uint64 {
	var i uint64
	for i < n && m.Step() {
		i++
	}
	return i
}

// Cycles returns the number of cycles run so far.
//
func (m *Machine) Cycles() uint64 { return m.cycles }

// Size returns the component count in the machine.
//
func (m *Machine) Size() int { return len(m.cs) }
