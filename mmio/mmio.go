// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package mmio describes the register interface of a simulated UART bridge
// widget.
//
// The widget exposes a fixed set of named registers: the ready/valid
// handshake of the input (host to target) and output (target to host) byte
// channels, the control grant used by a co-simulator to release the target
// clock, and the cycle counters.
//
// Boolean registers read and write as 0 or 1.
//
package mmio

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Reg identifies a widget register.
//
type Reg int

// Widget registers.
//
const (
	InBits Reg = iota
	InValid
	InReady
	OutBits
	OutValid
	OutReady
	InCtrlBits
	InCtrlValid
	CycleCount
	CycleBudget
	CycleStep

	RegCount int = iota
)

var regNames = [...]string{
	InBits:      "in_bits",
	InValid:     "in_valid",
	InReady:     "in_ready",
	OutBits:     "out_bits",
	OutValid:    "out_valid",
	OutReady:    "out_ready",
	InCtrlBits:  "in_ctrl_bits",
	InCtrlValid: "in_ctrl_valid",
	CycleCount:  "cycle_count",
	CycleBudget: "cycle_budget",
	CycleStep:   "cycle_step",
}

func (r Reg) String() string {
	if r < 0 || int(r) >= RegCount {
		return "reg(" + strconv.Itoa(int(r)) + ")"
	}
	return regNames[r]
}

// ParseReg returns the register with the given name. Names are case
// insensitive.
//
func ParseReg(name string) (Reg, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, rn := range regNames {
		if rn == n {
			return Reg(i), nil
		}
	}
	return -1, errors.Errorf("unknown register %q", name)
}

// A Port gives read and write access to the widget registers.
//
// Implementations do not need to be safe for concurrent use: a Port is owned
// by a single bridge for its whole lifetime.
//
type Port interface {
	Read(r Reg) uint32
	Write(r Reg, v uint32)
}

// Bool converts a register value to a boolean.
//
func Bool(v uint32) bool { return v != 0 }

// FromBool converts a boolean to a register value.
//
func FromBool(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
