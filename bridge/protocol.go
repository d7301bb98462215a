// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package bridge

import (
	"io"
	"strconv"
	"strings"

	"github.com/db47h/uartbridge/internal/logger"
	"github.com/db47h/uartbridge/mmio"
	"github.com/pkg/errors"
)

// Command is a co-simulator command code.
//
type Command byte

// Co-simulator commands. Any other byte is ignored.
//
const (
	// GrantToken releases the simulated clock past its synchronization
	// barrier.
	GrantToken Command = 0x80
	// RequestCycles asks for the remaining cycle budget. The reply is the
	// budget in decimal ASCII with no terminator.
	RequestCycles Command = 0x81
	// DefineStep sets the number of cycles granted per token. It is followed
	// by a fixed width decimal ASCII payload (see Config.StepWidth).
	DefineStep Command = 0x83
)

func (c Command) String() string {
	switch c {
	case GrantToken:
		return "GRANT_TOKEN"
	case RequestCycles:
		return "REQUEST_CYCLES"
	case DefineStep:
		return "DEFINE_STEP"
	}
	return "0x" + strconv.FormatUint(uint64(c), 16)
}

// SyncState is the state of the co-simulation protocol.
//
type SyncState struct {
	Last     Command // last recognized command, 0 if none yet
	Grants   uint64
	Requests uint64
	Steps    uint64 // accepted step definitions
	Step     uint32 // last cycle step written
}

// State returns the protocol state.
//
func (b *Bridge) State() SyncState { return b.sync }

// Poll reads at most one command from the peer and executes it. It returns
// immediately if no byte is available.
//
// A DefineStep command waits for its payload, for at most Config.StepTimeout.
// This is the only place where the bridge blocks.
//
func (b *Bridge) Poll() error {
	if b.peer == nil {
		return nil
	}
	c, ok := b.peer.TryReadByte()
	if !ok {
		return nil
	}
	switch cmd := Command(c); cmd {
	case GrantToken:
		b.port.Write(mmio.InCtrlBits, 1)
		b.port.Write(mmio.InCtrlValid, 1)
		b.sync.Grants++
	case RequestCycles:
		if err := b.reportCycles(); err != nil {
			return err
		}
		b.sync.Requests++
	case DefineStep:
		if err := b.defineStep(); err != nil {
			return err
		}
		b.sync.Steps++
	default:
		logger.Logf(b.perm, b.cfg.Name, "ignored command %s", cmd)
		return nil
	}
	b.sync.Last = Command(c)
	return nil
}

func (b *Bridge) reportCycles() error {
	budget := b.port.Read(mmio.CycleBudget)
	logger.Logf(b.perm, b.cfg.Name, "cycle budget %d", budget)
	if err := writeAll(b.peer, []byte(strconv.FormatUint(uint64(budget), 10))); err != nil {
		return b.fail("request cycles", ErrPeerWrite, err)
	}
	return nil
}

func (b *Bridge) defineStep() error {
	p := b.buf[:b.cfg.StepWidth]
	if err := b.peer.ReadFull(p, b.cfg.StepTimeout); err != nil {
		kind := ErrPeerClosed
		if t, ok := errors.Cause(err).(interface{ Timeout() bool }); ok && t.Timeout() {
			kind = ErrStepTimeout
		}
		err = b.fail("define step", kind, err)
		logger.Log(logger.Allow, b.cfg.Name, err.Error())
		return err
	}
	step, ok := parseStep(p)
	if !ok {
		err := b.fail("define step", ErrMalformedStep, invalidPayload(append([]byte(nil), p...)))
		logger.Log(logger.Allow, b.cfg.Name, err.Error())
		return err
	}
	b.port.Write(mmio.CycleStep, step)
	b.sync.Step = step
	logger.Logf(logger.Allow, b.cfg.Name, "cycle step set to %d", step)
	return nil
}

// parseStep parses a fixed width decimal payload. Leading spaces are allowed.
//
func parseStep(p []byte) (uint32, bool) {
	s := strings.TrimLeft(string(p), " ")
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

type invalidPayload []byte

func (p invalidPayload) Error() string { return "payload " + strconv.Quote(string(p)) }

func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
