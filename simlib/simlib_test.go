package simlib_test

import (
	"bytes"
	"testing"

	"github.com/db47h/uartbridge/bridge"
	"github.com/db47h/uartbridge/bridge/bridgetest"
	"github.com/db47h/uartbridge/mmio"
	"github.com/db47h/uartbridge/sim"
	"github.com/db47h/uartbridge/simlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMachine(t *testing.T, ps ...sim.Peripheral) *sim.Machine {
	t.Helper()
	m, err := sim.NewMachine(0, ps...)
	require.NoError(t, err)
	t.Cleanup(m.Dispose)
	return m
}

func TestUART_registers(t *testing.T) {
	u := &simlib.UART{Depth: 2}
	m := newMachine(t, u)

	assert.EqualValues(t, 1, m.Read(mmio.InReady))
	assert.EqualValues(t, 0, m.Read(mmio.OutValid))
	for _, c := range []byte("abc") {
		m.Write(mmio.InBits, uint32(c))
		m.Write(mmio.InValid, 1)
	}
	rx, tx := u.Pending()
	assert.Equal(t, 2, rx, "third byte must be dropped")
	assert.Equal(t, 0, tx)
	assert.EqualValues(t, 0, m.Read(mmio.InReady))

	// in_valid=0 does not enqueue
	m.Step()
	m.Write(mmio.InBits, 'z')
	m.Write(mmio.InValid, 0)
	rx, tx = u.Pending()
	assert.Equal(t, 1, rx)
	assert.Equal(t, 1, tx)
	assert.EqualValues(t, 1, m.Read(mmio.OutValid))
	assert.EqualValues(t, 'a', m.Read(mmio.OutBits))

	m.Write(mmio.OutReady, 1)
	assert.EqualValues(t, 0, m.Read(mmio.OutValid))
	assert.EqualValues(t, 0, m.Read(mmio.OutBits))
	m.Write(mmio.OutReady, 1)
	assert.EqualValues(t, 0, m.Read(mmio.OutValid))
}

func TestUART_Send(t *testing.T) {
	u := &simlib.UART{Depth: 4}
	m := newMachine(t, u)
	assert.Equal(t, 4, u.Send([]byte("hello")))
	assert.Equal(t, 0, u.Send([]byte("!")))
	assert.EqualValues(t, 'h', m.Read(mmio.OutBits))
}

func TestUART_loopback(t *testing.T) {
	u := &simlib.UART{Transform: func(c byte) byte { return bytes.ToUpper([]byte{c})[0] }}
	m := newMachine(t, u)
	s := &bridgetest.Stream{Input: []byte("hello, world")}
	b := bridge.New(m, s, nil, nil, bridge.Config{Name: "test"})

	for i := 0; i < 100 && s.Output.Len() < 12; i++ {
		require.NoError(t, b.Tick())
		m.Step()
	}
	assert.Equal(t, "HELLO, WORLD", s.Output.String())
	rx, tx := u.Pending()
	assert.Zero(t, rx)
	assert.Zero(t, tx)
}

func TestGovernor(t *testing.T) {
	g := &simlib.Governor{}
	u := &simlib.UART{}
	m := newMachine(t, u, g)
	p := &bridgetest.Peer{}
	b := bridge.New(m, &bridgetest.Stream{}, p, nil, bridge.Config{Name: "test"})

	assert.EqualValues(t, 1, m.Read(mmio.CycleStep))
	assert.False(t, m.Step(), "clock must be gated without grants")

	p.Send(byte(bridge.DefineStep))
	p.Send([]byte("0010")...)
	require.NoError(t, b.Tick())
	assert.EqualValues(t, 10, g.Step)

	p.Send(byte(bridge.GrantToken))
	require.NoError(t, b.Tick())
	assert.EqualValues(t, 10, m.Read(mmio.CycleBudget))
	assert.EqualValues(t, 1, g.Grants())

	assert.EqualValues(t, 4, m.Run(4))
	p.Send(byte(bridge.RequestCycles))
	require.NoError(t, b.Tick())
	assert.Equal(t, "6", p.Output.String())

	assert.EqualValues(t, 6, m.Run(100))
	assert.False(t, g.Open())
	assert.EqualValues(t, 10, m.Read(mmio.CycleCount))

	// read-only from the port
	m.Write(mmio.CycleBudget, 1000)
	m.Write(mmio.CycleCount, 0)
	assert.EqualValues(t, 0, m.Read(mmio.CycleBudget))
	assert.EqualValues(t, 10, m.Read(mmio.CycleCount))

	// one command per idle tick
	p.Send(byte(bridge.GrantToken), byte(bridge.GrantToken))
	require.NoError(t, b.Tick())
	assert.EqualValues(t, 10, m.Read(mmio.CycleBudget))
	require.NoError(t, b.Tick())
	assert.EqualValues(t, 20, m.Read(mmio.CycleBudget))
	assert.EqualValues(t, 3, g.Grants())
}

func TestGovernor_free(t *testing.T) {
	g := &simlib.Governor{Free: true, Step: 5}
	m := newMachine(t, g)
	assert.EqualValues(t, 5, m.Read(mmio.CycleStep))
	assert.EqualValues(t, 50, m.Run(50))
	assert.EqualValues(t, 50, g.Count)
	assert.Zero(t, g.Budget)
}
