package main

import (
	"context"
	"testing"
	"time"

	"github.com/db47h/uartbridge/bridge"
	"github.com/db47h/uartbridge/bridge/bridgetest"
	"github.com/db47h/uartbridge/sim"
	"github.com/db47h/uartbridge/simlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-uart", "2", "-peer-host", "sim", "-port-base", "2000"})
	require.NoError(t, err)
	assert.Equal(t, 2, o.uart)
	assert.Equal(t, "sim:2002", o.peer)
	assert.Equal(t, bridge.DefaultStepWidth, o.stepWidth)

	o, err = parseFlags([]string{"-peer", "10.0.0.1:4000", "-no-peer"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:4000", o.peer)
	assert.True(t, o.noPeer)

	_, err = parseFlags([]string{"-uart", "-1"})
	assert.EqualError(t, err, "invalid UART number -1")
	_, err = parseFlags([]string{"extra"})
	assert.EqualError(t, err, `unexpected argument "extra"`)
}

func TestLoop(t *testing.T) {
	u := &simlib.UART{}
	m, err := sim.NewMachine(1, u, &simlib.Governor{Free: true})
	require.NoError(t, err)
	defer m.Dispose()
	s := &bridgetest.Stream{Input: []byte("ping")}
	b := bridge.New(m, s, nil, nil, bridge.Config{Name: "test"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, loop(ctx, m, b, time.Millisecond))
	assert.Equal(t, "ping", s.Output.String())
	assert.NotZero(t, m.Cycles())
}

func TestLoop_fatal(t *testing.T) {
	m, err := sim.NewMachine(1, &simlib.UART{}, &simlib.Governor{Free: true})
	require.NoError(t, err)
	defer m.Dispose()
	p := &bridgetest.Peer{Closed: true}
	p.Send(byte(bridge.DefineStep))
	b := bridge.New(m, &bridgetest.Stream{}, p, nil, bridge.Config{Name: "test"})

	err = loop(context.Background(), m, b, 0)
	require.Error(t, err)
	assert.True(t, bridge.IsFatal(err))
}
