// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Command uartbridge connects a simulated UART to the host terminal and,
// optionally, to a co-simulator that meters the device clock.
//
// UART 0 is attached to the console and relays ctrl-c to the device. Other
// UARTs are attached to a pseudo-terminal, linked as uartpty<N> in the
// working directory, and log their output to uartlog<N>.
//
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/db47h/uartbridge/bridge"
	"github.com/db47h/uartbridge/hostio"
	"github.com/db47h/uartbridge/internal/logger"
	"github.com/db47h/uartbridge/mmio"
	"github.com/db47h/uartbridge/sim"
	"github.com/db47h/uartbridge/simlib"
	"github.com/pkg/errors"
)

type options struct {
	uart        int
	peer        string
	peerHost    string
	portBase    int
	noPeer      bool
	connTimeout time.Duration
	raw         bool
	dir         string
	preset      string
	stepWidth   int
	stepTimeout time.Duration
	queue       int
	workers     int
	idle        time.Duration
	verbose     bool
}

func parseFlags(args []string) (*options, error) {
	var o options
	fs := flag.NewFlagSet("uartbridge", flag.ContinueOnError)
	fs.IntVar(&o.uart, "uart", 0, "UART number")
	fs.StringVar(&o.peer, "peer", "", "co-simulator address (default `host:port-base+uart`)")
	fs.StringVar(&o.peerHost, "peer-host", "localhost", "co-simulator host")
	fs.IntVar(&o.portBase, "port-base", hostio.DefaultPortBase, "co-simulator TCP port for UART 0")
	fs.BoolVar(&o.noPeer, "no-peer", false, "run without co-simulator, the clock is free running")
	fs.DurationVar(&o.connTimeout, "connect-timeout", 0, "give up connecting to the co-simulator after this delay (0 waits forever)")
	fs.BoolVar(&o.raw, "raw", false, "put the console in raw mode (UART 0 only)")
	fs.StringVar(&o.dir, "dir", ".", "directory for pty links and log files")
	fs.StringVar(&o.preset, "preset", "", "initial register values, e.g. `cycle_step=100`")
	fs.IntVar(&o.stepWidth, "step-width", bridge.DefaultStepWidth, "step definition payload width")
	fs.DurationVar(&o.stepTimeout, "step-timeout", bridge.DefaultStepTimeout, "step definition payload timeout (negative waits forever)")
	fs.IntVar(&o.queue, "queue", simlib.DefaultDepth, "UART queue depth")
	fs.IntVar(&o.workers, "workers", 1, "simulation worker goroutines (0 for GOMAXPROCS)")
	fs.DurationVar(&o.idle, "idle", time.Millisecond, "sleep time when idle")
	fs.BoolVar(&o.verbose, "v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, errors.Errorf("unexpected argument %q", fs.Arg(0))
	}
	if o.uart < 0 {
		return nil, errors.Errorf("invalid UART number %d", o.uart)
	}
	if o.peer == "" {
		o.peer = hostio.PeerAddr(o.peerHost, o.portBase, o.uart)
	}
	return &o, nil
}

func main() {
	logger.SetEcho(os.Stderr)
	o, err := parseFlags(os.Args[1:])
	if err == flag.ErrHelp {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	if err = run(ctx, o); err != nil {
		logger.Log(logger.Allow, "main", err.Error())
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, o *options) error {
	name := "uart" + strconv.Itoa(o.uart)
	perm := logger.Verbose(o.verbose)

	var as []mmio.Assignment
	if o.preset != "" {
		var err error
		if as, err = mmio.ParseAssignments(o.preset); err != nil {
			return errors.Wrap(err, "preset")
		}
	}

	u := &simlib.UART{Depth: o.queue}
	g := &simlib.Governor{Free: o.noPeer}
	m, err := sim.NewMachine(o.workers, u, g)
	if err != nil {
		return err
	}
	defer m.Dispose()
	mmio.Apply(m, as)

	cfg := bridge.Config{
		Name:        name,
		StepWidth:   o.stepWidth,
		StepTimeout: o.stepTimeout,
		Verbose:     o.verbose,
	}

	var (
		stream bridge.Stream
		ov     *bridge.Override
	)
	if o.uart == 0 {
		c, err := hostio.Stdio(o.raw)
		if err != nil {
			return err
		}
		stream = c
		ov = new(bridge.Override)
		defer ov.Notify(os.Interrupt)()
	} else {
		p, err := hostio.OpenPTY(o.dir, o.uart)
		if err != nil {
			return err
		}
		logger.Logf(logger.Allow, name, "%s -> %s", p.Link(), p.Name())
		f, err := hostio.OpenLog(o.dir, o.uart)
		if err != nil {
			p.Close()
			return err
		}
		stream = p
		cfg.Log = f
	}

	var peer bridge.Peer
	if !o.noPeer {
		dctx := ctx
		if o.connTimeout > 0 {
			var cancel context.CancelFunc
			dctx, cancel = context.WithTimeout(ctx, o.connTimeout)
			defer cancel()
		}
		logger.Logf(logger.Allow, name, "connecting to %s", o.peer)
		p, err := hostio.Dial(dctx, o.peer, hostio.DialConfig{Retry: time.Second, Log: perm})
		if err != nil {
			closeAll(stream, cfg.Log)
			return err
		}
		peer = p
	}

	b := bridge.New(m, stream, peer, ov, cfg)
	defer func() {
		if err := b.Close(); err != nil {
			logger.Log(logger.Allow, name, err.Error())
		}
	}()
	return loop(ctx, m, b, o.idle)
}

func loop(ctx context.Context, m *sim.Machine, b *bridge.Bridge, idle time.Duration) error {
	for ctx.Err() == nil {
		stepped := m.Step()
		it := b.Stats().Iterations
		if err := b.Tick(); err != nil && bridge.IsFatal(err) {
			return err
		}
		if !stepped && b.Stats().Iterations-it <= 1 && idle > 0 {
			time.Sleep(idle)
		}
	}
	return nil
}

func closeAll(cs ...interface{}) {
	for _, c := range cs {
		if c, ok := c.(io.Closer); ok {
			c.Close()
		}
	}
}
