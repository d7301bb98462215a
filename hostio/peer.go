// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hostio

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/db47h/uartbridge/internal/logger"
	"github.com/pkg/errors"
)

// DefaultPortBase is the TCP port of the co-simulator for UART 0. UART n
// connects to DefaultPortBase+n.
//
const DefaultPortBase = 10100

// PeerAddr returns the co-simulator address for the given UART.
//
func PeerAddr(host string, base, uart int) string {
	return net.JoinHostPort(host, strconv.Itoa(base+uart))
}

// DialConfig controls connection establishment.
//
type DialConfig struct {
	// Timeout bounds a single connection attempt. Zero means no timeout
	// other than the context's.
	Timeout time.Duration
	// Retry is the delay between attempts.
	Retry time.Duration
	// Attempts is the maximum number of attempts. Zero or less retries until
	// the context is done.
	Attempts int
	// Log enables logging of failed attempts.
	Log logger.Permission
}

// Peer is a TCP link to a co-simulator.
//
type Peer struct {
	*Pump
	conn net.Conn
}

// NewPeer wraps an established connection.
//
func NewPeer(conn net.Conn) *Peer {
	return &Peer{
		Pump: NewPump(conn, 0),
		conn: conn,
	}
}

// Dial connects to the co-simulator at addr. Failed attempts are retried
// until cfg.Attempts is reached or ctx is done, whichever comes first.
//
func Dial(ctx context.Context, addr string, cfg DialConfig) (*Peer, error) {
	perm := cfg.Log
	if perm == nil {
		perm = logger.Deny
	}
	d := net.Dialer{Timeout: cfg.Timeout}
	for n := 1; ; n++ {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			logger.Logf(perm, "peer", "connected to %s", addr)
			return NewPeer(conn), nil
		}
		logger.Logf(perm, "peer", "attempt %d: %v", n, err)
		if cfg.Attempts > 0 && n >= cfg.Attempts {
			return nil, errors.Wrapf(err, "connect %s: giving up after %d attempts", addr, n)
		}
		t := time.NewTimer(cfg.Retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Wrapf(ctx.Err(), "connect %s", addr)
		case <-t.C:
		}
	}
}

func (p *Peer) Write(b []byte) (int, error) {
	return p.conn.Write(b)
}

// RemoteAddr returns the co-simulator address.
//
func (p *Peer) RemoteAddr() string { return p.conn.RemoteAddr().String() }

// Close closes the connection.
//
func (p *Peer) Close() error {
	p.Pump.Close()
	return p.conn.Close()
}
