// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hostio

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/pkg/term/termios"
	"golang.org/x/term"
)

// PTY is a character stream on the master side of a pseudo-terminal. Users
// attach to the slave side, e.g. with screen(1).
//
type PTY struct {
	*Pump
	ptm  *os.File
	pts  *os.File
	link string
}

// OpenPTY allocates a pseudo-terminal for the given UART and creates a
// symbolic link named uartpty<uart> in dir that points to the slave device.
// An existing link is replaced.
//
// The slave is kept open and in raw mode so that the line discipline does not
// alter the byte stream.
//
func OpenPTY(dir string, uart int) (*PTY, error) {
	ptm, pts, err := termios.Pty()
	if err != nil {
		return nil, errors.Wrap(err, "allocate pty")
	}
	if _, err = term.MakeRaw(int(pts.Fd())); err != nil {
		ptm.Close()
		pts.Close()
		return nil, errors.Wrap(err, "pty raw mode")
	}
	link := filepath.Join(dir, "uartpty"+strconv.Itoa(uart))
	if err = os.Remove(link); err != nil && !os.IsNotExist(err) {
		ptm.Close()
		pts.Close()
		return nil, errors.Wrap(err, "remove stale pty link")
	}
	if err = os.Symlink(pts.Name(), link); err != nil {
		ptm.Close()
		pts.Close()
		return nil, errors.Wrap(err, "pty link")
	}
	return &PTY{
		Pump: NewPump(ptm, 0),
		ptm:  ptm,
		pts:  pts,
		link: link,
	}, nil
}

// Name returns the path of the slave device.
//
func (p *PTY) Name() string { return p.pts.Name() }

// Link returns the path of the symbolic link to the slave device.
//
func (p *PTY) Link() string { return p.link }

func (p *PTY) Write(b []byte) (int, error) {
	return p.ptm.Write(b)
}

// Close releases the pseudo-terminal and removes its link.
//
func (p *PTY) Close() error {
	p.Pump.Close()
	err := p.ptm.Close()
	if e := p.pts.Close(); err == nil {
		err = e
	}
	if e := os.Remove(p.link); err == nil && !os.IsNotExist(e) {
		err = e
	}
	return errors.Wrap(err, "close pty")
}

// OpenLog creates or truncates the log file uartlog<uart> in dir.
//
func OpenLog(dir string, uart int) (*os.File, error) {
	name := filepath.Join(dir, "uartlog"+strconv.Itoa(uart))
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	return f, errors.Wrap(err, "open uart log")
}
