// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package logger is a small central log for the bridge and its harness.
//
// Entries are a tag (usually the bridge name) and a detail string. Identical
// consecutive entries are collapsed into one with a repeat count. Entries can
// be echoed to an io.Writer as they are created.
//
package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Entry is a single line in the log.
//
type Entry struct {
	Timestamp time.Time
	Tag       string
	Detail    string
	repeated  int
}

func (e *Entry) String() string {
	var s strings.Builder
	s.WriteString(e.Tag)
	s.WriteString(": ")
	s.WriteString(e.Detail)
	if e.repeated > 0 {
		fmt.Fprintf(&s, " (repeat x%d)", e.repeated+1)
	}
	s.WriteByte('\n')
	return s.String()
}

// Permission implementations decide whether the caller is allowed to create
// log entries.
//
type Permission interface {
	AllowLogging() bool
}

type allow struct{}

func (allow) AllowLogging() bool { return true }

type deny struct{}

func (deny) AllowLogging() bool { return false }

var (
	// Allow always permits logging.
	Allow Permission = allow{}
	// Deny never permits logging.
	Deny Permission = deny{}
)

// Verbose permits logging only when set to true.
//
type Verbose bool

// AllowLogging implements Permission.
//
func (v Verbose) AllowLogging() bool { return bool(v) }

type logger struct {
	mu         sync.Mutex
	maxEntries int
	entries    []Entry
	echo       io.Writer
}

// maximum number of entries in the central logger.
const maxCentral = 256

var central = &logger{maxEntries: maxCentral}

func (l *logger) log(tag, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tag = strings.ReplaceAll(tag, "\n", "")
	detail = strings.ReplaceAll(detail, "\n", "")

	var e *Entry
	if n := len(l.entries); n > 0 && l.entries[n-1].Tag == tag && l.entries[n-1].Detail == detail {
		e = &l.entries[n-1]
		e.repeated++
		e.Timestamp = time.Now()
	} else {
		l.entries = append(l.entries, Entry{Timestamp: time.Now(), Tag: tag, Detail: detail})
		if len(l.entries) > l.maxEntries {
			l.entries = append(l.entries[:0], l.entries[len(l.entries)-l.maxEntries:]...)
		}
		e = &l.entries[len(l.entries)-1]
	}

	if l.echo != nil {
		io.WriteString(l.echo, e.String())
	}
}

// Log adds an entry to the central logger.
//
func Log(perm Permission, tag, detail string) {
	if perm == Allow || perm.AllowLogging() {
		central.log(tag, detail)
	}
}

// Logf adds a formatted entry to the central logger.
//
func Logf(perm Permission, tag, detail string, args ...interface{}) {
	if perm == Allow || perm.AllowLogging() {
		central.log(tag, fmt.Sprintf(detail, args...))
	}
}

// SetEcho prints new entries to w as they are logged. A nil writer turns
// echoing off.
//
func SetEcho(w io.Writer) {
	central.mu.Lock()
	central.echo = w
	central.mu.Unlock()
}

// Clear removes all entries.
//
func Clear() {
	central.mu.Lock()
	central.entries = central.entries[:0]
	central.mu.Unlock()
}

// Write writes all entries to w.
//
func Write(w io.Writer) {
	Tail(w, maxCentral)
}

// Tail writes the last n entries to w.
//
func Tail(w io.Writer, n int) {
	central.mu.Lock()
	defer central.mu.Unlock()
	if n > len(central.entries) {
		n = len(central.entries)
	}
	if n <= 0 {
		return
	}
	for _, e := range central.entries[len(central.entries)-n:] {
		io.WriteString(w, e.String())
	}
}

// Entries returns a copy of the current entries.
//
func Entries() []Entry {
	central.mu.Lock()
	defer central.mu.Unlock()
	c := make([]Entry, len(central.entries))
	copy(c, central.entries)
	return c
}
