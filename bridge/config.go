// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package bridge

import (
	"io"
	"time"
)

// Default configuration values.
//
const (
	DefaultStepWidth   = 4
	DefaultStepTimeout = 5 * time.Second
)

// Config holds the bridge settings.
//
type Config struct {
	// Name tags log entries and errors, e.g. "uart0".
	Name string
	// StepWidth is the number of decimal digits in a step definition payload.
	StepWidth int
	// StepTimeout bounds the wait for a step definition payload. Negative
	// values wait forever.
	StepTimeout time.Duration
	// Log, if not nil, receives a copy of every byte sent by the device.
	Log io.Writer
	// Verbose enables logging of protocol traffic.
	Verbose bool
}

// DefaultConfig returns the default configuration.
//
func DefaultConfig() Config {
	return Config{
		Name:        "uart",
		StepWidth:   DefaultStepWidth,
		StepTimeout: DefaultStepTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.StepWidth <= 0 {
		c.StepWidth = d.StepWidth
	}
	if c.StepTimeout == 0 {
		c.StepTimeout = d.StepTimeout
	}
	return c
}
