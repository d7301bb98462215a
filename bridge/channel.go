// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package bridge

// Channel is one direction of a ready/valid byte handshake.
//
type Channel struct {
	Bits  byte
	Valid bool
	Ready bool
}

// Fire reports whether a transfer happens on the channel: the producer
// offers a byte and the consumer accepts it in the same evaluation.
//
func (c *Channel) Fire() bool { return c.Valid && c.Ready }

// Duplex holds both directions of the UART: In flows from the host to the
// simulated device, Out from the device to the host.
//
type Duplex struct {
	In  Channel
	Out Channel
}
