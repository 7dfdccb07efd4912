/*
 * MIT License
 *
 * Copyright (c) 2026 ipsock contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package sockproto defines the type-byte encoding shared by the
// synchronous and asynchronous socket layers: transport (TCP/UDP),
// role (Server/Client), and the fixed limits that bound a connection.
package sockproto

import (
	"fmt"
)

// Transport is the high nibble of an OpenType byte.
type Transport uint8

const (
	TransportNone Transport = 0x00
	TransportTCP  Transport = 0x10
	TransportUDP  Transport = 0x20

	transportMask = 0xF0
)

func (t Transport) String() string {
	switch t {
	case TransportTCP:
		return "tcp"
	case TransportUDP:
		return "udp"
	default:
		return "unknown"
	}
}

// Role is the low nibble of an OpenType byte.
type Role uint8

const (
	RoleNone   Role = 0x00
	RoleServer Role = 0x01
	RoleClient Role = 0x02

	roleMask = 0x0F
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return "unknown"
	}
}

// OpenType is the public type byte: Transport bits (0xF0) combined with
// Role bits (0x0F). Any other combination is invalid.
type OpenType uint8

// New combines a transport and a role into a single type byte.
func New(t Transport, r Role) OpenType {
	return OpenType(t) | OpenType(r)
}

func (o OpenType) Transport() Transport {
	return Transport(o) & transportMask
}

func (o OpenType) Role() Role {
	return Role(o) & roleMask
}

// Valid reports whether o decodes to exactly one known transport and
// one known role; it is the single validation gate for §6's type byte.
func (o OpenType) Valid() bool {
	switch o.Transport() {
	case TransportTCP, TransportUDP:
	default:
		return false
	}
	switch o.Role() {
	case RoleServer, RoleClient:
	default:
		return false
	}
	return true
}

func (o OpenType) String() string {
	return fmt.Sprintf("%s/%s", o.Transport(), o.Role())
}

// Fixed limits, §6.
const (
	// MaxMessage is the hard upper bound on a single message payload.
	MaxMessage = 512
	// QueueMaxItems bounds every per-connection read/write queue.
	QueueMaxItems = 10
	// WaitTimeMS is the reader worker's poll timeout.
	WaitTimeMS = 5000
	// PortMin is the first port of the Dynamic/Private range Open accepts.
	PortMin = 49152
)

// ID identifies an asynchronous connection in the registry.
type ID = uint64

// InvalidID is returned by operations that fail to produce a live ID.
const InvalidID ID = ^ID(0)
