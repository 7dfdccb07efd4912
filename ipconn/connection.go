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

// Package ipconn is the synchronous IP layer of §4.4: one Connection
// type covering all four role/transport combinations, built on raw
// non-blocking sockets and a shared pollset.Set rather than net.Conn,
// so the reader worker can multiplex every connection's descriptor
// through one Wait call.
package ipconn

import (
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"

	"github.com/sabouaram/ipsock/internal/pollset"
	"github.com/sabouaram/ipsock/sockerr"
	"github.com/sabouaram/ipsock/sockproto"
)

// kind is the closed, four-way tagged sum §9's Design Notes calls for
// in place of function-pointer dispatch: every Connection carries
// exactly one of these, fixed at Open and never reassigned.
type kind uint8

const (
	kindTCPServer kind = iota
	kindTCPClient
	kindUDPServer
	kindUDPClient
)

// udpServerState is the bookkeeping a UDP server shares with its
// pseudo-clients: one descriptor, one peer table. Pseudo-clients hold
// only a reference to it and their own peer address, per §9's "weak
// references into the server" note.
type udpServerState struct {
	mu       sync.Mutex
	fd       int
	clients  map[string]*Connection // keyed by peer Address.String()
	serverUp bool

	// closeRequested records that the server side called Close while
	// pseudo-clients were still attached. It is set once, independently
	// of the server Connection's own idempotent closed guard, so the
	// pseudo-client that drains the last entry can still perform the
	// deferred serverUp transition and descriptor close (see
	// closeUDPClient in io.go).
	closeRequested bool

	// admission bounds how many pseudo-clients may be materialised
	// concurrently in-flight, so a burst of new source addresses cannot
	// stall the reader worker servicing already-registered clients. It
	// does not cap the total pseudo-client count over the server's
	// lifetime (see §9's documented idle-accumulation leak) — a slot is
	// released back the moment its pseudo-client is admitted.
	admission *semaphore.Weighted
}

// maxConcurrentAdmissions bounds in-flight pseudo-client materialisation.
const maxConcurrentAdmissions = 64

// Message is a received payload, optionally paired with the peer
// address it arrived from (server read side only).
type Message struct {
	Peer *Address
	Data []byte
}

// Connection is the uniform handle over one of four role/transport
// combinations. Role and transport are immutable for its lifetime
// (§3's invariant); IsServer is a plain field read, not a
// closer-pointer comparison, resolving §9's "replace with an explicit
// role field" note.
type Connection struct {
	mu sync.Mutex

	kind      kind
	fd        int
	transport sockproto.Transport
	role      sockproto.Role
	addr      Address // local bind address for servers, remote peer for clients
	msgLen    int
	set       pollset.Set
	closed    bool
	invalid   bool // TCP EOF observed; descriptor removed from the poll set

	// TCP server only: accepted children, keyed by fd.
	tcpChildren map[int]*Connection
	// TCP client only, when accepted from a server: the owning server.
	parent *Connection

	// UDP server and its pseudo-clients share this.
	udp *udpServerState
	// UDP pseudo-client only: the peer address that identifies it.
	peer Address
}

// Open creates a connection per §4.4: validates the type byte and
// port range, resolves the address, creates and configures the
// socket, performs bind/listen/connect as the role and transport
// require, and subscribes its descriptor on set.
func Open(set pollset.Set, typ sockproto.OpenType, host string, port uint16) (*Connection, error) {
	if !typ.Valid() {
		return nil, sockerr.New(sockerr.InvalidArgument, "invalid type byte "+typ.String())
	}
	if port < sockproto.PortMin {
		return nil, sockerr.Newf(sockerr.InvalidArgument, "port %d below PORT_MIN", port)
	}

	role := typ.Role()
	transport := typ.Transport()

	addr, err := resolve(host, port, role == sockproto.RoleServer)
	if err != nil {
		return nil, err
	}

	fd, err := createSocket(transport, addr)
	if err != nil {
		return nil, sockerr.Wrap(sockerr.SocketFailure, err, "create socket")
	}

	c := &Connection{
		fd:        fd,
		transport: transport,
		role:      role,
		addr:      addr,
		msgLen:    sockproto.MaxMessage,
		set:       set,
	}

	switch {
	case transport == sockproto.TransportTCP && role == sockproto.RoleServer:
		c.kind = kindTCPServer
		c.tcpChildren = make(map[int]*Connection)
		err = openTCPServer(fd, addr)
	case transport == sockproto.TransportTCP && role == sockproto.RoleClient:
		c.kind = kindTCPClient
		err = openTCPClient(fd, addr)
	case transport == sockproto.TransportUDP && role == sockproto.RoleServer:
		c.kind = kindUDPServer
		c.udp = &udpServerState{
			fd:        fd,
			clients:   make(map[string]*Connection),
			serverUp:  true,
			admission: semaphore.NewWeighted(maxConcurrentAdmissions),
		}
		err = openUDPServer(fd, addr)
	default: // UDP client
		c.kind = kindUDPClient
		err = openUDPClient(fd, addr)
	}

	if err != nil {
		_ = unix.Close(fd)
		return nil, sockerr.Wrap(sockerr.SocketFailure, err, "configure socket")
	}

	if err = set.Insert(fd); err != nil {
		_ = unix.Close(fd)
		return nil, sockerr.Wrap(sockerr.SocketFailure, err, "subscribe descriptor")
	}

	return c, nil
}

// IsServer reports the connection's fixed role.
func (c *Connection) IsServer() bool { return c.role == sockproto.RoleServer }

// Transport returns the connection's fixed transport.
func (c *Connection) Transport() sockproto.Transport { return c.transport }

// Address returns the connection's local bind (servers) or remote
// peer (clients) address.
func (c *Connection) Address() Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kind == kindUDPServer || c.kind == kindTCPServer {
		return c.addr
	}
	if c.kind == kindUDPClient && c.udp != nil {
		return c.peer
	}
	return c.addr
}

// FD returns the descriptor the poll set multiplexes for this
// connection. UDP pseudo-clients return the shared server descriptor.
func (c *Connection) FD() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.udp != nil && c.kind == kindUDPClient {
		return c.udp.fd
	}
	return c.fd
}

// SetMessageLength clamps and stores the connection's message bound.
func (c *Connection) SetMessageLength(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 {
		n = 1
	}
	if n > sockproto.MaxMessage {
		n = sockproto.MaxMessage
	}
	c.msgLen = n
	return n
}

// MessageLength returns the connection's current message bound.
func (c *Connection) MessageLength() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgLen
}

// IsInvalid reports whether a TCP EOF has been observed on this
// connection, after which its descriptor is no longer in the poll set.
func (c *Connection) IsInvalid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalid
}

// IsDataAvailable reports whether this connection's descriptor had
// readable readiness in the poll set's most recent Wait.
func (c *Connection) IsDataAvailable() bool {
	return c.set.IsReady(c.FD())
}

// WaitEvent delegates to the shared poll set.
func WaitEvent(set pollset.Set, timeoutMS int) int {
	return set.Wait(timeoutMS)
}

// ClientsCount returns the number of live clients of a server
// connection (TCP children or UDP pseudo-clients), or 0 for a client
// connection.
func (c *Connection) ClientsCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.kind {
	case kindTCPServer:
		return len(c.tcpChildren)
	case kindUDPServer:
		c.udp.mu.Lock()
		defer c.udp.mu.Unlock()
		return len(c.udp.clients)
	default:
		return 0
	}
}
