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

package ipconn

import (
	"golang.org/x/sys/unix"

	"github.com/sabouaram/ipsock/sockerr"
	"github.com/sabouaram/ipsock/sockproto"
)

// remoteForMatch is the address a client (standalone or UDP
// pseudo-client) compares an inbound datagram's source against.
func (c *Connection) remoteForMatch() Address {
	if c.udp != nil {
		return c.peer
	}
	return c.addr
}

// Receive reads one message for a client connection (TCP client, UDP
// client, or UDP pseudo-client). Servers use Accept instead.
func (c *Connection) Receive() (Message, bool, error) {
	switch c.kind {
	case kindTCPClient:
		return c.receiveTCP()
	case kindUDPClient:
		return c.receiveUDP()
	default:
		return Message{}, false, sockerr.New(sockerr.WrongRole, "Receive called on a server connection")
	}
}

func (c *Connection) receiveTCP() (Message, bool, error) {
	buf := make([]byte, c.MessageLength())
	n, err := unix.Read(c.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return Message{}, false, nil
		}
		return Message{}, false, sockerr.Wrap(sockerr.TransientIO, err, "tcp read")
	}
	if n == 0 {
		c.mu.Lock()
		c.invalid = true
		c.mu.Unlock()
		c.set.Remove(c.fd)
		return Message{}, false, sockerr.New(sockerr.PeerClosed, "tcp peer closed")
	}

	return Message{Data: buf[:n]}, true, nil
}

func (c *Connection) receiveUDP() (Message, bool, error) {
	fd := c.FD()
	remote := c.remoteForMatch()

	peek := make([]byte, c.MessageLength())
	n, sa, err := unix.Recvfrom(fd, peek, unix.MSG_PEEK)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return Message{}, false, nil
		}
		return Message{}, false, sockerr.Wrap(sockerr.TransientIO, err, "udp peek")
	}

	src := addressOfSockaddr(sa)
	if !src.IP.Equal(remote.IP) || src.Port != remote.Port {
		return Message{}, false, nil
	}

	n, _, err = unix.Recvfrom(fd, peek, 0)
	if err != nil {
		return Message{}, false, sockerr.Wrap(sockerr.TransientIO, err, "udp recv")
	}

	return Message{Data: peek[:n], Peer: &src}, true, nil
}

// Accept is the server-side receive: for TCP it accepts one pending
// connection; for UDP it peeks the next datagram's source and, if
// unseen, materialises a pseudo-client without consuming the
// datagram, leaving it for that pseudo-client's own Receive.
func (c *Connection) Accept() (*Connection, bool, error) {
	switch c.kind {
	case kindTCPServer:
		return c.acceptTCP()
	case kindUDPServer:
		return c.acceptUDP()
	default:
		return nil, false, sockerr.New(sockerr.WrongRole, "Accept called on a client connection")
	}
}

func (c *Connection) acceptTCP() (*Connection, bool, error) {
	childFD, sa, err := unix.Accept4(c.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, sockerr.Wrap(sockerr.TransientIO, err, "tcp accept")
	}

	child := &Connection{
		kind:      kindTCPClient,
		fd:        childFD,
		transport: c.transport,
		role:      sockproto.RoleClient,
		addr:      addressOfSockaddr(sa),
		msgLen:    c.MessageLength(),
		set:       c.set,
		parent:    c,
	}

	if err = c.set.Insert(childFD); err != nil {
		_ = unix.Close(childFD)
		return nil, false, sockerr.Wrap(sockerr.SocketFailure, err, "subscribe accepted descriptor")
	}

	c.mu.Lock()
	c.tcpChildren[childFD] = child
	c.mu.Unlock()

	return child, true, nil
}

func (c *Connection) acceptUDP() (*Connection, bool, error) {
	peek := make([]byte, c.MessageLength())
	_, sa, err := unix.Recvfrom(c.udp.fd, peek, unix.MSG_PEEK)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, sockerr.Wrap(sockerr.TransientIO, err, "udp peek for accept")
	}

	src := addressOfSockaddr(sa)
	key := src.String()

	c.udp.mu.Lock()
	if _, ok := c.udp.clients[key]; ok {
		c.udp.mu.Unlock()
		return nil, false, nil
	}
	c.udp.mu.Unlock()

	if !c.udp.admission.TryAcquire(1) {
		// Admission is saturated this pass; the datagram is left
		// unconsumed for a later reader cycle to retry.
		return nil, false, nil
	}

	c.udp.mu.Lock()
	if _, ok := c.udp.clients[key]; ok {
		c.udp.mu.Unlock()
		c.udp.admission.Release(1)
		return nil, false, nil
	}

	child := &Connection{
		kind:      kindUDPClient,
		transport: c.transport,
		role:      sockproto.RoleClient,
		msgLen:    c.MessageLength(),
		set:       c.set,
		udp:       c.udp,
		peer:      src,
	}
	c.udp.clients[key] = child
	c.udp.mu.Unlock()
	c.udp.admission.Release(1)

	return child, true, nil
}

// Send writes one message. Clients send to their single peer;
// servers broadcast to every client, per §4.4.
func (c *Connection) Send(data []byte) error {
	if len(data) > c.MessageLength() {
		return sockerr.Newf(sockerr.InvalidArgument, "message length %d exceeds bound %d", len(data), c.MessageLength())
	}

	switch c.kind {
	case kindTCPClient:
		return c.sendTCP(c.fd, data)
	case kindUDPClient:
		return unix.Sendto(c.FD(), data, 0, sockaddrOf(c.remoteForMatch()))
	case kindTCPServer:
		return c.broadcastTCP(data)
	case kindUDPServer:
		return c.broadcastUDP(data)
	default:
		return sockerr.New(sockerr.InvalidArgument, "unknown connection kind")
	}
}

func (c *Connection) sendTCP(fd int, data []byte) error {
	for len(data) > 0 {
		n, err := unix.Write(fd, data)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				continue
			}
			return sockerr.Wrap(sockerr.TransientIO, err, "tcp write")
		}
		data = data[n:]
	}
	return nil
}

func (c *Connection) broadcastTCP(data []byte) error {
	c.mu.Lock()
	children := make([]*Connection, 0, len(c.tcpChildren))
	for _, ch := range c.tcpChildren {
		children = append(children, ch)
	}
	c.mu.Unlock()

	var firstErr error
	for _, ch := range children {
		if err := ch.Send(data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Connection) broadcastUDP(data []byte) error {
	if c.addr.Multi {
		return unix.Sendto(c.udp.fd, data, 0, sockaddrOf(c.addr))
	}

	c.udp.mu.Lock()
	peers := make([]*Connection, 0, len(c.udp.clients))
	for _, ch := range c.udp.clients {
		peers = append(peers, ch)
	}
	c.udp.mu.Unlock()

	var firstErr error
	for _, ch := range peers {
		if err := ch.Send(data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close tears down the connection per §3's lifecycle rules: a TCP
// server closes its children first; a TCP client unlinks from its
// parent; a UDP server with live pseudo-clients records the close
// request and defers the descriptor close, preserving the documented
// wait-for-drain behavior of §9; a UDP pseudo-client removes itself
// from the shared peer table, closing the shared descriptor only once
// the server has called Close and every pseudo-client is gone.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	switch c.kind {
	case kindTCPServer:
		return c.closeTCPServer()
	case kindTCPClient:
		return c.closeTCPClient()
	case kindUDPServer:
		return c.closeUDPServer()
	default: // kindUDPClient, independent or pseudo
		return c.closeUDPClient()
	}
}

func (c *Connection) closeTCPServer() error {
	c.mu.Lock()
	children := make([]*Connection, 0, len(c.tcpChildren))
	for _, ch := range c.tcpChildren {
		children = append(children, ch)
	}
	c.mu.Unlock()

	for _, ch := range children {
		_ = ch.Close()
	}

	c.set.Remove(c.fd)
	return unix.Close(c.fd)
}

func (c *Connection) closeTCPClient() error {
	if c.parent != nil {
		c.parent.mu.Lock()
		delete(c.parent.tcpChildren, c.fd)
		c.parent.mu.Unlock()
	}

	c.set.Remove(c.fd)
	return unix.Close(c.fd)
}

func (c *Connection) closeUDPServer() error {
	c.udp.mu.Lock()
	c.udp.closeRequested = true
	if len(c.udp.clients) > 0 {
		// Pseudo-clients are still attached: defer the descriptor close
		// and the serverUp transition to whichever closeUDPClient call
		// drains the last one (closeRequested makes that decision
		// possible without a second call to this method, which Close's
		// idempotency guard would never allow).
		c.udp.mu.Unlock()
		return nil
	}
	c.udp.serverUp = false
	c.udp.mu.Unlock()

	c.set.Remove(c.udp.fd)
	return unix.Close(c.udp.fd)
}

func (c *Connection) closeUDPClient() error {
	if c.udp == nil {
		c.set.Remove(c.fd)
		return unix.Close(c.fd)
	}

	c.udp.mu.Lock()
	delete(c.udp.clients, c.peer.String())
	drain := len(c.udp.clients) == 0 && (!c.udp.serverUp || c.udp.closeRequested)
	if drain {
		c.udp.serverUp = false
	}
	c.udp.mu.Unlock()

	if drain {
		c.set.Remove(c.udp.fd)
		return unix.Close(c.udp.fd)
	}
	return nil
}
