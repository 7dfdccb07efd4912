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
	"net"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/ipsock/sockproto"
)

// createSocket allocates a non-blocking socket of the right family and
// transport, per §4.4: SOCK_NONBLOCK is requested directly rather than
// set after the fact, and SO_REUSEADDR is enabled immediately.
func createSocket(t sockproto.Transport, addr Address) (int, error) {
	domain := unix.AF_INET
	if !addr.isV4() {
		domain = unix.AF_INET6
	}

	sockType := unix.SOCK_STREAM
	if t == sockproto.TransportUDP {
		sockType = unix.SOCK_DGRAM
	}

	fd, err := unix.Socket(domain, sockType|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	return fd, nil
}

func sockaddrOf(a Address) unix.Sockaddr {
	if a.isV4() {
		var sa unix.SockaddrInet4
		copy(sa.Addr[:], a.IP.To4())
		sa.Port = int(a.Port)
		return &sa
	}

	var sa unix.SockaddrInet6
	copy(sa.Addr[:], a.IP.To16())
	sa.Port = int(a.Port)
	return &sa
}

func addressOfSockaddr(sa unix.Sockaddr) Address {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, 4)
		copy(ip, v.Addr[:])
		return Address{IP: ip, Port: uint16(v.Port)}
	case *unix.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, v.Addr[:])
		return Address{IP: ip, Port: uint16(v.Port)}
	default:
		return Address{}
	}
}

// openTCPServer binds, disables V6ONLY for dual-stack IPv6 binds, and
// listens with the fixed backlog §4.4 specifies.
func openTCPServer(fd int, addr Address) error {
	if !addr.isV4() {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
	}
	if err := unix.Bind(fd, sockaddrOf(addr)); err != nil {
		return err
	}
	return unix.Listen(fd, 20)
}

// openTCPClient issues a non-blocking connect; EINPROGRESS is the
// expected outcome and is not an error.
func openTCPClient(fd int, addr Address) error {
	err := unix.Connect(fd, sockaddrOf(addr))
	if err != nil && err != unix.EINPROGRESS {
		return err
	}
	return nil
}

// openUDPServer binds and enables the multicast options §4.4 lists:
// hop limit 255 (IPv6) or TTL 255 plus broadcast (IPv4); if the bind
// address is itself a multicast group, the server joins it.
func openUDPServer(fd int, addr Address) error {
	if !addr.isV4() {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_MULTICAST_HOPS, 255)
	} else {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_TTL, 255)
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}

	if err := unix.Bind(fd, sockaddrOf(addr)); err != nil {
		return err
	}

	if addr.Multi {
		return joinMulticast(fd, addr)
	}
	return nil
}

// openUDPClient binds an ephemeral local port and, if the remote is a
// multicast group, joins it on any interface.
func openUDPClient(fd int, remote Address) error {
	local := Address{IP: remote.IP, Port: 0}
	if remote.isV4() {
		local.IP = []byte{0, 0, 0, 0}
	} else {
		local.IP = []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	}

	if err := unix.Bind(fd, sockaddrOf(local)); err != nil {
		return err
	}

	if remote.Multi {
		return joinMulticast(fd, remote)
	}
	return nil
}

func joinMulticast(fd int, group Address) error {
	if group.isV4() {
		mreq := &unix.IPMreq{}
		copy(mreq.Multiaddr[:], group.IP.To4())
		return unix.SetsockoptIPMreq(fd, unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq)
	}

	mreq := &unix.IPv6Mreq{}
	copy(mreq.Multiaddr[:], group.IP.To16())
	return unix.SetsockoptIPv6Mreq(fd, unix.IPPROTO_IPV6, unix.IPV6_JOIN_GROUP, mreq)
}
