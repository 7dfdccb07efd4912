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

package ipconn_test

import (
	"math/rand"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/sabouaram/ipsock/ipconn"
	"github.com/sabouaram/ipsock/internal/pollset"
	"github.com/sabouaram/ipsock/sockproto"
)

func TestIPConn(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ipconn Suite")
}

// freePort picks a random port in the dynamic range for tests; a
// collision with a port already in use is not guarded against.
func freePort() uint16 {
	return uint16(sockproto.PortMin + rand.Intn(10000))
}

var _ = Describe("TCP echo", func() {
	It("lets a client connect, send, and be accepted by the server", func() {
		set, err := pollset.New()
		Expect(err).NotTo(HaveOccurred())

		port := freePort()
		srv, err := Open(set, sockproto.New(sockproto.TransportTCP, sockproto.RoleServer), "::", port)
		Expect(err).NotTo(HaveOccurred())
		defer srv.Close()

		cli, err := Open(set, sockproto.New(sockproto.TransportTCP, sockproto.RoleClient), "::1", port)
		Expect(err).NotTo(HaveOccurred())
		defer cli.Close()

		var child *Connection
		Eventually(func() bool {
			set.Wait(50)
			if !srv.IsDataAvailable() {
				return false
			}
			c, ok, acceptErr := srv.Accept()
			Expect(acceptErr).NotTo(HaveOccurred())
			if ok {
				child = c
			}
			return ok
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())

		Expect(srv.ClientsCount()).To(Equal(1))

		Expect(cli.Send([]byte("hello"))).To(Succeed())

		var msg Message
		Eventually(func() bool {
			set.Wait(50)
			if !child.IsDataAvailable() {
				return false
			}
			m, ok, recvErr := child.Receive()
			Expect(recvErr).NotTo(HaveOccurred())
			if ok {
				msg = m
			}
			return ok
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())

		Expect(string(msg.Data)).To(Equal("hello"))
	})
})

var _ = Describe("UDP unicast", func() {
	It("delivers a datagram from client to server", func() {
		set, err := pollset.New()
		Expect(err).NotTo(HaveOccurred())

		port := freePort()
		srv, err := Open(set, sockproto.New(sockproto.TransportUDP, sockproto.RoleServer), "0.0.0.0", port)
		Expect(err).NotTo(HaveOccurred())
		defer srv.Close()

		cli, err := Open(set, sockproto.New(sockproto.TransportUDP, sockproto.RoleClient), "127.0.0.1", port)
		Expect(err).NotTo(HaveOccurred())
		defer cli.Close()

		Expect(cli.Send([]byte("ping"))).To(Succeed())

		var pseudo *Connection
		Eventually(func() bool {
			set.Wait(50)
			if !srv.IsDataAvailable() {
				return false
			}
			c, ok, acceptErr := srv.Accept()
			Expect(acceptErr).NotTo(HaveOccurred())
			if ok {
				pseudo = c
			}
			return ok
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())

		var msg Message
		Eventually(func() bool {
			set.Wait(50)
			m, ok, recvErr := pseudo.Receive()
			Expect(recvErr).NotTo(HaveOccurred())
			if ok {
				msg = m
			}
			return ok
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())

		Expect(string(msg.Data)).To(Equal("ping"))
	})
})

var _ = Describe("UDP server close with a live pseudo-client", func() {
	It("defers the descriptor close until the last pseudo-client drains", func() {
		set, err := pollset.New()
		Expect(err).NotTo(HaveOccurred())

		port := freePort()
		srv, err := Open(set, sockproto.New(sockproto.TransportUDP, sockproto.RoleServer), "0.0.0.0", port)
		Expect(err).NotTo(HaveOccurred())

		cli, err := Open(set, sockproto.New(sockproto.TransportUDP, sockproto.RoleClient), "127.0.0.1", port)
		Expect(err).NotTo(HaveOccurred())
		defer cli.Close()

		Expect(cli.Send([]byte("ping"))).To(Succeed())

		var pseudo *Connection
		Eventually(func() bool {
			set.Wait(50)
			if !srv.IsDataAvailable() {
				return false
			}
			c, ok, acceptErr := srv.Accept()
			Expect(acceptErr).NotTo(HaveOccurred())
			if ok {
				pseudo = c
			}
			return ok
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())

		// Closing the server while the pseudo-client is still attached
		// must not close the shared descriptor out from under it.
		Expect(srv.Close()).To(Succeed())
		Expect(srv.ClientsCount()).To(Equal(1))

		// Draining the last pseudo-client must now perform the deferred
		// close: rebinding the same port should succeed.
		Expect(pseudo.Close()).To(Succeed())

		again, err := Open(set, sockproto.New(sockproto.TransportUDP, sockproto.RoleServer), "0.0.0.0", port)
		Expect(err).NotTo(HaveOccurred())
		defer again.Close()
	})
})

var _ = Describe("message length bound", func() {
	It("rejects a send longer than the configured bound without writing", func() {
		set, err := pollset.New()
		Expect(err).NotTo(HaveOccurred())

		port := freePort()
		srv, err := Open(set, sockproto.New(sockproto.TransportTCP, sockproto.RoleServer), "::", port)
		Expect(err).NotTo(HaveOccurred())
		defer srv.Close()

		cli, err := Open(set, sockproto.New(sockproto.TransportTCP, sockproto.RoleClient), "::1", port)
		Expect(err).NotTo(HaveOccurred())
		defer cli.Close()

		Expect(cli.SetMessageLength(4)).To(Equal(4))
		err = cli.Send([]byte("toolong"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Open validation", func() {
	It("rejects a port below PORT_MIN", func() {
		set, _ := pollset.New()
		_, err := Open(set, sockproto.New(sockproto.TransportTCP, sockproto.RoleClient), "::1", 1024)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a nil host for a client", func() {
		set, _ := pollset.New()
		_, err := Open(set, sockproto.New(sockproto.TransportTCP, sockproto.RoleClient), "", freePort())
		Expect(err).To(HaveOccurred())
	})

	It("rejects an invalid type byte", func() {
		set, _ := pollset.New()
		_, err := Open(set, sockproto.OpenType(0xFF), "::1", freePort())
		Expect(err).To(HaveOccurred())
	})
})
