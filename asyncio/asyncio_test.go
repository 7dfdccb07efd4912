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

package asyncio_test

import (
	"math/rand"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/sabouaram/ipsock/asyncio"
	"github.com/sabouaram/ipsock/sockproto"
)

func TestAsyncio(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "asyncio Suite")
}

func freePort() uint16 {
	return uint16(sockproto.PortMin + rand.Intn(10000))
}

var _ = Describe("TCP echo scenario", func() {
	It("delivers a client write to the server's accepted child", func() {
		e, err := NewEngine(nil)
		Expect(err).NotTo(HaveOccurred())

		port := freePort()
		srv := e.OpenConnection(sockproto.New(sockproto.TransportTCP, sockproto.RoleServer), "::", port)
		Expect(srv).NotTo(Equal(sockproto.InvalidID))

		cli := e.OpenConnection(sockproto.New(sockproto.TransportTCP, sockproto.RoleClient), "::1", port)
		Expect(cli).NotTo(Equal(sockproto.InvalidID))

		Expect(e.WriteMessage(cli, []byte("hello"))).To(BeTrue())

		var childID uint64
		Eventually(func() uint64 {
			childID = e.GetClient(srv)
			return childID
		}, 2*time.Second, 10*time.Millisecond).ShouldNot(Equal(sockproto.InvalidID))
		Expect(e.GetClientsNumber(srv)).To(Equal(1))

		var data []byte
		Eventually(func() bool {
			var ok bool
			data, ok = e.ReadMessage(childID)
			return ok
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())
		Expect(string(data)).To(Equal("hello"))

		e.CloseConnection(cli)
		e.CloseConnection(childID)
		e.CloseConnection(srv)

		Eventually(e.GetActivesNumber, 2*time.Second).Should(Equal(0))
	})
})

var _ = Describe("UDP unicast scenario", func() {
	It("materialises a pseudo-client the server can read from", func() {
		e, err := NewEngine(nil)
		Expect(err).NotTo(HaveOccurred())

		port := freePort()
		srv := e.OpenConnection(sockproto.New(sockproto.TransportUDP, sockproto.RoleServer), "0.0.0.0", port)
		Expect(srv).NotTo(Equal(sockproto.InvalidID))

		cli := e.OpenConnection(sockproto.New(sockproto.TransportUDP, sockproto.RoleClient), "127.0.0.1", port)
		Expect(cli).NotTo(Equal(sockproto.InvalidID))

		Expect(e.WriteMessage(cli, []byte("ping"))).To(BeTrue())

		var childID uint64
		Eventually(func() uint64 {
			childID = e.GetClient(srv)
			return childID
		}, 2*time.Second, 10*time.Millisecond).ShouldNot(Equal(sockproto.InvalidID))

		var data []byte
		Eventually(func() bool {
			var ok bool
			data, ok = e.ReadMessage(childID)
			return ok
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())
		Expect(string(data)).To(Equal("ping"))
	})
})

var _ = Describe("GetAddress and GetActivesNumber", func() {
	It("reports a non-null address for every live connection", func() {
		e, err := NewEngine(nil)
		Expect(err).NotTo(HaveOccurred())

		before := e.GetActivesNumber()

		id := e.OpenConnection(sockproto.New(sockproto.TransportTCP, sockproto.RoleServer), "::", freePort())
		Expect(id).NotTo(Equal(sockproto.InvalidID))

		addr, ok := e.GetAddress(id)
		Expect(ok).To(BeTrue())
		Expect(addr).NotTo(BeEmpty())

		Expect(e.GetActivesNumber()).To(Equal(before + 1))

		e.CloseConnection(id)
		Eventually(e.GetActivesNumber, 2*time.Second).Should(Equal(before))
	})

	It("returns not-ok for an unknown ID", func() {
		e, err := NewEngine(nil)
		Expect(err).NotTo(HaveOccurred())

		_, ok := e.GetAddress(999999)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("WrongRole guards", func() {
	It("fails ReadMessage on a server connection", func() {
		e, err := NewEngine(nil)
		Expect(err).NotTo(HaveOccurred())

		srv := e.OpenConnection(sockproto.New(sockproto.TransportTCP, sockproto.RoleServer), "::", freePort())
		_, ok := e.ReadMessage(srv)
		Expect(ok).To(BeFalse())
	})

	It("fails GetClient on a client connection", func() {
		e, err := NewEngine(nil)
		Expect(err).NotTo(HaveOccurred())

		port := freePort()
		_ = e.OpenConnection(sockproto.New(sockproto.TransportTCP, sockproto.RoleServer), "::", port)
		cli := e.OpenConnection(sockproto.New(sockproto.TransportTCP, sockproto.RoleClient), "::1", port)

		Expect(e.GetClient(cli)).To(Equal(sockproto.InvalidID))
	})
})

var _ = Describe("teardown symmetry", func() {
	It("drops actives to zero after closing every opened connection", func() {
		e, err := NewEngine(nil)
		Expect(err).NotTo(HaveOccurred())

		var ids []uint64
		for i := 0; i < 4; i++ {
			id := e.OpenConnection(sockproto.New(sockproto.TransportTCP, sockproto.RoleServer), "::", freePort())
			Expect(id).NotTo(Equal(sockproto.InvalidID))
			ids = append(ids, id)
		}

		for _, id := range ids {
			e.CloseConnection(id)
		}

		Eventually(e.GetActivesNumber, 2*time.Second).Should(Equal(0))
	})

	It("is idempotent when closing an already-closed or unknown ID", func() {
		e, err := NewEngine(nil)
		Expect(err).NotTo(HaveOccurred())

		id := e.OpenConnection(sockproto.New(sockproto.TransportTCP, sockproto.RoleServer), "::", freePort())
		e.CloseConnection(id)
		e.CloseConnection(id)
		e.CloseConnection(999999)
	})
})

var _ = Describe("SetMessageLength", func() {
	It("clamps to MAX_MESSAGE", func() {
		e, err := NewEngine(nil)
		Expect(err).NotTo(HaveOccurred())

		id := e.OpenConnection(sockproto.New(sockproto.TransportTCP, sockproto.RoleServer), "::", freePort())
		Expect(e.SetMessageLength(id, 10_000)).To(Equal(sockproto.MaxMessage))
		Expect(e.SetMessageLength(id, 0)).To(Equal(1))
	})
})
