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

package asyncio

import (
	"time"

	"github.com/sabouaram/ipsock/ambient/log"
	"github.com/sabouaram/ipsock/ipconn"
	"github.com/sabouaram/ipsock/registry"
	"github.com/sabouaram/ipsock/sockproto"
	"github.com/sabouaram/ipsock/squeue"
)

// readerLoop is §4.5's reader worker: block in WaitEvent, then walk a
// snapshot of the registry dispatching accept/receive per entry. The
// registry entry is always released before recursing into a new
// SetItem for an accepted child, per §5's note that the reader must
// not hold an acquire across a call that re-enters the registry.
func (e *Engine) readerLoop(stop chan struct{}) {
	defer e.wg.Done()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if n := e.set.Wait(sockproto.WaitTimeMS); n == 0 {
			continue
		}

		e.reg.RunForAllKeys(func(id registry.ID) {
			e.serviceReadable(id)
		})
	}
}

func (e *Engine) serviceReadable(id registry.ID) {
	h, ok := e.reg.Acquire(id)
	if !ok {
		return
	}

	conn := h.Value().conn
	full := h.Value().read.Count() >= sockproto.QueueMaxItems
	ready := conn.IsDataAvailable()
	h.Release()

	if full || !ready {
		return
	}

	if conn.IsServer() {
		e.acceptOnto(id, conn)
		return
	}

	e.serviceClient(id, conn)
}

func (e *Engine) serviceClient(id registry.ID, conn *ipconn.Connection) {

	msg, got, err := conn.Receive()
	if err != nil {
		e.logger().Warn("receive error", log.Fields{"id": id, "error": err.Error()})
	}
	if !got {
		return
	}

	if h2, ok2 := e.reg.Acquire(id); ok2 {
		h2.Value().read.Enqueue(queuedMessage{Data: msg.Data}, squeue.Wait)
		h2.Release()
	}
}

func (e *Engine) acceptOnto(serverID registry.ID, server *ipconn.Connection) {
	child, got, err := server.Accept()
	if err != nil {
		e.logger().Warn("accept error", log.Fields{"id": serverID, "error": err.Error()})
	}
	if !got {
		return
	}

	childAC := asyncConn{
		conn:  child,
		write: squeue.New[queuedMessage](sockproto.QueueMaxItems),
		read:  squeue.New[queuedMessage](sockproto.QueueMaxItems),
	}

	e.mu.Lock()
	childID := e.reg.SetItem(childAC)
	e.mu.Unlock()
	e.activeCount.Add(1)

	if h, ok := e.reg.Acquire(serverID); ok {
		h.Value().read.Enqueue(queuedMessage{ClientID: childID}, squeue.Wait)
		h.Release()
	}
}

// writerLoop is §4.5's writer worker: every ~1 second, drain one
// message per entry's write queue and send it; a send failure drops
// the connection from the registry on this pass.
func (e *Engine) writerLoop(stop chan struct{}) {
	defer e.wg.Done()

	ticker := time.NewTicker(writerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.writerPass()
		}
	}
}

func (e *Engine) writerPass() {
	var dead []registry.ID

	e.reg.RunForAllKeys(func(id registry.ID) {
		h, ok := e.reg.Acquire(id)
		if !ok {
			return
		}
		ac := h.Value()

		msg, ok := ac.write.Dequeue(squeue.NoWait)
		if !ok {
			h.Release()
			return
		}

		err := ac.conn.Send(msg.Data)
		h.Release()

		if err != nil {
			dead = append(dead, id)
		}
	})

	for _, id := range dead {
		e.logger().Warn("dropping connection after send failure", log.Fields{"id": id})
		// Dispatched off the writer goroutine: if id is the last live
		// entry, CloseConnection stops the workers and joins them, and
		// the writer goroutine calling that synchronously would be
		// joining itself.
		go e.CloseConnection(id)
	}
}
