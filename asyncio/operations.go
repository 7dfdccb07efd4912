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
	"github.com/sabouaram/ipsock/ambient/log"
	"github.com/sabouaram/ipsock/ipconn"
	"github.com/sabouaram/ipsock/registry"
	"github.com/sabouaram/ipsock/sockproto"
	"github.com/sabouaram/ipsock/squeue"
)

// OpenConnection is §6's OpenConnection: opens the synchronous
// connection, wraps it with a write queue and a role-appropriate read
// queue, registers it, and starts the workers if this is the first
// live connection. It returns sockproto.InvalidID on any failure.
func (e *Engine) OpenConnection(typ sockproto.OpenType, host string, port uint16) registry.ID {
	conn, err := ipconn.Open(e.set, typ, host, port)
	if err != nil {
		e.logger().Warn("open failed", log.Fields{"error": err.Error(), "host": host, "port": port})
		return sockproto.InvalidID
	}

	ac := asyncConn{
		conn:  conn,
		write: squeue.New[queuedMessage](sockproto.QueueMaxItems),
		read:  squeue.New[queuedMessage](sockproto.QueueMaxItems),
	}

	e.mu.Lock()
	id := e.reg.SetItem(ac)
	e.ensureWorkersLocked()
	e.mu.Unlock()

	e.activeCount.Add(1)
	return id
}

// CloseConnection is §6's CloseConnection: best-effort and idempotent
// on an unknown ID.
func (e *Engine) CloseConnection(id registry.ID) {
	h, ok := e.reg.Acquire(id)
	if !ok {
		return
	}
	ac := *h.Value()
	h.Release()

	_ = ac.conn.Close()
	ac.read.Discard()
	ac.write.Discard()

	e.reg.RemoveItem(id)
	e.activeCount.Add(-1)

	e.mu.Lock()
	shouldJoin := e.stopWorkersIfEmptyLocked()
	e.mu.Unlock()

	if shouldJoin {
		e.joinWorkers()
	}
}

// GetAddress is §6's GetAddress.
func (e *Engine) GetAddress(id registry.ID) (string, bool) {
	h, ok := e.reg.Acquire(id)
	if !ok {
		return "", false
	}
	defer h.Release()

	return h.Value().conn.Address().String(), true
}

// GetActivesNumber is §6's GetActivesNumber.
func (e *Engine) GetActivesNumber() int {
	return int(e.activeCount.Load())
}

// GetClientsNumber is §6's GetClientsNumber: 1 for a client
// connection, the live client count for a server, 0 on an unknown ID.
func (e *Engine) GetClientsNumber(id registry.ID) int {
	h, ok := e.reg.Acquire(id)
	if !ok {
		return 0
	}
	defer h.Release()

	c := h.Value().conn
	if !c.IsServer() {
		return 1
	}
	return c.ClientsCount()
}

// SetMessageLength is §6's SetMessageLength: clamps to MAX_MESSAGE.
func (e *Engine) SetMessageLength(id registry.ID, n int) int {
	h, ok := e.reg.Acquire(id)
	if !ok {
		return 0
	}
	defer h.Release()

	return h.Value().conn.SetMessageLength(n)
}

// ReadMessage is §6's ReadMessage: client-only, dequeues one message
// from the read queue. Per §5, it never suspends on an empty queue —
// Count is checked first and a NULL/false is returned immediately —
// and only falls back to a Wait dequeue for the narrow race where the
// queue was seen non-empty but another consumer took the item first.
// It returns ok=false when the connection is unknown, is a server, the
// queue is empty, or the queue is discarded.
func (e *Engine) ReadMessage(id registry.ID) (data []byte, ok bool) {
	h, found := e.reg.Acquire(id)
	if !found {
		return nil, false
	}
	c := h.Value().conn
	q := h.Value().read
	h.Release()

	if c.IsServer() {
		e.logger().Warn("ReadMessage called on a server connection", log.Fields{"id": id})
		return nil, false
	}

	if q.Count() == 0 {
		return nil, false
	}

	m, ok := q.Dequeue(squeue.Wait)
	if !ok {
		return nil, false
	}
	return m.Data, true
}

// WriteMessage is §6's WriteMessage: a NoWait enqueue onto the write
// queue. It returns false only when the connection does not exist.
func (e *Engine) WriteMessage(id registry.ID, data []byte) bool {
	h, ok := e.reg.Acquire(id)
	if !ok {
		return false
	}
	q := h.Value().write
	h.Release()

	if q.Count() >= sockproto.QueueMaxItems {
		e.logger().Warn("write queue full, dropping oldest", log.Fields{"id": id})
	}
	q.Enqueue(queuedMessage{Data: append([]byte(nil), data...)}, squeue.NoWait)
	return true
}

// GetClient is §6's GetClient: server-only, dequeues one pending
// client ID from the server's read queue. As with ReadMessage, an
// empty queue returns InvalidID immediately rather than suspending;
// only a queue seen non-empty but lost to a concurrent consumer falls
// back to a Wait dequeue.
func (e *Engine) GetClient(serverID registry.ID) registry.ID {
	h, ok := e.reg.Acquire(serverID)
	if !ok {
		return sockproto.InvalidID
	}
	c := h.Value().conn
	q := h.Value().read
	h.Release()

	if !c.IsServer() {
		e.logger().Warn("GetClient called on a client connection", log.Fields{"id": serverID})
		return sockproto.InvalidID
	}

	if q.Count() == 0 {
		return sockproto.InvalidID
	}

	m, ok := q.Dequeue(squeue.Wait)
	if !ok {
		return sockproto.InvalidID
	}
	return m.ClientID
}
