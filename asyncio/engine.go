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

// Package asyncio is the asynchronous facade of §4.5: a registry of
// live connections, each wrapping a synchronous ipconn.Connection plus
// bounded read/write queues, driven by two background workers so that
// application code never blocks on the network.
//
// §9's Design Notes fold the module-level registry and worker handles
// the original exposed as globals into one explicit runtime object,
// Engine, created by NewEngine; its workers start on the first
// successful Open and stop on the last Close.
package asyncio

import (
	"sync"
	stdatomic "sync/atomic"
	"time"

	"github.com/sabouaram/ipsock/ambient/log"
	"github.com/sabouaram/ipsock/internal/pollset"
	"github.com/sabouaram/ipsock/ipconn"
	"github.com/sabouaram/ipsock/registry"
	"github.com/sabouaram/ipsock/squeue"
)

// writerInterval is the writer worker's polling period (§4.5: "every
// ~1 second").
const writerInterval = time.Second

// joinTimeout bounds how long Close waits for both workers to exit
// once the registry empties (§5: "joins use a 5-second timeout").
const joinTimeout = 5 * time.Second

// asyncConn is one registry entry: an owned synchronous connection
// plus its bounded read and write queues.
type asyncConn struct {
	conn  *ipconn.Connection
	read  *squeue.Queue[queuedMessage]
	write *squeue.Queue[queuedMessage]
}

// queuedMessage is the element type shared by read and write queues.
// Client read queues only ever populate Data; server read queues only
// ever populate ClientID; write queues only ever populate Data.
type queuedMessage struct {
	Data     []byte
	ClientID registry.ID
}

// Engine is the runtime object behind the flat package-level API: the
// registry, the poll set the synchronous layer multiplexes on, and
// the two worker goroutines' lifecycle.
type Engine struct {
	set pollset.Set
	reg *registry.Registry[asyncConn]

	log log.FuncLog

	mu      sync.Mutex
	running bool // guarded by mu; see ensureWorkersLocked/stopWorkersIfEmptyLocked
	stopCh  chan struct{}
	wg      sync.WaitGroup

	activeCount stdatomic.Int64
}

// NewEngine creates an idle Engine. It does nothing observable until
// the first successful OpenConnection.
func NewEngine(logger log.FuncLog) (*Engine, error) {
	set, err := pollset.New()
	if err != nil {
		return nil, err
	}

	return &Engine{
		set: set,
		reg: registry.New[asyncConn](),
		log: logger,
	}, nil
}

func (e *Engine) logger() log.Logger {
	if e.log == nil {
		return log.Discard
	}
	return log.OrDiscard(e.log())
}

// ensureWorkersLocked starts the reader and writer goroutines the
// first time the registry transitions from empty to non-empty.
// Callers must hold e.mu.
func (e *Engine) ensureWorkersLocked() {
	if e.running {
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})

	e.wg.Add(2)
	go e.readerLoop(e.stopCh)
	go e.writerLoop(e.stopCh)
}

// stopWorkersIfEmptyLocked clears the running flag and signals both
// workers once the registry has no entries left. Callers must hold
// e.mu. The actual join happens outside the lock, in Close, since the
// workers themselves need to acquire registry entries.
func (e *Engine) stopWorkersIfEmptyLocked() (shouldJoin bool) {
	if !e.running || e.reg.GetItemsCount() > 0 {
		return false
	}
	e.running = false
	close(e.stopCh)
	e.stopCh = nil
	return true
}

func (e *Engine) joinWorkers() {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(joinTimeout):
		e.logger().Warn("worker join timed out", nil)
	}
}
