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

// Package pollset is the descriptor multiplexer of §4.1: Insert, Remove
// and a single blocking Wait(timeout) that reports per-descriptor
// readiness. Two back-ends share this contract, exactly as the
// synchronous layer expects — a modern epoll-backed Set for Linux, and
// a legacy bitmap-plus-select Set for hosts or build configurations
// that want the portable fallback.
package pollset

// Set multiplexes reads across a handful of descriptors on behalf of
// one reader worker. It is not safe for concurrent use by multiple
// goroutines; the synchronous layer serializes access to a single Set
// through the reader worker, as spec'd in §5.
type Set interface {
	// Insert subscribes fd for readable readiness; the epoll back-end
	// also subscribes out-of-band events.
	Insert(fd int) error

	// Remove unsubscribes fd. Removing an fd that was never inserted
	// is a no-op.
	Remove(fd int)

	// Wait blocks until at least one subscribed descriptor is ready, or
	// timeoutMS elapses. It returns the number of ready descriptors (0
	// on timeout). An OS-level error also returns 0.
	Wait(timeoutMS int) int

	// IsReady reports whether fd had readable readiness in the most
	// recent Wait.
	IsReady(fd int) bool

	// Len returns the number of descriptors currently subscribed.
	Len() int
}
