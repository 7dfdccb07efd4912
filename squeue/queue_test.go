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

package squeue_test

import (
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/sabouaram/ipsock/squeue"
)

func TestSqueue(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "squeue Suite")
}

var _ = Describe("Queue", func() {
	It("enqueues and dequeues in FIFO order", func() {
		q := New[int](3)
		Expect(q.Enqueue(1, NoWait)).To(BeTrue())
		Expect(q.Enqueue(2, NoWait)).To(BeTrue())
		Expect(q.Enqueue(3, NoWait)).To(BeTrue())
		Expect(q.Count()).To(Equal(3))

		v, ok := q.Dequeue(NoWait)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(1))
	})

	It("never exceeds QUEUE_MAX_ITEMS-style capacity", func() {
		q := New[int](10)
		for i := 0; i < 20; i++ {
			q.Enqueue(i, NoWait)
			Expect(q.Count()).To(BeNumerically("<=", 10))
		}
	})

	It("drops the oldest item on a NoWait enqueue into a full queue", func() {
		q := New[int](2)
		q.Enqueue(1, NoWait)
		q.Enqueue(2, NoWait)
		q.Enqueue(3, NoWait)

		v1, _ := q.Dequeue(NoWait)
		v2, _ := q.Dequeue(NoWait)
		Expect([]int{v1, v2}).To(Equal([]int{2, 3}))
	})

	It("Dequeue NoWait on empty returns false without blocking", func() {
		q := New[int](2)
		_, ok := q.Dequeue(NoWait)
		Expect(ok).To(BeFalse())
	})

	It("Enqueue Wait blocks until a consumer makes room", func() {
		q := New[int](1)
		q.Enqueue(1, NoWait)

		done := make(chan struct{})
		go func() {
			q.Enqueue(2, Wait)
			close(done)
		}()

		Consistently(done, 100*time.Millisecond).ShouldNot(BeClosed())

		_, _ = q.Dequeue(NoWait)
		Eventually(done, time.Second).Should(BeClosed())
	})

	It("Dequeue Wait blocks until a producer enqueues", func() {
		q := New[int](2)

		var got int
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, ok := q.Dequeue(Wait)
			Expect(ok).To(BeTrue())
			got = v
		}()

		time.Sleep(50 * time.Millisecond)
		q.Enqueue(42, NoWait)
		wg.Wait()

		Expect(got).To(Equal(42))
	})

	It("Discard wakes blocked callers and makes the queue inert", func() {
		q := New[int](1)

		done := make(chan struct{})
		go func() {
			_, ok := q.Dequeue(Wait)
			Expect(ok).To(BeFalse())
			close(done)
		}()

		time.Sleep(20 * time.Millisecond)
		q.Discard()
		Eventually(done, time.Second).Should(BeClosed())

		Expect(q.Enqueue(1, NoWait)).To(BeFalse())
		Expect(q.Count()).To(Equal(0))
	})
})
