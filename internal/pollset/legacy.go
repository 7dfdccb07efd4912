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

package pollset

import (
	"github.com/bits-and-blooms/bitset"
	"golang.org/x/sys/unix"
)

// legacySet is the bitmap-style back-end of §4.1, for hosts or build
// configurations that forgo the modern multiplexer: a bitset of
// subscribed descriptors plus a high-water mark, copied into a scratch
// unix.FdSet and handed to select(2) on every Wait.
type legacySet struct {
	subscribed *bitset.BitSet
	ready      *bitset.BitSet
	maxFD      int // one past the largest subscribed fd, or 0 if empty
	n          int
}

// NewLegacy creates the bitmap-and-select Set.
func NewLegacy() Set {
	return &legacySet{
		subscribed: bitset.New(64),
		ready:      bitset.New(64),
	}
}

func (s *legacySet) Insert(fd int) error {
	if fd < 0 {
		return unix.EBADF
	}
	if s.subscribed.Test(uint(fd)) {
		return nil
	}

	s.subscribed.Set(uint(fd))
	s.n++
	if fd+1 > s.maxFD {
		s.maxFD = fd + 1
	}

	return nil
}

func (s *legacySet) Remove(fd int) {
	if fd < 0 || !s.subscribed.Test(uint(fd)) {
		return
	}

	s.subscribed.Clear(uint(fd))
	s.ready.Clear(uint(fd))
	s.n--

	if fd+1 == s.maxFD {
		s.shrinkHighWaterMark()
	}
}

// shrinkHighWaterMark walks the bitmap down from the old mark looking
// for the new largest subscribed fd. It is conservative: it only
// lowers the mark as far as an actual set bit, never guesses past it.
func (s *legacySet) shrinkHighWaterMark() {
	for fd := s.maxFD - 1; fd >= 0; fd-- {
		if s.subscribed.Test(uint(fd)) {
			s.maxFD = fd + 1
			return
		}
	}
	s.maxFD = 0
}

func (s *legacySet) Wait(timeoutMS int) int {
	s.ready.ClearAll()

	if s.n == 0 {
		return 0
	}

	var rfds unix.FdSet
	for e, ok := s.subscribed.NextSet(0); ok; e, ok = s.subscribed.NextSet(e + 1) {
		fdSet(&rfds, int(e))
	}

	tv := unix.NsecToTimeval(int64(timeoutMS) * int64(1e6))

	n, err := unix.Select(s.maxFD, &rfds, nil, nil, &tv)
	if err != nil || n <= 0 {
		return 0
	}

	count := 0
	for e, ok := s.subscribed.NextSet(0); ok; e, ok = s.subscribed.NextSet(e + 1) {
		if fdIsSet(&rfds, int(e)) {
			s.ready.Set(e)
			count++
		}
	}

	return count
}

func (s *legacySet) IsReady(fd int) bool {
	if fd < 0 {
		return false
	}
	return s.ready.Test(uint(fd))
}

func (s *legacySet) Len() int {
	return s.n
}

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}
