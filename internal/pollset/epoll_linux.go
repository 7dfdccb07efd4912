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

//go:build linux
// +build linux

package pollset

import (
	"sort"

	"golang.org/x/sys/unix"
)

// epollSet is the modern back-end: descriptors are kept in an array
// sorted by fd value, the way §4.1 describes, and the kernel does the
// actual readiness tracking via an epoll instance subscribed to
// readable and out-of-band events.
type epollSet struct {
	epfd int
	fds  []int
	evs  []unix.EpollEvent
	rdy  map[int]bool
}

// NewModern creates the epoll-backed Set.
func NewModern() (Set, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollSet{
		epfd: fd,
		evs:  make([]unix.EpollEvent, 64),
		rdy:  make(map[int]bool),
	}, nil
}

func (s *epollSet) Insert(fd int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLPRI,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}

	i := sort.SearchInts(s.fds, fd)
	s.fds = append(s.fds, 0)
	copy(s.fds[i+1:], s.fds[i:])
	s.fds[i] = fd

	return nil
}

func (s *epollSet) Remove(fd int) {
	i := sort.SearchInts(s.fds, fd)
	if i >= len(s.fds) || s.fds[i] != fd {
		return
	}
	_ = unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)

	s.fds = append(s.fds[:i], s.fds[i+1:]...)
	delete(s.rdy, fd)
}

func (s *epollSet) Wait(timeoutMS int) int {
	for k := range s.rdy {
		delete(s.rdy, k)
	}

	if len(s.fds) == 0 {
		return 0
	}

	if cap(s.evs) < len(s.fds) {
		s.evs = make([]unix.EpollEvent, len(s.fds))
	}

	n, err := unix.EpollWait(s.epfd, s.evs[:cap(s.evs)], timeoutMS)
	if err != nil || n <= 0 {
		return 0
	}

	for i := 0; i < n; i++ {
		s.rdy[int(s.evs[i].Fd)] = true
	}

	return len(s.rdy)
}

func (s *epollSet) IsReady(fd int) bool {
	return s.rdy[fd]
}

func (s *epollSet) Len() int {
	return len(s.fds)
}
