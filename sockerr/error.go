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

// Package sockerr implements the closed set of error kinds from §7:
// InvalidArgument, ResolveFailure, SocketFailure, PeerClosed,
// TransientIO, QueueFull, NotFound and WrongRole. Errors that ipconn
// builds itself carry one of these kinds so callers can branch on
// KindOf(err) instead of string-matching messages; raw errors it passes
// through from socket calls (UDP sends, descriptor close) report
// Unknown.
package sockerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why an operation failed.
type Kind uint8

const (
	Unknown Kind = iota
	InvalidArgument
	ResolveFailure
	SocketFailure
	PeerClosed
	TransientIO
	QueueFull
	NotFound
	WrongRole
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case ResolveFailure:
		return "resolve failure"
	case SocketFailure:
		return "socket failure"
	case PeerClosed:
		return "peer closed"
	case TransientIO:
		return "transient I/O error"
	case QueueFull:
		return "queue full"
	case NotFound:
		return "not found"
	case WrongRole:
		return "wrong role"
	default:
		return "unknown error"
	}
}

// sockError is the concrete error carrying a Kind, a message and an
// optional cause.
type sockError struct {
	kind  Kind
	msg   string
	cause error
}

func (e *sockError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.kind, e.msg, e.cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *sockError) Unwrap() error {
	return e.cause
}

func (e *sockError) Kind() Kind {
	return e.kind
}

// New builds a stack-traced error of the given kind.
func New(kind Kind, msg string) error {
	return errors.WithStack(&sockError{kind: kind, msg: msg})
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches a kind and message to a lower-level cause, preserving
// it for errors.Unwrap/errors.Is/errors.As.
func Wrap(kind Kind, cause error, msg string) error {
	if cause == nil {
		return New(kind, msg)
	}
	return errors.WithStack(&sockError{kind: kind, msg: msg, cause: cause})
}

type kinder interface {
	Kind() Kind
}

// KindOf extracts the Kind carried by err, or Unknown if err was not
// produced by this package.
func KindOf(err error) Kind {
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
