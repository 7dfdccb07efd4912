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

// Package log is the small structured-logging seam the engine and the
// synchronous layer log through: one Level enum bridged to logrus, the
// way logger/level bridges its own Level to logrus.Level, trimmed down
// to the handful of leveled calls this module actually makes.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Level is the minimal severity a Logger accepts.
type Level uint8

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// Logrus converts Level to its logrus.Level equivalent.
func (l Level) Logrus() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Fields attaches structured context (connection id, transport, role,
// address) to a single log entry.
type Fields map[string]interface{}

// Logger is the contract the engine and the synchronous layer log
// through. A nil Logger is valid everywhere it is accepted and simply
// discards entries.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// FuncLog returns a Logger lazily, for dependency injection.
type FuncLog func() Logger

type logrusLogger struct {
	l *logrus.Logger
}

// New returns a Logger backed by logrus, writing to stderr at lvl.
func New(lvl Level) Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(lvl.Logrus())
	return &logrusLogger{l: l}
}

func (g *logrusLogger) entry(f Fields) *logrus.Entry {
	if len(f) == 0 {
		return logrus.NewEntry(g.l)
	}
	return g.l.WithFields(logrus.Fields(f))
}

func (g *logrusLogger) Debug(msg string, f Fields) { g.entry(f).Debug(msg) }
func (g *logrusLogger) Info(msg string, f Fields)  { g.entry(f).Info(msg) }
func (g *logrusLogger) Warn(msg string, f Fields)  { g.entry(f).Warn(msg) }
func (g *logrusLogger) Error(msg string, f Fields) { g.entry(f).Error(msg) }

type discard struct{}

func (discard) Debug(string, Fields) {}
func (discard) Info(string, Fields)  {}
func (discard) Warn(string, Fields)  {}
func (discard) Error(string, Fields) {}

// Discard is a Logger that drops every entry.
var Discard Logger = discard{}

// OrDiscard returns l, or Discard if l is nil, so call sites never
// need a nil check before logging.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard
	}
	return l
}
