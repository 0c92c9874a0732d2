/*
MIT License

Copyright (c) 2019 Nicolas JUHEL

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Fields is a shorthand for the custom key/value pairs attached to a log
// Entry, matching the teacher's logger.Fields shape.
type Fields map[string]interface{}

// Logger is the interface reactor.Loop and tcp.Server depend on. Callers
// inject their own implementation (or one from New) rather than the loop
// owning process-wide logging configuration.
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level
	Entry(lvl Level, message string) *Entry
}

// FuncLog is a lazily-resolved Logger, letting a reactor.Loop or tcp.Server
// be constructed before its final logging destination is wired up.
type FuncLog func() Logger

type logger struct {
	lvl Level
	log *logrus.Logger
}

// New returns a Logger writing to os.Stderr through logrus, matching the
// teacher's default logrus.Logger construction.
func New(lvl Level) Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(lvl.logrus())
	return &logger{lvl: lvl, log: l}
}

func (l *logger) SetLevel(lvl Level) {
	l.lvl = lvl
	l.log.SetLevel(lvl.logrus())
}

func (l *logger) GetLevel() Level {
	return l.lvl
}

func (l *logger) Entry(lvl Level, message string) *Entry {
	return &Entry{
		lvl:     lvl,
		message: message,
		logEnt:  l.log.WithFields(logrus.Fields{}),
	}
}

// Entry is a single log record under construction, matching the teacher's
// chained Entry builder (FieldAdd/ErrorAdd/Log).
type Entry struct {
	lvl     Level
	message string
	fields  Fields
	errs    []error
	logEnt  *logrus.Entry
}

// FieldAdd attaches a key/value pair to this entry and returns it for
// chaining.
func (e *Entry) FieldAdd(key string, val interface{}) *Entry {
	if e.fields == nil {
		e.fields = make(Fields)
	}
	e.fields[key] = val
	return e
}

// ErrorAdd attaches one or more errors to this entry and returns it for
// chaining.
func (e *Entry) ErrorAdd(err ...error) *Entry {
	for _, er := range err {
		if er != nil {
			e.errs = append(e.errs, er)
		}
	}
	return e
}

// Log emits the entry at its configured level.
func (e *Entry) Log() {
	ent := e.logEnt
	for k, v := range e.fields {
		ent = ent.WithField(k, v)
	}
	if len(e.errs) > 0 {
		ent = ent.WithField("errors", e.errs)
	}
	ent.Log(e.lvl.logrus(), e.message)
}
