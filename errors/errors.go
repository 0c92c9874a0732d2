/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package errors provides the coded error type used across the reactor,
// socket and tcp packages to distinguish OS-originated failures from
// library-rule violations (registering EOF without a direction, removing
// an absent entry, re-using the reserved shutdown id, ...).
package errors

import (
	"errors"
	"strings"
	"syscall"
)

// CodeError is a numeric classification for a reactor-local error, in the
// same spirit as the teacher's HTTP-like error codes but scoped to this
// module's own failure modes.
type CodeError uint16

const (
	// UnknownError is returned by Code() for a plain wrapped error that
	// carries no classification.
	UnknownError CodeError = 0

	// CodeEOFWithoutDirection: register_fd_eof was called for a
	// descriptor with neither a read nor a write callback registered.
	CodeEOFWithoutDirection CodeError = iota + 100

	// CodeEntryNotFound: a remove_* call targeted an id/fd with no
	// matching table entry.
	CodeEntryNotFound

	// CodeReservedID: a caller tried to register a timer or user event
	// using the reserved shutdown id.
	CodeReservedID

	// CodeClosed: an operation was attempted on a loop or socket that has
	// already been closed/shut down.
	CodeClosed

	// CodeInvalidAddress: a tcp.Config failed validation because its
	// address was empty or malformed.
	CodeInvalidAddress

	// CodeAlreadyRunning: Server.Start was called twice without an
	// intervening Stop.
	CodeAlreadyRunning
)

var codeMessage = map[CodeError]string{
	CodeEOFWithoutDirection: "eof registration requires an existing read or write entry",
	CodeEntryNotFound:       "no matching entry registered",
	CodeReservedID:          "id is reserved for the shutdown event",
	CodeClosed:              "operation attempted on a closed resource",
	CodeInvalidAddress:      "invalid listen address",
	CodeAlreadyRunning:      "server is already running",
}

// Message returns the human-readable description registered for code, or
// "unknown error" if none is registered.
func (c CodeError) Message() string {
	if m, ok := codeMessage[c]; ok {
		return m
	}
	return "unknown error"
}

// Error is the error type returned by every fallible entry point in this
// module. It extends the standard error interface with a classification
// code, an optional errno (set only when the failure reached the kernel),
// and an optional parent chain.
type Error interface {
	error

	// Code returns this error's own classification, ignoring parents.
	Code() CodeError

	// Errno returns the syscall errno that produced this error, or 0 if
	// this error did not originate from a syscall.
	Errno() syscall.Errno

	// Is reports whether target is an Error with the same code as this
	// error (UnknownError never matches), or a syscall.Errno equal to
	// this error's non-zero errno, satisfying errors.Is.
	Is(target error) bool

	// Add appends parent errors to this error's chain.
	Add(parent ...error)

	// Unwrap exposes the first parent, satisfying errors.Unwrap.
	Unwrap() error
}

type ers struct {
	code CodeError
	msg  string
	errn syscall.Errno
	prnt []error
}

// New returns an Error classified with code and msg, with optional parent
// errors attached.
func New(code CodeError, msg string, parent ...error) Error {
	if msg == "" {
		msg = code.Message()
	}
	e := &ers{code: code, msg: msg}
	e.Add(parent...)
	return e
}

// FromErrno wraps an OS-level failure (e.g. from golang.org/x/sys/unix) as
// an Error classified with code, preserving the original errno so callers
// can still compare against syscall.EBADF and friends.
func FromErrno(code CodeError, err error) Error {
	e := &ers{code: code}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		e.errn = errno
		e.msg = errno.Error()
	} else if err != nil {
		e.msg = err.Error()
	} else {
		e.msg = code.Message()
	}
	return e
}

func (e *ers) Error() string {
	if len(e.prnt) == 0 {
		return e.msg
	}

	var parts = make([]string, 0, len(e.prnt)+1)
	parts = append(parts, e.msg)
	for _, p := range e.prnt {
		parts = append(parts, p.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ers) Code() CodeError {
	return e.code
}

func (e *ers) Errno() syscall.Errno {
	return e.errn
}

func (e *ers) Add(parent ...error) {
	for _, p := range parent {
		if p != nil {
			e.prnt = append(e.prnt, p)
		}
	}
}

func (e *ers) Unwrap() error {
	if len(e.prnt) == 0 {
		return nil
	}
	return e.prnt[0]
}

func (e *ers) Is(target error) bool {
	if target == nil {
		return false
	}

	if other, ok := target.(*ers); ok {
		return e.code != UnknownError && e.code == other.code
	}

	var errno syscall.Errno
	if errors.As(target, &errno) {
		return e.errn != 0 && e.errn == errno
	}

	return false
}

// HasCode reports whether err, or any error in its Unwrap chain, is an
// Error classified with code.
func HasCode(err error, code CodeError) bool {
	for err != nil {
		if e, ok := err.(Error); ok && e.Code() == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
