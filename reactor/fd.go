/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

package reactor

import (
	liberr "github.com/sabouaram/reactor/errors"
)

func (l *Loop) entry(fd int) *fdState {
	st, ok := l.fds[fd]
	if !ok {
		st = &fdState{}
		l.fds[fd] = st
	}
	return st
}

// RegisterFDRead installs or replaces the read-readiness callback for fd.
// On kernel rejection (e.g. EBADF for an invalid descriptor) the callback
// table is left untouched.
func (l *Loop) RegisterFDRead(fd int, cb FDCallback) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.entry(fd)
	prev := st.read
	st.read = cb

	if err := l.syncInterest(fd, st); err != nil {
		st.read = prev
		if prev == nil && st.write == nil && st.eof == nil {
			delete(l.fds, fd)
		}
		return err
	}
	return nil
}

// RegisterFDWrite installs or replaces the write-readiness callback for
// fd, symmetric to RegisterFDRead.
func (l *Loop) RegisterFDWrite(fd int, cb FDCallback) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.entry(fd)
	prev := st.write
	st.write = cb

	if err := l.syncInterest(fd, st); err != nil {
		st.write = prev
		if prev == nil && st.read == nil && st.eof == nil {
			delete(l.fds, fd)
		}
		return err
	}
	return nil
}

// RegisterFDEOF installs an EOF callback for fd. It fails with
// CodeEOFWithoutDirection unless a read or write callback is already
// registered for fd; it never itself touches the kernel queue, since EOF
// is reported as a flag fanned out from the read/write event.
func (l *Loop) RegisterFDEOF(fd int, cb FDCallback) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.fds[fd]
	if !ok || (st.read == nil && st.write == nil) {
		return liberr.New(liberr.CodeEOFWithoutDirection, "")
	}

	st.eof = cb
	return nil
}

// RemoveFDRead removes the read entry from the callback table and deletes
// the corresponding kernel filter. It fails with CodeEntryNotFound if no
// such entry exists; on kernel-deletion failure the table entry is still
// removed, since this is the error-cleanup path.
func (l *Loop) RemoveFDRead(fd int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.fds[fd]
	if !ok || st.read == nil {
		return liberr.New(liberr.CodeEntryNotFound, "")
	}

	st.read = nil
	err := l.syncInterest(fd, st)
	if st.read == nil && st.write == nil && st.eof == nil {
		delete(l.fds, fd)
	}
	return err
}

// RemoveFDWrite is the write-direction counterpart of RemoveFDRead.
func (l *Loop) RemoveFDWrite(fd int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.fds[fd]
	if !ok || st.write == nil {
		return liberr.New(liberr.CodeEntryNotFound, "")
	}

	st.write = nil
	err := l.syncInterest(fd, st)
	if st.read == nil && st.write == nil && st.eof == nil {
		delete(l.fds, fd)
	}
	return err
}

// RemoveFDEOF removes only the in-process EOF entry; it never touches the
// kernel queue.
func (l *Loop) RemoveFDEOF(fd int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.fds[fd]
	if !ok || st.eof == nil {
		return liberr.New(liberr.CodeEntryNotFound, "")
	}

	st.eof = nil
	if st.read == nil && st.write == nil {
		delete(l.fds, fd)
	}
	return nil
}
