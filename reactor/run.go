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
	"encoding/binary"

	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/reactor/errors"
	liblog "github.com/sabouaram/reactor/logger"
)

// Shutdown may be called from inside a callback or from another
// goroutine: it writes a byte to the self-pipe that Run's epoll_wait is
// blocked on, and the loop stops after the current dispatch iteration.
func (l *Loop) Shutdown() error {
	var b [1]byte
	b[0] = 1
	for {
		_, err := unix.Write(l.shutdownW, b[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil && err != unix.EAGAIN {
			return liberr.FromErrno(liberr.UnknownError, err)
		}
		return nil
	}
}

// Run blocks, demultiplexes, and dispatches until Shutdown has been
// observed. It never re-enters: each iteration makes one epoll_wait call
// and dispatches the events it returned (up to maxEventBatch) one at a
// time, in the order returned, before looping.
func (l *Loop) Run() {
	events := make([]unix.EpollEvent, maxEventBatch)

	for {
		l.mu.Lock()
		done := l.done
		l.mu.Unlock()
		if done {
			return
		}

		n, err := unix.EpollWait(l.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			l.diag(liblog.ErrorLevel, "failed to wait for events", err)
			continue
		}

		for i := 0; i < n; i++ {
			l.dispatch(events[i])
		}

		l.iterations.Inc()
	}
}

func (l *Loop) dispatch(ev unix.EpollEvent) {
	fd := int(ev.Fd)

	switch {
	case fd == l.shutdownR:
		l.drainShutdown()
		return
	case l.isTimerFD(fd):
		l.dispatchTimer(fd)
		return
	default:
		l.dispatchFD(fd, ev)
	}
}

func (l *Loop) drainShutdown() {
	var buf [64]byte
	for {
		_, err := unix.Read(l.shutdownR, buf[:])
		if err != nil {
			break
		}
	}

	l.mu.Lock()
	l.done = true
	l.mu.Unlock()
}

func (l *Loop) isTimerFD(fd int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.timers {
		if t.fd == fd {
			return true
		}
	}
	return false
}

func (l *Loop) dispatchTimer(fd int) {
	l.mu.Lock()
	var (
		id uint64
		t  *timerEntry
	)
	for tid, te := range l.timers {
		if te.fd == fd {
			id, t = tid, te
			break
		}
	}
	l.mu.Unlock()

	if t == nil {
		return
	}

	var buf [8]byte
	_, err := unix.Read(fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		t.cb(id, liberr.FromErrno(liberr.UnknownError, err))
		return
	}
	expirations := binary.LittleEndian.Uint64(buf[:])
	for i := uint64(0); i < expirations; i++ {
		t.cb(id, nil)
	}
}

func (l *Loop) dispatchFD(fd int, ev unix.EpollEvent) {
	l.mu.Lock()
	st, ok := l.fds[fd]
	l.mu.Unlock()
	if !ok {
		// Spurious event for a descriptor whose entries were just
		// removed; silently dropped per spec.
		return
	}

	errno := socketError(fd, ev)
	eofFlag := ev.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0

	if ev.Events&unix.EPOLLIN != 0 || errno != 0 {
		if st.read != nil {
			if errno != 0 {
				st.read(fd, IOResult{Errno: errno})
			} else {
				st.read(fd, IOResult{N: readableBytes(fd)})
			}
		}
	}

	if ev.Events&unix.EPOLLOUT != 0 || errno != 0 {
		if st.write != nil {
			if errno != 0 {
				st.write(fd, IOResult{Errno: errno})
			} else {
				st.write(fd, IOResult{N: writableBytes(fd)})
			}
		}
	}

	if eofFlag && st.eof != nil {
		st.eof(fd, IOResult{N: readableBytes(fd)})
	}
}

// socketError reads SO_ERROR for fd when epoll flagged EPOLLERR, realizing
// the kernel-reported per-event error path of spec.md §7 kind 2.
func socketError(fd int, ev unix.EpollEvent) int32 {
	if ev.Events&unix.EPOLLERR == 0 {
		return 0
	}
	if v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR); err == nil && v != 0 {
		return int32(v)
	}
	return int32(unix.EIO)
}

// readableBytes returns the kernel's advisory count of bytes available to
// read without blocking (FIONREAD), the epoll analogue of kqueue's
// EVFILT_READ "data" field.
func readableBytes(fd int) int64 {
	n, err := unix.IoctlGetInt(fd, unix.FIONREAD)
	if err != nil || n < 0 {
		return 0
	}
	return int64(n)
}

// writableBytes has no direct FIONREAD-style equivalent for the write
// direction; epoll's EPOLLOUT only promises "at least one byte fits",
// so callers receive that advisory minimum rather than an exact count.
func writableBytes(fd int) int64 {
	return 1
}
