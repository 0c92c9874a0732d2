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

// Package reactor is a single-threaded, readiness-based event loop built
// on Linux epoll. It registers read/write/EOF callbacks for file
// descriptors and one-shot/periodic timers. Each iteration makes one
// epoll_wait call and dispatches the events it returns, one at a time,
// to their registered callbacks.
//
// The loop never re-enters: callbacks run to completion on the loop's own
// goroutine before the next event is dispatched, and the only cross-thread
// safe operation is Shutdown.
package reactor

import (
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/reactor/errors"
	liblog "github.com/sabouaram/reactor/logger"
)

// ShutdownEventID is the reserved timer/user-event identifier used
// internally to signal loop shutdown. Callers must not register a timer
// under this id.
const ShutdownEventID uint64 = 19

// maxEventBatch bounds how many ready events epoll_wait may return in a
// single call; the dispatch algorithm still processes them one at a time.
const maxEventBatch = 64

// IOResult is handed to a read/write callback: either the advisory byte
// count the kernel reported ready, or the errno the kernel flagged on the
// event (EVFILT's EV_ERROR, realized here as an epoll/getsockopt errno).
type IOResult struct {
	N     int64
	Errno int32
}

// Ok reports whether this result carries a byte count rather than an
// error flag.
func (r IOResult) Ok() bool {
	return r.Errno == 0
}

// FDCallback is invoked for read/write/EOF readiness on a descriptor.
type FDCallback func(fd int, res IOResult)

// TimerCallback is invoked on timer expiry, or with a non-nil err if the
// timer's underlying timerfd could not be read. A failure to arm the
// timerfd is returned by RegisterTimer instead.
type TimerCallback func(id uint64, err error)

// fdState holds the three user-supplied callbacks registered for one
// descriptor, plus whether an epoll entry currently exists for it.
type fdState struct {
	read       FDCallback
	write      FDCallback
	eof        FDCallback
	registered bool
}

type timerEntry struct {
	fd       int
	periodic bool
	cb       TimerCallback
}

// Loop is the reactor described in spec.md §4.1, realized over epoll:
// a kernel event-queue handle, a done flag, and four mappings from
// identifier to callback (read, write, eof, timer).
type Loop struct {
	mu sync.Mutex

	epfd int
	done bool

	fds    map[int]*fdState
	timers map[uint64]*timerEntry

	shutdownR int
	shutdownW int

	log liblog.FuncLog

	iterations atomic.Uint64
}

// New creates and initializes a Loop: an epoll instance plus the self-pipe
// that stands in for kqueue's EVFILT_USER shutdown signal.
func New(log liblog.FuncLog) (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, liberr.FromErrno(liberr.UnknownError, err)
	}

	var pipeFDs [2]int
	if err := unix.Pipe2(pipeFDs[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		_ = unix.Close(epfd)
		return nil, liberr.FromErrno(liberr.UnknownError, err)
	}

	l := &Loop{
		epfd:      epfd,
		fds:       make(map[int]*fdState),
		timers:    make(map[uint64]*timerEntry),
		shutdownR: pipeFDs[0],
		shutdownW: pipeFDs[1],
		log:       log,
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(l.shutdownR)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, l.shutdownR, &ev); err != nil {
		_ = unix.Close(l.epfd)
		_ = unix.Close(l.shutdownR)
		_ = unix.Close(l.shutdownW)
		return nil, liberr.FromErrno(liberr.UnknownError, err)
	}

	return l, nil
}

// Close releases the epoll instance, the shutdown pipe, and any
// still-armed timerfds. It must only be called after Run has returned.
func (l *Loop) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.timers {
		_ = unix.Close(t.fd)
	}
	_ = unix.Close(l.shutdownR)
	_ = unix.Close(l.shutdownW)
	if err := unix.Close(l.epfd); err != nil {
		return liberr.FromErrno(liberr.UnknownError, err)
	}
	return nil
}

func (l *Loop) logger() liblog.Logger {
	if l.log == nil {
		return nil
	}
	return l.log()
}

func (l *Loop) diag(lvl liblog.Level, msg string, err error) {
	lg := l.logger()
	if lg == nil {
		return
	}
	lg.Entry(lvl, msg).ErrorAdd(err).Log()
}

// epollInterest computes the EPOLLIN/EPOLLOUT bitmask that should be
// registered for fd given its currently installed callbacks. EPOLLRDHUP
// rides along with EPOLLIN: unlike EPOLLHUP, the kernel only reports it
// on a peer's ordinary close/half-close if the registration explicitly
// asked for it, and run.go's dispatch relies on it to flag EOF.
func epollInterest(st *fdState) uint32 {
	var ev uint32
	if st.read != nil {
		ev |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if st.write != nil {
		ev |= unix.EPOLLOUT
	}
	return ev
}

// syncInterest reconciles the kernel epoll registration for fd with the
// callbacks currently installed in st, adding/modifying/deleting the
// epoll entry as needed. st may be nil, meaning "no callbacks left".
func (l *Loop) syncInterest(fd int, st *fdState) error {
	if st == nil || epollInterest(st) == 0 {
		if st != nil && st.registered {
			if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
				return liberr.FromErrno(liberr.UnknownError, err)
			}
			st.registered = false
		}
		return nil
	}

	ev := unix.EpollEvent{Events: epollInterest(st), Fd: int32(fd)}
	op := unix.EPOLL_CTL_MOD
	if !st.registered {
		op = unix.EPOLL_CTL_ADD
	}
	if err := unix.EpollCtl(l.epfd, op, fd, &ev); err != nil {
		return liberr.FromErrno(liberr.UnknownError, err)
	}
	st.registered = true
	return nil
}
