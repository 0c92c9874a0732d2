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
	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/reactor/errors"
)

// RegisterTimer installs a timer identified by id, firing every
// timeoutNS nanoseconds if periodic, or exactly once otherwise.
// Re-registering an existing id replaces both schedule and callback; the
// prior callback is not invoked after the replacement takes effect. id
// must not equal ShutdownEventID.
func (l *Loop) RegisterTimer(id uint64, timeoutNS uint64, periodic bool, cb TimerCallback) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id == ShutdownEventID {
		return liberr.New(liberr.CodeReservedID, "")
	}

	tfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return liberr.FromErrno(liberr.UnknownError, err)
	}

	spec := nsecToItimerspec(timeoutNS, periodic)
	if err := unix.TimerfdSettime(tfd, 0, &spec, nil); err != nil {
		_ = unix.Close(tfd)
		return liberr.FromErrno(liberr.UnknownError, err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(tfd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, tfd, &ev); err != nil {
		_ = unix.Close(tfd)
		return liberr.FromErrno(liberr.UnknownError, err)
	}

	if prev, ok := l.timers[id]; ok {
		_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, prev.fd, nil)
		_ = unix.Close(prev.fd)
	}

	l.timers[id] = &timerEntry{fd: tfd, periodic: periodic, cb: cb}
	return nil
}

// RemoveTimer removes both the in-process entry and the underlying
// timerfd for id.
func (l *Loop) RemoveTimer(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.timers[id]
	if !ok {
		return liberr.New(liberr.CodeEntryNotFound, "")
	}

	delete(l.timers, id)
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, t.fd, nil); err != nil {
		_ = unix.Close(t.fd)
		return liberr.FromErrno(liberr.UnknownError, err)
	}
	if err := unix.Close(t.fd); err != nil {
		return liberr.FromErrno(liberr.UnknownError, err)
	}
	return nil
}

func nsecToItimerspec(timeoutNS uint64, periodic bool) unix.ItimerSpec {
	ts := unix.NsecToTimespec(int64(timeoutNS))
	spec := unix.ItimerSpec{Value: ts}
	if periodic {
		spec.Interval = ts
	}
	return spec
}
