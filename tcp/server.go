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

package tcp

import (
	"github.com/hashicorp/go-multierror"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/reactor/errors"
	liblog "github.com/sabouaram/reactor/logger"
	"github.com/sabouaram/reactor/reactor"
	"github.com/sabouaram/reactor/socket"
)

// Server is the generic TCP server template of spec.md §4.2, parameterized
// over a session type per Design Notes §9 rather than relying on a
// virtual handle_connection() hook.
type Server[S Session] struct {
	cfg     Config
	loop    *reactor.Loop
	factory Factory[S]
	log     liblog.FuncLog

	listener *socket.ServerSocket

	running atomic.Bool
	conns   atomic.Int64
}

// New constructs a Server bound to loop, listening per cfg once Start is
// called, handing each accepted connection to factory.
func New[S Session](loop *reactor.Loop, cfg Config, factory Factory[S], log liblog.FuncLog) (*Server[S], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Server[S]{
		cfg:     cfg,
		loop:    loop,
		factory: factory,
		log:     log,
	}, nil
}

func (s *Server[S]) logger() liblog.Logger {
	if s.log == nil {
		return nil
	}
	return s.log()
}

func (s *Server[S]) diag(lvl liblog.Level, msg string, err error) {
	lg := s.logger()
	if lg == nil {
		return
	}
	lg.Entry(lvl, msg).ErrorAdd(err).Log()
}

// IsRunning reports the server's liveness hint; the loop itself does not
// consult it.
func (s *Server[S]) IsRunning() bool {
	return s.running.Load()
}

// OpenConnections returns the number of accepted connections that have
// not yet observed EOF.
func (s *Server[S]) OpenConnections() int64 {
	return s.conns.Load()
}

// Stop clears the liveness flag; it does not itself close the listener or
// any open connection.
func (s *Server[S]) Stop() {
	s.running.Store(false)
}

// Start binds+listens (cfg.Backlog, default 128), puts the listener into
// non-blocking mode, and registers a read callback on the listener fd.
// It silently returns on the first failing step, leaving IsRunning false;
// start errors are diagnostic-only, matching spec.md §4.2.
func (s *Server[S]) Start() {
	port, err := s.cfg.port()
	if err != nil {
		s.diag(liblog.ErrorLevel, "invalid listen address", err)
		return
	}

	listener, err := socket.NewServer()
	if err != nil {
		s.diag(liblog.ErrorLevel, "failed to create listener socket", err)
		return
	}

	if err := listener.Listen(port, s.cfg.backlog()); err != nil {
		s.diag(liblog.ErrorLevel, "failed to bind/listen", err)
		return
	}

	if err := listener.SetNonBlocking(); err != nil {
		s.diag(liblog.ErrorLevel, "failed to set listener non-blocking", err)
		return
	}

	s.listener = listener

	err = s.loop.RegisterFDRead(listener.Fd(), s.acceptCallback)
	if err != nil {
		s.diag(liblog.ErrorLevel, "failed to register listener read callback", err)
		return
	}

	s.running.Store(true)
}

// Close closes the listener. It does not tear down already-accepted
// connections; those are released individually as each observes EOF.
func (s *Server[S]) Close() error {
	s.Stop()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// acceptCallback is the listener's read-readiness callback: it accepts
// pending peers until Accept reports EWOULDBLOCK. The reported count N is
// not used as a bound, since FIONREAD yields no count for a listening
// socket. Any other accept error is logged and ends this dispatch; the
// listener stays registered, so the next readiness event retries.
func (s *Server[S]) acceptCallback(_ int, res reactor.IOResult) {
	if !res.Ok() {
		s.diag(liblog.ErrorLevel, "notification failure for server socket", liberr.FromErrno(liberr.UnknownError, unix.Errno(res.Errno)))
		return
	}

	for {
		peer, err := s.listener.Accept()
		if err != nil {
			e, ok := err.(liberr.Error)
			if ok && e.Errno() == unix.EWOULDBLOCK {
				return
			}
			s.diag(liblog.ErrorLevel, "accept failure for server socket", err)
			return
		}
		s.setupHandlers(peer)
	}
}

// setupHandlers wires the three per-connection callbacks described in
// spec.md §4.2: each closure captures the peer socket and session
// directly, which in Go keeps both alive for exactly as long as any of
// the three callbacks remains installed in the loop's tables — the same
// guarantee the teacher's shared_ptr captures provide in C++, realized
// here through ordinary closure capture and garbage collection instead
// of manual reference counting.
func (s *Server[S]) setupHandlers(peer *socket.Socket) {
	session := s.factory()
	fd := peer.Fd()
	s.conns.Inc()

	readCB := func(_ int, res reactor.IOResult) {
		if !res.Ok() {
			s.diag(liblog.ErrorLevel, "read failure from client socket", liberr.FromErrno(liberr.UnknownError, unix.Errno(res.Errno)))
			return
		}

		maxLen := int(res.N)
		if maxLen > s.cfg.bufferSize() {
			maxLen = s.cfg.bufferSize()
		}
		window := session.RecvBuf(maxLen)
		if len(window) == 0 {
			return
		}

		filled, err := peer.RecvSome(window)
		if err != nil {
			s.diag(liblog.ErrorLevel, "failed to recv", err)
			return
		}
		session.PostRecv(filled)
	}

	writeCB := func(_ int, res reactor.IOResult) {
		if !res.Ok() {
			s.diag(liblog.ErrorLevel, "write failure to client socket", liberr.FromErrno(liberr.UnknownError, unix.Errno(res.Errno)))
			return
		}

		window := session.SendBuf(int(res.N))
		if len(window) == 0 {
			return
		}

		if err := peer.SendAll(window); err != nil {
			s.diag(liblog.ErrorLevel, "failed to send", err)
			return
		}
		session.PostSend(len(window))
	}

	eofCB := func(_ int, res reactor.IOResult) {
		if !res.Ok() {
			s.diag(liblog.ErrorLevel, "close failure on socket", liberr.FromErrno(liberr.UnknownError, unix.Errno(res.Errno)))
			return
		}

		session.End()
		s.conns.Dec()

		// Teardown order matches axle/tcp.h's setup_handlers exactly:
		// write, then read, then eof.
		var merr *multierror.Error
		if err := s.loop.RemoveFDWrite(fd); err != nil {
			merr = multierror.Append(merr, err)
		}
		if err := s.loop.RemoveFDRead(fd); err != nil {
			merr = multierror.Append(merr, err)
		}
		if err := s.loop.RemoveFDEOF(fd); err != nil {
			merr = multierror.Append(merr, err)
		}
		if merr.ErrorOrNil() != nil {
			s.diag(liblog.WarnLevel, "failed to fully remove peer filters", merr)
		}

		_ = peer.Close()
	}

	if err := s.loop.RegisterFDRead(fd, readCB); err != nil {
		s.diag(liblog.ErrorLevel, "failed to register peer read callback", err)
	}
	if err := s.loop.RegisterFDWrite(fd, writeCB); err != nil {
		s.diag(liblog.ErrorLevel, "failed to register peer write callback", err)
	}
	if err := s.loop.RegisterFDEOF(fd, eofCB); err != nil {
		s.diag(liblog.ErrorLevel, "failed to register peer eof callback", err)
	}
}
