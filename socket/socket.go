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

// Package socket is a thin scoped owner of a stream descriptor: Socket,
// ServerSocket and ClientSocket wrap the raw
// accept/read/write/close syscalls the reactor and tcp packages build on.
package socket

import (
	"net"

	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/reactor/errors"
)

// noFD is the sentinel held by a Socket that no longer owns a descriptor
// because Close has released it.
const noFD = -1

// Socket owns a single stream descriptor, which is blocking unless
// SetNonBlocking has been called. A Socket either owns a valid fd or
// holds noFD; on Close the fd is released exactly once and the Socket
// reverts to noFD.
type Socket struct {
	fd int
}

// New wraps an already-open descriptor, taking ownership of it.
func New(fd int) *Socket {
	return &Socket{fd: fd}
}

// NewStream creates a fresh AF_INET/SOCK_STREAM descriptor.
func NewStream() (*Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, liberr.FromErrno(liberr.UnknownError, err)
	}
	return &Socket{fd: fd}, nil
}

// Fd returns the owned descriptor, or noFD if none is owned.
func (s *Socket) Fd() int {
	return s.fd
}

// SetNonBlocking puts the descriptor in non-blocking mode.
func (s *Socket) SetNonBlocking() error {
	if err := unix.SetNonblock(s.fd, true); err != nil {
		return liberr.FromErrno(liberr.UnknownError, err)
	}
	return nil
}

// RecvSome reads up to len(buf) bytes, returning the prefix of buf
// actually filled. A zero-length, nil-error return means EOF.
func (s *Socket) RecvSome(buf []byte) ([]byte, error) {
	n, err := unix.Read(s.fd, buf)
	if err != nil {
		return nil, liberr.FromErrno(liberr.UnknownError, err)
	}
	if n < 0 {
		n = 0
	}
	return buf[:n], nil
}

// SendAll writes buf in its entirety, or fails. The caller (tcp.Server)
// only invokes this once the kernel has reported the descriptor
// writable, so it is not expected to block.
func (s *Socket) SendAll(buf []byte) error {
	for len(buf) > 0 {
		n, err := unix.Write(s.fd, buf)
		if err != nil {
			return liberr.FromErrno(liberr.UnknownError, err)
		}
		buf = buf[n:]
	}
	return nil
}

// Close releases the owned descriptor exactly once.
func (s *Socket) Close() error {
	if s.fd == noFD {
		return nil
	}
	fd := s.fd
	s.fd = noFD
	if err := unix.Close(fd); err != nil {
		return liberr.FromErrno(liberr.UnknownError, err)
	}
	return nil
}

// ClientSocket is a Socket that additionally offers Connect.
type ClientSocket struct {
	Socket
}

// NewClient creates a fresh, unconnected ClientSocket.
func NewClient() (*ClientSocket, error) {
	s, err := NewStream()
	if err != nil {
		return nil, err
	}
	return &ClientSocket{Socket: *s}, nil
}

// Connect connects to address:port.
func (c *ClientSocket) Connect(address string, port int) error {
	addr := &unix.SockaddrInet4{Port: port}
	ip, err := parseIPv4(address)
	if err != nil {
		return liberr.New(liberr.UnknownError, "invalid address", err)
	}
	addr.Addr = ip

	if err := unix.Connect(c.fd, addr); err != nil {
		return liberr.FromErrno(liberr.UnknownError, err)
	}
	return nil
}

// ServerSocket is a Socket with SO_REUSEADDR set at construction, plus
// Listen/Accept.
type ServerSocket struct {
	Socket
}

// NewServer creates a fresh ServerSocket with SO_REUSEADDR already set.
func NewServer() (*ServerSocket, error) {
	s, err := NewStream()
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = s.Close()
		return nil, liberr.FromErrno(liberr.UnknownError, err)
	}
	return &ServerSocket{Socket: *s}, nil
}

// Listen binds to 0.0.0.0:port and starts listening with the given
// backlog.
func (s *ServerSocket) Listen(port int, backlog int) error {
	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(s.fd, addr); err != nil {
		return liberr.FromErrno(liberr.UnknownError, err)
	}
	if err := unix.Listen(s.fd, backlog); err != nil {
		return liberr.FromErrno(liberr.UnknownError, err)
	}
	return nil
}

// Accept accepts one pending connection. On a listener put in
// non-blocking mode it returns unix.EWOULDBLOCK via the wrapped errno
// when none is pending. The accepted Socket is in blocking mode.
func (s *ServerSocket) Accept() (*Socket, error) {
	fd, _, err := unix.Accept(s.fd)
	if err != nil {
		return nil, liberr.FromErrno(liberr.UnknownError, err)
	}
	return &Socket{fd: fd}, nil
}

func parseIPv4(address string) (ip [4]byte, err error) {
	parsed := net.ParseIP(address)
	v4 := parsed.To4()
	if v4 == nil {
		return ip, liberr.New(liberr.UnknownError, "malformed IPv4 address: "+address)
	}
	copy(ip[:], v4)
	return ip, nil
}
