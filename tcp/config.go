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
	"strconv"
	"strings"
	"time"

	liberr "github.com/sabouaram/reactor/errors"
)

// DefaultBacklog is the listen backlog spec.md §4.2 requires.
const DefaultBacklog = 128

// DefaultBufferSize bounds the per-readiness window the server carves out
// of whatever the kernel reports as ready, independent of a session's own
// buffer size.
const DefaultBufferSize = 64 * 1024

// Config describes a Server's listen address and connection housekeeping,
// grounded on the teacher's socket/config + socket/server/tcp config
// surface (sckcfg.Server in nabbar-golib's tests).
type Config struct {
	// Address is "host:port". Only the port is used: the listener binds
	// that port on all IPv4 interfaces (0.0.0.0), whatever the host part.
	Address string

	// Backlog is the listen backlog; DefaultBacklog if zero.
	Backlog int

	// BufferSize bounds the read window carved out per readiness event;
	// DefaultBufferSize if zero.
	BufferSize int

	// ConIdleTimeout, if non-zero, is reserved for a caller-driven idle
	// timer; the server itself does not enforce it (application-level
	// timeouts are built with reactor.Loop.RegisterTimer per spec.md §5).
	ConIdleTimeout time.Duration
}

// Validate checks the config is usable, returning a liberr.Error
// classified CodeInvalidAddress on failure.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return liberr.New(liberr.CodeInvalidAddress, "")
	}

	host, port, err := splitHostPort(c.Address)
	if err != nil {
		return liberr.New(liberr.CodeInvalidAddress, "", err)
	}
	_ = host

	if port <= 0 || port > 65535 {
		return liberr.New(liberr.CodeInvalidAddress, "port out of range")
	}

	return nil
}

func (c Config) backlog() int {
	if c.Backlog <= 0 {
		return DefaultBacklog
	}
	return c.Backlog
}

func (c Config) bufferSize() int {
	if c.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return c.BufferSize
}

func (c Config) port() (int, error) {
	_, port, err := splitHostPort(c.Address)
	return port, err
}

func splitHostPort(address string) (string, int, error) {
	idx := strings.LastIndex(address, ":")
	if idx < 0 {
		return "", 0, liberr.New(liberr.CodeInvalidAddress, "missing port in address "+address)
	}
	host := address[:idx]
	portStr := address[idx+1:]
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, liberr.New(liberr.CodeInvalidAddress, "invalid port in address "+address)
	}
	return host, port, nil
}
