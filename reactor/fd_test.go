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

package reactor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/reactor/errors"
	"github.com/sabouaram/reactor/reactor"
)

const badFD = 99999

func TestRegisterFDReadOnBadFDFailsEBADF(t *testing.T) {
	loop := newTestLoop(t)

	err := loop.RegisterFDRead(badFD, func(int, reactor.IOResult) {})
	require.Error(t, err)

	e, ok := err.(liberr.Error)
	require.True(t, ok)
	assert.Equal(t, unix.EBADF, e.Errno())
}

func TestRegisterFDWriteOnBadFDFailsEBADF(t *testing.T) {
	loop := newTestLoop(t)

	err := loop.RegisterFDWrite(badFD, func(int, reactor.IOResult) {})
	require.Error(t, err)

	e, ok := err.(liberr.Error)
	require.True(t, ok)
	assert.Equal(t, unix.EBADF, e.Errno())
}

func TestRegisterFDEOFWithoutDirectionFails(t *testing.T) {
	loop := newTestLoop(t)

	err := loop.RegisterFDEOF(badFD, func(int, reactor.IOResult) {})
	require.Error(t, err)
	assert.True(t, liberr.HasCode(err, liberr.CodeEOFWithoutDirection))
}

func TestRemoveFDReadUnknownFDFails(t *testing.T) {
	loop := newTestLoop(t)

	err := loop.RemoveFDRead(badFD)
	require.Error(t, err)
	assert.True(t, liberr.HasCode(err, liberr.CodeEntryNotFound))
}

func TestRegisterFDReadThenEOFThenRemove(t *testing.T) {
	loop := newTestLoop(t)

	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK))
	defer func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	}()

	require.NoError(t, loop.RegisterFDRead(fds[0], func(int, reactor.IOResult) {}))
	require.NoError(t, loop.RegisterFDEOF(fds[0], func(int, reactor.IOResult) {}))

	require.NoError(t, loop.RemoveFDRead(fds[0]))
	require.NoError(t, loop.RemoveFDEOF(fds[0]))
}
