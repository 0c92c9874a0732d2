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

package errors_test

import (
	stderrors "errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	liberr "github.com/sabouaram/reactor/errors"
)

func TestNewUsesCodeMessageWhenMsgEmpty(t *testing.T) {
	err := liberr.New(liberr.CodeReservedID, "")
	assert.Equal(t, "id is reserved for the shutdown event", err.Error())
	assert.Equal(t, liberr.CodeReservedID, err.Code())
}

func TestFromErrnoPreservesErrno(t *testing.T) {
	err := liberr.FromErrno(liberr.UnknownError, syscall.EBADF)
	assert.Equal(t, syscall.EBADF, err.Errno())
}

func TestFromErrnoWrapsNonErrno(t *testing.T) {
	plain := stderrors.New("boom")
	err := liberr.FromErrno(liberr.UnknownError, plain)
	assert.Zero(t, err.Errno())
	assert.Equal(t, "boom", err.Error())
}

func TestAddChainsParents(t *testing.T) {
	parent := stderrors.New("root cause")
	err := liberr.New(liberr.CodeClosed, "", parent)
	assert.Contains(t, err.Error(), "root cause")
	assert.Equal(t, parent, err.Unwrap())
}

func TestHasCodeWalksChain(t *testing.T) {
	inner := liberr.New(liberr.CodeEntryNotFound, "")
	outer := liberr.New(liberr.CodeClosed, "", inner)
	assert.True(t, liberr.HasCode(outer, liberr.CodeClosed))
	assert.True(t, liberr.HasCode(outer, liberr.CodeEntryNotFound))
	assert.False(t, liberr.HasCode(outer, liberr.CodeReservedID))
}

func TestIsMatchesSameCode(t *testing.T) {
	a := liberr.New(liberr.CodeReservedID, "")
	b := liberr.New(liberr.CodeReservedID, "")
	assert.True(t, stderrors.Is(a, b))
}
