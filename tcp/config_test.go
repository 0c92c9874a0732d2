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

package tcp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	liberr "github.com/sabouaram/reactor/errors"
	"github.com/sabouaram/reactor/tcp"
)

func TestConfigValidateRejectsEmptyAddress(t *testing.T) {
	err := (tcp.Config{}).Validate()
	assert.True(t, liberr.HasCode(err, liberr.CodeInvalidAddress))
}

func TestConfigValidateRejectsMissingPort(t *testing.T) {
	err := (tcp.Config{Address: "127.0.0.1"}).Validate()
	assert.True(t, liberr.HasCode(err, liberr.CodeInvalidAddress))
}

func TestConfigValidateRejectsOutOfRangePort(t *testing.T) {
	err := (tcp.Config{Address: "127.0.0.1:99999"}).Validate()
	assert.True(t, liberr.HasCode(err, liberr.CodeInvalidAddress))
}

func TestConfigValidateAcceptsWellFormedAddress(t *testing.T) {
	err := (tcp.Config{Address: "127.0.0.1:8080"}).Validate()
	assert.NoError(t, err)
}
