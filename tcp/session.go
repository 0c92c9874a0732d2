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

// Package tcp is the generic TCP server template: it binds a listener
// into a reactor.Loop and, for each accepted peer, installs read, write
// and EOF callbacks that delegate every buffering and framing decision to
// a caller-supplied Session.
package tcp

// Session is the contract a per-connection object must satisfy. The
// server never inspects a session's buffering; it only asks for windows
// and reports back how much of each window was actually used.
//
// An empty window returned from RecvBuf means "I have no room; skip this
// readiness signal". An empty window from SendBuf means "I have nothing
// to send". The server never passes PostRecv/PostSend a count larger
// than the window length it just received.
type Session interface {
	// RecvBuf returns a writable window of at most maxLen bytes, or an
	// empty slice to decline this readiness signal.
	RecvBuf(maxLen int) []byte

	// PostRecv reports the sub-window of the last RecvBuf window that
	// was actually filled by the kernel.
	PostRecv(filled []byte)

	// SendBuf returns a readable window of at most maxLen bytes, or an
	// empty slice if there is nothing to send.
	SendBuf(maxLen int) []byte

	// PostSend reports how many bytes of the last SendBuf window were
	// actually sent.
	PostSend(sent int)

	// End is called exactly once, when the peer's EOF is observed.
	End()
}

// Factory constructs a new Session for each accepted connection. It
// replaces the teacher's virtual handle_connection() hook with a plain
// closure, per Design Notes §9 ("a server that takes a construction
// closure").
type Factory[S Session] func() S
