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
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/reactor/reactor"
	"github.com/sabouaram/reactor/tcp"
)

// incrementSession increments every received byte and echoes it back,
// the same seed scenario cmd/echoserver wires up for real use.
type incrementSession struct {
	outbuf []byte
	ended  int32
}

func newIncrementSession() *incrementSession { return &incrementSession{} }

func (s *incrementSession) RecvBuf(maxLen int) []byte {
	if len(s.outbuf) > 0 {
		return nil
	}
	return make([]byte, maxLen)
}

func (s *incrementSession) PostRecv(filled []byte) {
	if len(filled) == 0 {
		return
	}
	out := make([]byte, len(filled))
	for i, b := range filled {
		out[i] = b + 1
	}
	s.outbuf = out
}

func (s *incrementSession) SendBuf(maxLen int) []byte {
	if len(s.outbuf) == 0 {
		return nil
	}
	if maxLen > len(s.outbuf) {
		maxLen = len(s.outbuf)
	}
	return s.outbuf[:maxLen]
}

func (s *incrementSession) PostSend(sent int) {
	s.outbuf = s.outbuf[sent:]
}

func (s *incrementSession) End() {
	atomic.StoreInt32(&s.ended, 1)
}

func freeAddr() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

var _ = Describe("tcp.Server", func() {
	var (
		loop *reactor.Loop
		wg   sync.WaitGroup
	)

	BeforeEach(func() {
		var err error
		loop, err = reactor.New(nil)
		Expect(err).NotTo(HaveOccurred())

		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Run()
		}()
	})

	AfterEach(func() {
		Expect(loop.Shutdown()).To(Succeed())
		wg.Wait()
		_ = loop.Close()
	})

	It("echoes each byte incremented by one, end to end", func() {
		addr := freeAddr()
		srv, err := tcp.New(loop, tcp.Config{Address: addr}, newIncrementSession, nil)
		Expect(err).NotTo(HaveOccurred())

		srv.Start()
		Eventually(srv.IsRunning).Should(BeTrue())

		conn, err := net.DialTimeout("tcp", addr, time.Second)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = conn.Close() }()

		payload := []byte("abc")
		_, err = conn.Write(payload)
		Expect(err).NotTo(HaveOccurred())

		reply := make([]byte, len(payload))
		Expect(conn.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())
		_, err = readFull(conn, reply)
		Expect(err).NotTo(HaveOccurred())

		Expect(reply).To(Equal([]byte("bcd")))
		Expect(srv.Close()).To(Succeed())
	})

	It("tracks open connections until the peer disconnects", func() {
		addr := freeAddr()
		srv, err := tcp.New(loop, tcp.Config{Address: addr}, newIncrementSession, nil)
		Expect(err).NotTo(HaveOccurred())
		srv.Start()
		Eventually(srv.IsRunning).Should(BeTrue())

		conn, err := net.DialTimeout("tcp", addr, time.Second)
		Expect(err).NotTo(HaveOccurred())

		Eventually(srv.OpenConnections).Should(BeEquivalentTo(1))

		Expect(conn.Close()).To(Succeed())
		Eventually(srv.OpenConnections, 2*time.Second).Should(BeEquivalentTo(0))

		Expect(srv.Close()).To(Succeed())
	})

	It("supports shutdown from a goroutine other than the loop's own", func() {
		done := make(chan struct{})
		go func() {
			defer close(done)
			Expect(loop.Shutdown()).To(Succeed())
		}()

		Eventually(done, time.Second).Should(BeClosed())
	})
})

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, fmt.Errorf("read: %w", err)
		}
	}
	return total, nil
}
