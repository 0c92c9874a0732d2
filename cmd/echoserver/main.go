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

// Command echoserver is a sample consumer of tcp.Server: each connected
// peer has every received byte incremented by one and echoed back, per
// the library's seed scenario for end-to-end byte framing.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	liblog "github.com/sabouaram/reactor/logger"
	"github.com/sabouaram/reactor/reactor"
	"github.com/sabouaram/reactor/tcp"
)

var (
	flagListen   string
	flagLogLevel string
)

func main() {
	cmd := &cobra.Command{
		Use:   "echoserver",
		Short: "run a byte-incrementing echo server over the reactor/tcp library",
		RunE:  run,
	}

	cmd.Flags().StringVar(&flagListen, "listen", "0.0.0.0:9000", "address to listen on")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "one of fatal, error, warn, info, debug")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	lvl := parseLevel(flagLogLevel)
	log := liblog.New(lvl)
	funcLog := func() liblog.Logger { return log }

	loop, err := reactor.New(funcLog)
	if err != nil {
		return fmt.Errorf("creating event loop: %w", err)
	}
	defer func() { _ = loop.Close() }()

	cfg := tcp.Config{Address: flagListen}
	srv, err := tcp.New(loop, cfg, newIncrementSession, funcLog)
	if err != nil {
		return fmt.Errorf("configuring server: %w", err)
	}

	srv.Start()
	if !srv.IsRunning() {
		return fmt.Errorf("server failed to start on %s", flagListen)
	}
	log.Entry(liblog.InfoLevel, "listening").FieldAdd("address", flagListen).Log()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run()
	}()

	<-sig
	log.Entry(liblog.InfoLevel, "shutting down").Log()
	_ = srv.Close()
	if err := loop.Shutdown(); err != nil {
		log.Entry(liblog.WarnLevel, "shutdown signal failed").ErrorAdd(err).Log()
	}
	wg.Wait()
	return nil
}

func parseLevel(s string) liblog.Level {
	switch s {
	case "fatal":
		return liblog.FatalLevel
	case "error":
		return liblog.ErrorLevel
	case "warn":
		return liblog.WarnLevel
	case "debug":
		return liblog.DebugLevel
	default:
		return liblog.InfoLevel
	}
}

// incrementSession is the seed-scenario 5 Session: it buffers whatever was
// last received, increments every byte by one, and makes that the next
// send window.
type incrementSession struct {
	pending []byte
	outbuf  []byte
}

func newIncrementSession() *incrementSession {
	return &incrementSession{}
}

func (s *incrementSession) RecvBuf(maxLen int) []byte {
	if len(s.outbuf) > 0 {
		// Still have an unsent reply; decline new reads until it drains.
		return nil
	}
	if maxLen > tcp.DefaultBufferSize {
		maxLen = tcp.DefaultBufferSize
	}
	s.pending = make([]byte, maxLen)
	return s.pending
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
	s.pending = nil
	s.outbuf = nil
}
