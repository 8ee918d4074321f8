// Package linetest provides a loopback line-protocol server for tests.
package linetest

import (
	"bufio"
	"net"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// Server accepts TCP connections and records every line it receives.
type Server struct {
	Host     string
	Port     int
	Accepted chan net.Conn
	Lines    chan string

	listener net.Listener
	accepts  atomic.Int32
}

// Start listens on an ephemeral loopback port. The listener is closed when
// the test ends.
func Start(t *testing.T) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	s := &Server{
		Host:     host,
		Port:     port,
		Accepted: make(chan net.Conn, 16),
		Lines:    make(chan string, 1024),
		listener: ln,
	}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *Server) serve() {
	for {
		c, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.accepts.Add(1)
		s.Accepted <- c
		go func(c net.Conn) {
			scanner := bufio.NewScanner(c)
			for scanner.Scan() {
				s.Lines <- scanner.Text()
			}
		}(c)
	}
}

// Accepts returns how many connections have been accepted so far.
func (s *Server) Accepts() int {
	return int(s.accepts.Load())
}

// Close stops accepting connections; the port becomes unreachable.
func (s *Server) Close() error {
	return s.listener.Close()
}

// UnusedPort returns a loopback port with nothing listening on it.
func UnusedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}
