package conn

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/quilldev/quill-client/internal/config"
	"github.com/quilldev/quill-client/internal/iface"
	"github.com/quilldev/quill-client/internal/protocol"
	"github.com/rs/zerolog"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.DialTimeoutMillis = 500
	cfg.WriteTimeoutMillis = 500
	return cfg
}

func newTestConnection(cfg *config.Config, dialer *countingDialer, reporter *recordingReporter) *Connection {
	var d iface.Dialer
	if dialer != nil {
		d = dialer
	}
	var r iface.Reporter
	if reporter != nil {
		r = reporter
	}
	return New(cfg, d, r, zerolog.Nop())
}

type countingDialer struct {
	calls   atomic.Int32
	release chan struct{}
	dial    func(ctx context.Context, network, address string) (net.Conn, error)
}

func (d *countingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.calls.Add(1)
	if d.release != nil {
		select {
		case <-d.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return d.dial(ctx, network, address)
}

// pipeDialer hands out one end of a net.Pipe and keeps the other.
func pipeDialer(peers chan net.Conn) func(context.Context, string, string) (net.Conn, error) {
	return func(context.Context, string, string) (net.Conn, error) {
		client, server := net.Pipe()
		peers <- server
		return client, nil
	}
}

var errDiskOnFire = errors.New("write: disk on fire")

// failingWriteConn fails every write with a non-reset error.
type failingWriteConn struct {
	net.Conn
	err error
}

func (c *failingWriteConn) Write([]byte) (int, error) { return 0, c.err }

type recordingReporter struct {
	mu       sync.Mutex
	messages []string
	packets  []protocol.Packet
}

func (r *recordingReporter) Report(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recordingReporter) ReportPacket(p protocol.Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packets = append(r.packets, p)
}

func (r *recordingReporter) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// countingWriteConn counts writes that reach the socket.
type countingWriteConn struct {
	net.Conn
	writes atomic.Int32
}

func (c *countingWriteConn) Write(p []byte) (int, error) {
	c.writes.Add(1)
	return c.Conn.Write(p)
}
