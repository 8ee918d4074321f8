package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quilldev/quill-client/internal/config"
	"github.com/quilldev/quill-client/internal/hostnames"
	"github.com/quilldev/quill-client/internal/iface"
	"github.com/quilldev/quill-client/internal/observability"
	"github.com/quilldev/quill-client/internal/protocol"
	"github.com/rs/zerolog"
)

// ResetEvent is emitted when I/O on a live socket fails in a way that calls
// for a reconnect.
type ResetEvent struct {
	Generation uuid.UUID
	Err        error
}

// handle is one socket slot. A new handle, with a new generation, replaces
// the old one before every dial and after every close or failure, so a
// socket that errored is never touched again.
type handle struct {
	id     uuid.UUID
	conn   net.Conn
	failed bool
}

func newHandle() *handle {
	return &handle{id: uuid.New()}
}

// queuedWrite is bound to the handle that was live when it was queued.
type queuedWrite struct {
	gen  uuid.UUID
	data string
}

// Connection owns a single TCP socket and its lifecycle state.
type Connection struct {
	config   *config.Config
	dialer   iface.Dialer
	reporter iface.Reporter
	logger   zerolog.Logger

	// mu guards every field below it, and is held across each state
	// transition. The dial itself runs unlocked while state is Connecting.
	mu      sync.Mutex
	state   State
	sock    *handle
	host    string
	port    int
	changed chan struct{}
	closed  bool

	// writeMu keeps lines from interleaving on the wire.
	writeMu  sync.Mutex
	outgoing chan queuedWrite
	resets   chan ResetEvent
}

// New creates a disconnected Connection. A nil dialer selects a plain
// net.Dialer and a nil reporter discards reports.
func New(cfg *config.Config, dialer iface.Dialer, reporter iface.Reporter, logger zerolog.Logger) *Connection {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	if reporter == nil {
		reporter = observability.NopReporter{}
	}
	queueSize := cfg.WriteQueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Connection{
		config:   cfg,
		dialer:   dialer,
		reporter: reporter,
		logger:   logger.With().Str("component", "conn").Logger(),
		state:    Disconnected,
		sock:     newHandle(),
		changed:  make(chan struct{}),
		outgoing: make(chan queuedWrite, queueSize),
		resets:   make(chan ResetEvent, 8),
	}
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Remote returns the host and port of the last successful dial.
func (c *Connection) Remote() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.host, c.port
}

// Generation identifies the current socket handle.
func (c *Connection) Generation() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.id
}

// IsCurrent reports whether gen still names the live socket handle.
func (c *Connection) IsCurrent(gen uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.id == gen
}

// Changed returns a channel that is closed on the next state transition.
func (c *Connection) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// Resets delivers one event per failed socket handle.
func (c *Connection) Resets() <-chan ResetEvent {
	return c.resets
}

// WaitFor blocks until the state satisfies ok or ctx is done.
func (c *Connection) WaitFor(ctx context.Context, ok func(State) bool) (State, error) {
	for {
		c.mu.Lock()
		state, changed := c.state, c.changed
		c.mu.Unlock()
		if ok(state) {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-changed:
		}
	}
}

// WaitState blocks until the state equals want or ctx is done.
func (c *Connection) WaitState(ctx context.Context, want State) error {
	_, err := c.WaitFor(ctx, func(s State) bool { return s == want })
	return err
}

// Connect dials host:port if the connection is Disconnected. It blocks for at
// most the configured dial timeout. Calling it in any other state is a no-op;
// ErrConnectInProgress is returned while another dial is running.
func (c *Connection) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch c.state {
	case Connecting:
		c.mu.Unlock()
		return ErrConnectInProgress
	case Connected:
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(Connecting)
	c.closeSocketLocked()
	sock := c.sock
	c.mu.Unlock()

	addr := hostnames.DialAddr(host, port)
	c.logger.Info().Str("addr", addr).Str("generation", sock.id.String()).Msg("Attempting to connect")

	dialCtx := ctx
	if timeout := c.config.DialTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	netConn, err := c.dialer.DialContext(dialCtx, "tcp", addr)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil && c.closed {
		_ = netConn.Close()
		err = ErrClosed
	}
	if err != nil {
		c.closeSocketLocked()
		c.setStateLocked(Disconnected)
		c.logger.Warn().Err(err).Str("addr", addr).Msg("Failed to connect")
		c.reporter.Report(fmt.Sprintf("connect to %s failed: %v", addr, err))
		return fmt.Errorf("connect to %s: %w", addr, err)
	}

	sock.conn = netConn
	c.host, c.port = host, port
	c.setStateLocked(Connected)
	c.logger.Info().Str("addr", addr).Str("generation", sock.id.String()).Msg("Connection is now active")
	return nil
}

// ConnectAsync runs Connect on its own goroutine so the caller never waits
// on a slow dial.
func (c *Connection) ConnectAsync(host string, port int) {
	go func() {
		err := c.Connect(context.Background(), host, port)
		if errors.Is(err, ErrConnectInProgress) {
			c.logger.Debug().Msg("Connect skipped, dial already in progress")
		}
	}()
}

// WriteSync writes data to the socket on the caller's goroutine. It is a
// no-op when data is empty, the connection is not Connected, or the live
// socket has already failed.
func (c *Connection) WriteSync(data string) error {
	return c.writeTo(uuid.Nil, data)
}

// writeTo writes data to the handle named by gen, or to whatever handle is
// live when gen is uuid.Nil.
func (c *Connection) writeTo(gen uuid.UUID, data string) error {
	if data == "" {
		return nil
	}

	c.mu.Lock()
	if c.state != Connected || c.sock.failed || (gen != uuid.Nil && c.sock.id != gen) {
		c.mu.Unlock()
		return nil
	}
	sock := c.sock
	netConn := sock.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	if timeout := c.config.WriteTimeout(); timeout > 0 {
		_ = netConn.SetWriteDeadline(time.Now().Add(timeout))
	}
	_, err := io.WriteString(netConn, data)
	c.writeMu.Unlock()

	if err == nil {
		return nil
	}
	return c.handleWriteError(sock, err)
}

// WriteLineSync is WriteSync with a trailing newline.
func (c *Connection) WriteLineSync(data string) error {
	return c.WriteSync(data + "\n")
}

// Write queues data for the writer goroutine. Queued writes reach the wire
// in the order they were queued, and only on the socket that was live when
// they were queued. Writes while not Connected are dropped.
func (c *Connection) Write(data string) {
	if data == "" {
		return
	}
	c.mu.Lock()
	if c.state != Connected || c.sock.failed {
		c.mu.Unlock()
		return
	}
	gen := c.sock.id
	c.mu.Unlock()

	select {
	case c.outgoing <- queuedWrite{gen: gen, data: data}:
	default:
		c.logger.Warn().Int("bytes", len(data)).Msg("Write queue is full. Dropping write.")
	}
}

// WriteLine queues data followed by a newline.
func (c *Connection) WriteLine(data string) {
	c.Write(data + "\n")
}

// RunWriter drains the write queue until ctx is done.
func (c *Connection) RunWriter(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case w := <-c.outgoing:
			if !c.IsCurrent(w.gen) {
				c.logger.Debug().Int("bytes", len(w.data)).Str("generation", w.gen.String()).Msg("Dropping write queued for a replaced socket")
				continue
			}
			if err := c.writeTo(w.gen, w.data); err != nil {
				c.logger.Debug().Err(err).Msg("Queued write failed")
			}
		}
	}
}

// ReadChunk reads whatever the socket delivers next into p. It also returns
// the generation the bytes came from, so callers can drop partial frames
// when the socket is replaced. ErrClosed means the socket was closed
// locally; any other error has already been reported as a reset.
func (c *Connection) ReadChunk(p []byte) (int, uuid.UUID, error) {
	c.mu.Lock()
	if c.state != Connected || c.sock.failed {
		c.mu.Unlock()
		return 0, uuid.Nil, ErrNotConnected
	}
	sock := c.sock
	netConn := sock.conn
	c.mu.Unlock()

	n, err := netConn.Read(p)
	if err == nil {
		return n, sock.id, nil
	}
	if !c.IsCurrent(sock.id) {
		return n, sock.id, ErrClosed
	}
	if isTimeout(err) {
		return n, sock.id, err
	}
	c.logger.Warn().Err(err).Str("generation", sock.id.String()).Msg("Read failed")
	c.signalReset(sock, err)
	return n, sock.id, fmt.Errorf("read: %w", err)
}

// Disconnect ends a Connected session: it sends the end-of-session marker
// (best effort), closes the socket and returns to Disconnected.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	netConn, sendMarker := c.detachLocked()
	c.mu.Unlock()
	c.endSession(netConn, sendMarker)
}

// Close disconnects and refuses every later Connect.
func (c *Connection) Close() {
	c.mu.Lock()
	c.closed = true
	netConn, sendMarker := c.detachLocked()
	if netConn == nil && c.state == Disconnected {
		c.closeSocketLocked()
	}
	c.mu.Unlock()
	c.endSession(netConn, sendMarker)
}

// detachLocked moves a Connected connection to Disconnected behind a fresh
// handle and hands back the old socket, which nothing else will touch again.
// It returns nil when there was no session to end.
func (c *Connection) detachLocked() (net.Conn, bool) {
	if c.state != Connected {
		return nil, false
	}
	old := c.sock
	c.sock = newHandle()
	c.setStateLocked(Disconnected)
	c.logger.Info().Str("host", c.host).Int("port", c.port).Msg("Disconnected")
	return old.conn, !old.failed
}

// endSession runs outside mu: the marker write may wait on a slow writer.
func (c *Connection) endSession(netConn net.Conn, sendMarker bool) {
	if netConn == nil {
		return
	}
	if sendMarker {
		c.writeMu.Lock()
		_ = netConn.SetWriteDeadline(time.Now().Add(c.endSessionTimeout()))
		if _, err := io.WriteString(netConn, protocol.EncodeLine(protocol.NamespaceLocal, protocol.TagEndSession, "")); err != nil {
			c.logger.Debug().Err(err).Msg("End-of-session marker not sent")
		}
		c.writeMu.Unlock()
	}
	_ = netConn.Close()
}

func (c *Connection) endSessionTimeout() time.Duration {
	if timeout := c.config.WriteTimeout(); timeout > 0 && timeout < time.Second {
		return timeout
	}
	return time.Second
}

// closeSocketLocked closes the current socket, if any, and installs a fresh
// unconnected handle. Close errors are ignored.
func (c *Connection) closeSocketLocked() {
	if c.sock != nil && c.sock.conn != nil {
		_ = c.sock.conn.Close()
	}
	c.sock = newHandle()
}

func (c *Connection) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.logger.Debug().Stringer("from", c.state).Stringer("to", s).Msg("State transition")
	c.state = s
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Connection) handleWriteError(sock *handle, err error) error {
	if !c.IsCurrent(sock.id) {
		return ErrClosed
	}
	if IsReset(err) || c.config.WriteErrorPolicy == config.WriteErrorReconnect {
		c.logger.Warn().Err(err).Str("generation", sock.id.String()).Msg("Write failed, connection lost")
		c.signalReset(sock, err)
		return fmt.Errorf("write: %w", err)
	}
	c.logger.Error().Err(err).Msg("Write failed")
	c.reporter.Report(fmt.Sprintf("write failed: %v", err))
	return fmt.Errorf("write: %w", err)
}

// signalReset emits at most one ResetEvent per handle.
func (c *Connection) signalReset(sock *handle, err error) {
	c.mu.Lock()
	if c.sock != sock || sock.failed {
		c.mu.Unlock()
		return
	}
	sock.failed = true
	c.mu.Unlock()

	select {
	case c.resets <- ResetEvent{Generation: sock.id, Err: err}:
	default:
		c.logger.Warn().Str("generation", sock.id.String()).Msg("Reset channel is full. Dropping reset event.")
	}
}
