package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quilldev/quill-client/internal/config"
	"github.com/quilldev/quill-client/internal/conn"
	"github.com/quilldev/quill-client/internal/hostnames"
	"github.com/quilldev/quill-client/internal/iface"
	"github.com/quilldev/quill-client/internal/observability"
	"github.com/quilldev/quill-client/internal/protocol"
	"github.com/rs/zerolog"
)

// TestLine is the free-text line written by WriteTest.
const TestLine = "test"

// Manager supervises one Connection: it reads and reports packets, sends
// keep-alives, and reconnects after the socket fails.
type Manager struct {
	conn     *conn.Connection
	config   *config.Config
	reporter iface.Reporter
	logger   zerolog.Logger
	backoff  BackoffConfig

	// Owned by the read loop.
	framer *protocol.Framer
	// Owned by the reconnect loop.
	rng *rand.Rand
}

// NewManager creates a manager for c. A nil reporter discards reports.
func NewManager(c *conn.Connection, cfg *config.Config, reporter iface.Reporter, logger zerolog.Logger) *Manager {
	if reporter == nil {
		reporter = observability.NopReporter{}
	}
	return &Manager{
		conn:     c,
		config:   cfg,
		reporter: reporter,
		logger:   logger.With().Str("component", "session").Logger(),
		backoff:  BackoffFromConfig(cfg.Reconnect),
		framer:   protocol.NewFramer(cfg.MaxFragmentBytes),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Connection returns the supervised connection.
func (m *Manager) Connection() *conn.Connection {
	return m.conn
}

// Connect starts a dial in the background.
func (m *Manager) Connect(host string, port int) {
	m.conn.ConnectAsync(host, port)
}

// Disconnect ends the session gracefully. It does not trigger a reconnect.
func (m *Manager) Disconnect() {
	m.conn.Disconnect()
}

// KeepAlive queues a keep-alive line if connected. It is a no-op otherwise.
func (m *Manager) KeepAlive() {
	if m.conn.State() != conn.Connected {
		return
	}
	m.conn.WriteLine(protocol.Encode(protocol.NamespaceLocal, protocol.TagKeepAlive, ""))
}

// WriteTest queues the free-text test line.
func (m *Manager) WriteTest() {
	m.conn.WriteLine(TestLine)
}

// Run drives the session until ctx is cancelled, then closes the connection
// and waits for every goroutine it started.
func (m *Manager) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(4)
	go func() {
		defer wg.Done()
		m.conn.RunWriter(ctx)
	}()
	go func() {
		defer wg.Done()
		m.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		m.reconnectLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		<-ctx.Done()
		// Unblocks a read in progress.
		m.conn.Close()
	}()

	if interval := m.config.KeepAliveInterval(); interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.every(ctx, interval, m.KeepAlive)
		}()
	}
	if interval := m.config.TestLineInterval(); interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.every(ctx, interval, m.WriteTest)
		}()
	}

	m.logger.Info().Msg("Session manager is running")
	wg.Wait()
	m.logger.Info().Msg("Session manager has stopped")
}

func (m *Manager) every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (m *Manager) readLoop(ctx context.Context) {
	bufPtr := conn.GetBuffer()
	defer conn.PutBuffer(bufPtr)
	buf := *bufPtr

	var generation uuid.UUID
	for ctx.Err() == nil {
		if !m.readOnce(ctx, buf, &generation) {
			return
		}
	}
}

// readOnce performs one read and dispatches what it got. It returns false
// when the loop should stop. A panic is logged and the loop continues.
func (m *Manager) readOnce(ctx context.Context, buf []byte, generation *uuid.UUID) (more bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Msg("Recovered from panic in read loop")
			more = true
		}
	}()

	if err := m.conn.WaitState(ctx, conn.Connected); err != nil {
		return false
	}
	changed := m.conn.Changed()

	n, gen, err := m.conn.ReadChunk(buf)
	if gen != uuid.Nil && gen != *generation {
		// Partial frames never carry over to a new socket.
		m.framer.Reset()
		*generation = gen
	}
	if n > 0 {
		m.dispatch(buf[:n])
	}
	if err != nil {
		if !errors.Is(err, conn.ErrClosed) && !errors.Is(err, conn.ErrNotConnected) {
			m.logger.Debug().Err(err).Msg("Read loop waiting for reconnect")
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (m *Manager) dispatch(chunk []byte) {
	for _, fragment := range m.framer.Feed(chunk) {
		p := protocol.Decode(fragment)
		if p.Malformed() {
			m.logger.Trace().Str("fragment", fragment).Msg("Dropping malformed packet")
			continue
		}
		m.reporter.ReportPacket(p)

		if p.Tag() == protocol.TagEndServer {
			m.logger.Info().Msg("Server ended the session")
			m.conn.Disconnect()
		}
	}
}

func (m *Manager) reconnectLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.conn.Resets():
			m.reconnect(ctx, ev)
		}
	}
}

// reconnect tears down the failed socket and redials the last address, up
// to the configured number of attempts. It reports whether the connection
// is up afterwards.
func (m *Manager) reconnect(ctx context.Context, ev conn.ResetEvent) bool {
	if !m.conn.IsCurrent(ev.Generation) {
		m.logger.Debug().Str("generation", ev.Generation.String()).Msg("Ignoring reset for a replaced socket")
		return false
	}

	host, port := m.conn.Remote()
	addr := hostnames.DialAddr(host, port)
	m.logger.Warn().Err(ev.Err).Str("addr", addr).Msg("Connection lost, reconnecting")
	m.reporter.Report(fmt.Sprintf("connection to %s lost: %v", addr, ev.Err))

	m.conn.Disconnect()

	attempts := m.config.Reconnect.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := NextBackoffDelay(m.backoff, attempt-1, m.rng)
			m.logger.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("Waiting before next reconnect attempt")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return false
			}
		}

		err := m.conn.Connect(ctx, host, port)
		switch {
		case errors.Is(err, conn.ErrClosed):
			return false
		case errors.Is(err, conn.ErrConnectInProgress):
			// Someone else is dialing; adopt their outcome.
			_, _ = m.conn.WaitFor(ctx, func(s conn.State) bool { return s != conn.Connecting })
		}

		if m.conn.State() == conn.Connected {
			m.logger.Info().Str("addr", addr).Int("attempt", attempt).Msg("Reconnected")
			m.reporter.Report(fmt.Sprintf("reconnected to %s", addr))
			return true
		}
	}

	m.logger.Error().Str("addr", addr).Int("attempts", attempts).Msg("Reconnect timed out")
	m.reporter.Report(fmt.Sprintf("reconnect to %s timed out after %d attempt(s)", addr, attempts))
	return false
}
