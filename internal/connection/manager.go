package connection

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goparty/client/internal/notification"
)

var ErrClosed = errors.New("connection manager is closed")

const (
	DefaultReconnectDelay = 5 * time.Second

	writeWait = 10 * time.Second
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

type Config struct {
	// URL is the websocket endpoint, e.g. ws://host:port/ws.
	URL string
	// ReconnectDelay is the fixed delay before a reconnect attempt after an
	// abnormal closure. Zero means DefaultReconnectDelay.
	ReconnectDelay time.Duration
}

// Manager owns the socket lifecycle: connect, reconnect after abnormal
// closure, and user-initiated teardown. It is the only writer of the
// connection state; everything else observes it through State().
type Manager struct {
	cfg      Config
	dialer   *websocket.Dialer
	logger   *slog.Logger
	notifier notification.Notifier

	frames chan []byte

	mu        sync.Mutex
	conn      *websocket.Conn
	state     State
	reconnect *time.Timer
	closed    bool
}

func NewManager(cfg Config, notifier notification.Notifier, logger *slog.Logger) *Manager {
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}

	return &Manager{
		cfg:      cfg,
		dialer:   websocket.DefaultDialer,
		logger:   logger,
		notifier: notifier,
		frames:   make(chan []byte, 256),
	}
}

// Frames returns the inbound frame stream. Frames are delivered in arrival
// order and are meant for a single consumer.
func (m *Manager) Frames() <-chan []byte {
	return m.frames
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect establishes the socket. It is idempotent: a no-op while already
// connected or while a connect is in flight. A failed dial schedules a
// reconnect attempt, so callers may treat the error as informational.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	conn, _, err := m.dialer.DialContext(ctx, m.cfg.URL, nil)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		if conn != nil {
			conn.Close()
		}
		return ErrClosed
	}
	if err != nil {
		m.state = StateDisconnected
		m.scheduleReconnectLocked()
		m.logger.WarnContext(ctx, "websocket dial failed", "url", m.cfg.URL, "error", err)
		return err
	}

	m.conn = conn
	m.state = StateConnected
	m.logger.InfoContext(ctx, "websocket connected", "url", m.cfg.URL)
	go m.readPump(conn)

	return nil
}

// Send marshals v and writes it as one text frame. While not connected it
// triggers Connect as a side effect and drops the message: delivery is
// at-most-once and the caller re-issues on user action. Marshal and write
// failures are surfaced via the notifier and never returned as fatal.
func (m *Manager) Send(ctx context.Context, v any) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected {
		m.Connect(ctx)
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to marshal outbound message", "error", err)
		m.notifier.Notify(ctx, notification.Error("Error", "Failed to send message"))
		return nil
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		m.logger.ErrorContext(ctx, "failed to write outbound message", "error", err)
		m.notifier.Notify(ctx, notification.Error("Error", "Failed to send message"))
		return nil
	}

	return nil
}

// Close tears the connection down and suppresses any further reconnects.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	if m.conn != nil {
		m.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		m.conn.Close()
		m.conn = nil
	}
	m.state = StateDisconnected
}

func (m *Manager) readPump(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(conn, err)
			return
		}
		m.frames <- raw
	}
}

func (m *Manager) handleDisconnect(conn *websocket.Conn, err error) {
	conn.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != conn {
		// A stale pump from a previous connection.
		return
	}
	m.conn = nil
	m.state = StateDisconnected
	if m.closed {
		return
	}

	m.logger.Warn("websocket disconnected", "error", err)
	m.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the reconnect timer unless one is already
// pending. Caller must hold m.mu.
func (m *Manager) scheduleReconnectLocked() {
	if m.reconnect != nil {
		return
	}
	m.reconnect = time.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.mu.Lock()
		m.reconnect = nil
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}
		m.Connect(context.Background())
	})
}
