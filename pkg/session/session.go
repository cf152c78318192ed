package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/provedorpro/subsync/pkg/fault"
	"github.com/provedorpro/subsync/pkg/log"
	"github.com/provedorpro/subsync/pkg/transport"
)

// Default timing bounds.
const (
	// DefaultConnectTimeout bounds one connect attempt.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultHandshakeTimeout bounds each handshake round trip.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultIdleTimeout is how long a session may sit unused before it
	// is considered stale and replaced on the next Acquire.
	DefaultIdleTimeout = 5 * time.Minute
)

// Config configures the session manager.
type Config struct {
	// Address is the device control API address (host:port).
	Address string

	// Username and Password authenticate the control channel.
	// Password never appears in logs or events.
	Username string
	Password string

	// ConnectTimeout bounds the TCP connect (default 10s).
	ConnectTimeout time.Duration

	// HandshakeTimeout bounds each handshake round trip (default 10s).
	HandshakeTimeout time.Duration

	// IdleTimeout is the staleness bound for a cached session (default 5m).
	IdleTimeout time.Duration

	// MaxMessageSize caps frame sizes (default 64KB).
	MaxMessageSize uint32

	// Logger receives protocol events. Nil disables protocol logging.
	Logger log.Logger
}

// Session is one authenticated channel to the device.
// It is handed out by the Manager and shared by all callers; command
// serialization is the executor's job.
type Session struct {
	id   string
	conn *transport.Conn
	seq  atomic.Uint32

	mu           sync.Mutex
	lastActivity time.Time

	invalid atomic.Bool
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// NextSeq returns the next session-scoped command sequence (never 0).
func (s *Session) NextSeq() uint32 {
	return s.seq.Add(1)
}

// Send writes a framed message and records activity.
func (s *Session) Send(data []byte) error {
	if err := s.conn.Send(data); err != nil {
		return err
	}
	s.touch()
	return nil
}

// Receive reads a framed message with a deadline and records activity.
func (s *Session) Receive(timeout time.Duration) ([]byte, error) {
	data, err := s.conn.Receive(timeout)
	if err != nil {
		return nil, err
	}
	s.touch()
	return data, nil
}

// RemoteAddr returns the device address.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// Alive reports whether the session is still usable.
func (s *Session) Alive() bool {
	return !s.invalid.Load() && !s.conn.Closed()
}

// LastActivity returns the time of the last successful send or receive.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// markInvalid closes the underlying connection. Used by the Manager.
func (s *Session) markInvalid() {
	if s.invalid.CompareAndSwap(false, true) {
		s.conn.Close()
	}
}

// Manager owns the device control session. It keeps at most one live
// session and replaces it when it errors out or idles past the bound.
type Manager struct {
	cfg    Config
	client *transport.Client

	mu      sync.Mutex
	current *Session

	backoff *Backoff

	connMu       sync.Mutex
	connectivity log.ConnectivityState
	listeners    []func(state log.ConnectivityState, reason string)

	closed atomic.Bool
}

// NewManager creates a session manager for the configured device.
func NewManager(cfg Config) *Manager {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}

	return &Manager{
		cfg: cfg,
		client: transport.NewClient(transport.ClientConfig{
			MaxMessageSize: cfg.MaxMessageSize,
			ConnectTimeout: cfg.ConnectTimeout,
		}),
		backoff:      NewBackoff(),
		connectivity: log.ConnectivityDown,
	}
}

// ErrManagerClosed indicates the manager has been shut down.
var ErrManagerClosed = fault.New(fault.KindTransport, "session manager closed")

// Acquire returns the live session, establishing one if needed.
//
// Acquire is fail-fast: a transport failure is returned after a single
// attempt so the caller keeps control over its latency budget. Use
// AcquireWithRetry for the standard backoff loop. Auth failures are
// fatal and must never be retried.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.current; s != nil {
		if s.Alive() && time.Since(s.LastActivity()) < m.cfg.IdleTimeout {
			return s, nil
		}
		m.dropLocked(s, "stale session replaced")
	}

	s, err := m.connect(ctx)
	if err != nil {
		if fault.KindOf(err) != fault.KindAuth {
			m.backoff.Next()
		}
		return nil, err
	}

	m.current = s
	m.backoff.Reset()
	m.setConnectivity(log.ConnectivityUp, "session established")
	return s, nil
}

// AcquireWithRetry acquires a session, retrying transport failures with
// exponential backoff until the context is done. Auth and validation
// failures abort immediately.
func (m *Manager) AcquireWithRetry(ctx context.Context) (*Session, error) {
	for {
		s, err := m.Acquire(ctx)
		if err == nil {
			return s, nil
		}
		if !fault.KindOf(err).Retryable() {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fault.Wrap(fault.KindTransport, ctx.Err(), "acquire abandoned")
		case <-time.After(m.backoff.Peek()):
		}
	}
}

// connect performs one connect+handshake attempt.
func (m *Manager) connect(ctx context.Context) (*Session, error) {
	conn, err := m.client.Connect(ctx, m.cfg.Address)
	if err != nil {
		return nil, fault.Wrap(fault.KindTransport, err, "device connect failed")
	}

	s := &Session{
		id:           uuid.NewString(),
		conn:         conn,
		lastActivity: time.Now(),
	}
	if m.cfg.Logger != nil {
		conn.SetLogger(m.cfg.Logger, s.id)
	}

	if err := s.authenticate(m.cfg.Username, m.cfg.Password, m.cfg.HandshakeTimeout); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

// Invalidate tears down a session after a transport fault or command
// timeout. Safe to call with a session that was already replaced.
func (m *Manager) Invalidate(s *Session, reason string) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == s {
		m.dropLocked(s, reason)
		m.current = nil
	} else {
		s.markInvalid()
	}
}

// dropLocked invalidates the current session and emits Down.
// Caller holds m.mu.
func (m *Manager) dropLocked(s *Session, reason string) {
	s.markInvalid()
	m.setConnectivity(log.ConnectivityDown, reason)
}

// Backoff exposes the retry pacing state shared by callers.
func (m *Manager) Backoff() *Backoff {
	return m.backoff
}

// Connectivity returns the current device link state.
func (m *Manager) Connectivity() log.ConnectivityState {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	return m.connectivity
}

// OnConnectivityChange registers a listener for Up/Down transitions.
// Listeners are invoked synchronously and must not block.
func (m *Manager) OnConnectivityChange(fn func(state log.ConnectivityState, reason string)) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// setConnectivity records a transition and notifies listeners.
// Transitions to the current state are ignored.
func (m *Manager) setConnectivity(state log.ConnectivityState, reason string) {
	m.connMu.Lock()
	if m.connectivity == state {
		m.connMu.Unlock()
		return
	}
	m.connectivity = state
	listeners := make([]func(log.ConnectivityState, string), len(m.listeners))
	copy(listeners, m.listeners)
	m.connMu.Unlock()

	if m.cfg.Logger != nil {
		m.cfg.Logger.Log(log.Event{
			Timestamp:    time.Now(),
			Layer:        log.LayerSession,
			RemoteAddr:   m.cfg.Address,
			Connectivity: &log.ConnectivityEvent{State: state, Reason: reason},
		})
	}
	for _, fn := range listeners {
		fn(state, reason)
	}
}

// Close shuts the manager down and drops any live session.
func (m *Manager) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.dropLocked(m.current, "manager closed")
		m.current = nil
	}
}
