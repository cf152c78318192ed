package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/provedorpro/subsync/pkg/log"
)

// ErrConnectionClosed indicates the connection has been closed.
var ErrConnectionClosed = errors.New("connection closed")

// DefaultConnectTimeout bounds the TCP connect when the caller's context
// carries no deadline.
const DefaultConnectTimeout = 10 * time.Second

// ClientConfig configures a control-API client.
type ClientConfig struct {
	// MaxMessageSize is the maximum message size (default: 64KB).
	MaxMessageSize uint32

	// ConnectTimeout is the connection timeout (default: 10s).
	ConnectTimeout time.Duration
}

// Client dials the device control API.
type Client struct {
	config ClientConfig
}

// NewClient creates a new control-API client.
func NewClient(config ClientConfig) *Client {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	return &Client{config: config}
}

// Connect establishes a connection to the specified address.
func (c *Client) Connect(ctx context.Context, address string) (*Conn, error) {
	// Apply timeout from config if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	return NewConn(conn, c.config.MaxMessageSize), nil
}

// Conn is a framed connection to the device.
type Conn struct {
	conn    net.Conn
	framer  *Framer
	closeCh chan struct{}

	closeOnce sync.Once
	writeMu   sync.Mutex
	readMu    sync.Mutex
}

// NewConn wraps an established network connection with framing.
func NewConn(conn net.Conn, maxMessageSize uint32) *Conn {
	if maxMessageSize == 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &Conn{
		conn:    conn,
		framer:  NewFramerWithMaxSize(conn, maxMessageSize),
		closeCh: make(chan struct{}),
	}
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send sends a framed message to the device.
func (c *Conn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}

	return c.framer.WriteFrame(data)
}

// Receive receives a framed message from the device with timeout.
// A timeout of zero blocks until a frame arrives or the connection fails.
func (c *Conn) Receive(timeout time.Duration) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	select {
	case <-c.closeCh:
		return nil, ErrConnectionClosed
	default:
	}

	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}

	return c.framer.ReadFrame()
}

// Close closes the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

// SetLogger configures frame logging on the connection.
// Pass nil to disable logging.
func (c *Conn) SetLogger(logger log.Logger, connID string) {
	c.framer.SetLogger(logger, connID)
}
