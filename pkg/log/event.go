package log

import (
	"time"

	"github.com/provedorpro/subsync/pkg/wire"
)

// Event represents a protocol log event captured at any layer.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time

	// ConnectionID uniquely identifies the session (UUID).
	ConnectionID string

	// Direction indicates message flow.
	Direction Direction

	// Layer where the event was captured.
	Layer Layer

	// RemoteAddr is the device address (host:port).
	RemoteAddr string

	// Type-specific payload (exactly one is set).
	Frame        *FrameEvent
	Command      *CommandEvent
	Connectivity *ConnectivityEvent
	Error        *ErrorEventData
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerSession is the session lifecycle layer.
	LayerSession Layer = 1
	// LayerCommand is the command execution layer.
	LayerCommand Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerSession:
		return "SESSION"
	case LayerCommand:
		return "COMMAND"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame traffic at the transport layer.
// Frame payloads are not recorded; credential material crosses this layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int
}

// CommandEvent captures a command/reply exchange at the command layer.
type CommandEvent struct {
	// Seq is the session-scoped correlation sequence.
	Seq uint32

	// Operation being performed.
	Operation wire.Operation

	// Path is the target collection.
	Path string

	// Target is the record name the command addresses, if any.
	Target string

	// Status is the reply status (reply events only).
	Status *wire.Status

	// RoundTrip is the duration from send to reply (reply events only).
	RoundTrip time.Duration
}

// ConnectivityState describes the device link as seen by the session manager.
type ConnectivityState uint8

const (
	// ConnectivityDown indicates no authenticated session.
	ConnectivityDown ConnectivityState = 0
	// ConnectivityUp indicates a live authenticated session.
	ConnectivityUp ConnectivityState = 1
)

// String returns the connectivity state name.
func (s ConnectivityState) String() string {
	switch s {
	case ConnectivityDown:
		return "DOWN"
	case ConnectivityUp:
		return "UP"
	default:
		return "UNKNOWN"
	}
}

// ConnectivityEvent captures an Up/Down transition of the device link.
type ConnectivityEvent struct {
	// State is the new connectivity state.
	State ConnectivityState

	// Reason for the change (if available).
	Reason string
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer

	// Message is the error message.
	Message string

	// Context describes what operation was being performed.
	Context string
}
