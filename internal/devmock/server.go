package devmock

import (
	"crypto/rand"
	"encoding/hex"
	"net"
	"sync"
	"time"

	"github.com/provedorpro/subsync/pkg/session"
	"github.com/provedorpro/subsync/pkg/transport"
	"github.com/provedorpro/subsync/pkg/wire"
)

// Server exposes a Device over TCP, speaking the real control protocol.
type Server struct {
	device *Device
	ln     net.Listener

	wg     sync.WaitGroup
	closed chan struct{}
}

// NewServer starts the mock device on an ephemeral loopback port.
func NewServer(device *Device) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		device: device,
		ln:     ln,
		closed: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr returns the listen address for clients.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close stops the listener and waits for connection handlers.
func (s *Server) Close() {
	select {
	case <-s.closed:
		return
	default:
	}
	close(s.closed)
	s.ln.Close()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// connState tracks per-connection handshake progress.
type connState struct {
	user          string
	nonce         []byte
	authenticated bool
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	framer := transport.NewFramer(conn)
	state := &connState{}

	for {
		select {
		case <-s.closed:
			return
		default:
		}

		data, err := framer.ReadFrame()
		if err != nil {
			return
		}

		cmd, err := wire.DecodeCommand(data)
		if err != nil {
			// Malformed frame: the device cannot attribute a seq, so it
			// drops the connection.
			return
		}

		reply := s.dispatch(state, cmd)

		if delay, ok := s.device.takeDelay(cmd); ok {
			select {
			case <-s.closed:
				return
			case <-time.After(delay):
			}
		}

		out, err := wire.EncodeReply(reply)
		if err != nil {
			return
		}
		if err := framer.WriteFrame(out); err != nil {
			return
		}
	}
}

// dispatch routes a command through the handshake gate.
func (s *Server) dispatch(state *connState, cmd *wire.Command) *wire.Reply {
	switch cmd.Path {
	case wire.PathAuthChallenge:
		return s.handleChallenge(state, cmd)
	case wire.PathAuthProof:
		return s.handleProof(state, cmd)
	}

	if !state.authenticated {
		return &wire.Reply{
			Seq:     cmd.Seq,
			Status:  wire.StatusNotAuthorized,
			Message: "authenticate first",
		}
	}
	return s.device.apply(cmd)
}

func (s *Server) handleChallenge(state *connState, cmd *wire.Command) *wire.Reply {
	user := cmd.Attr(wire.AttrUser)
	if _, ok := s.device.password(user); !ok {
		return &wire.Reply{Seq: cmd.Seq, Status: wire.StatusNotAuthorized, Message: "unknown user"}
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return &wire.Reply{Seq: cmd.Seq, Status: wire.StatusInternal}
	}
	state.user = user
	state.nonce = nonce
	state.authenticated = false

	return &wire.Reply{
		Seq:     cmd.Seq,
		Status:  wire.StatusOK,
		Records: []map[string]string{{wire.AttrNonce: hex.EncodeToString(nonce)}},
	}
}

func (s *Server) handleProof(state *connState, cmd *wire.Command) *wire.Reply {
	if state.nonce == nil {
		return &wire.Reply{Seq: cmd.Seq, Status: wire.StatusNotAuthorized, Message: "no pending challenge"}
	}

	password, ok := s.device.password(state.user)
	if !ok {
		return &wire.Reply{Seq: cmd.Seq, Status: wire.StatusNotAuthorized}
	}

	want := session.ComputeProof(password, state.nonce)
	if cmd.Attr(wire.AttrProof) != want {
		state.nonce = nil
		return &wire.Reply{Seq: cmd.Seq, Status: wire.StatusNotAuthorized, Message: "bad proof"}
	}

	state.authenticated = true
	state.nonce = nil
	return &wire.Reply{Seq: cmd.Seq, Status: wire.StatusOK}
}
