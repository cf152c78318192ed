package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/provedorpro/subsync/pkg/fault"
	"github.com/provedorpro/subsync/pkg/wire"
)

// Credential proof parameters. Fixed by the device protocol; both sides
// must derive the same key.
const (
	ProofIterations = 4096
	ProofKeyLength  = 32
)

// ComputeProof derives the credential proof from the password and the
// device-issued nonce. Exported so the test harness can act as the device
// side of the handshake.
func ComputeProof(password string, nonce []byte) string {
	key := pbkdf2.Key([]byte(password), nonce, ProofIterations, ProofKeyLength, sha256.New)
	return hex.EncodeToString(key)
}

// authenticate runs the challenge/proof handshake on a fresh session.
//
// The device answers the challenge query with a per-connection nonce; the
// client replies with a PBKDF2 proof derived from the shared password.
// A NOT_AUTHORIZED reply is an AuthError: fatal, never retried.
func (s *Session) authenticate(username, password string, timeout time.Duration) error {
	nonce, err := s.requestChallenge(username, timeout)
	if err != nil {
		return err
	}

	reply, err := s.roundTrip(&wire.Command{
		Seq:        s.NextSeq(),
		Operation:  wire.OpQuery,
		Path:       wire.PathAuthProof,
		Attributes: map[string]string{wire.AttrProof: ComputeProof(password, nonce)},
	}, timeout)
	if err != nil {
		return err
	}

	switch reply.Status {
	case wire.StatusOK:
		return nil
	case wire.StatusNotAuthorized:
		return fault.New(fault.KindAuth, "device rejected credentials")
	default:
		return fault.Newf(fault.KindTransport, "unexpected handshake status %s", reply.Status)
	}
}

// requestChallenge asks the device for the authentication nonce.
func (s *Session) requestChallenge(username string, timeout time.Duration) ([]byte, error) {
	reply, err := s.roundTrip(&wire.Command{
		Seq:        s.NextSeq(),
		Operation:  wire.OpQuery,
		Path:       wire.PathAuthChallenge,
		Attributes: map[string]string{wire.AttrUser: username},
	}, timeout)
	if err != nil {
		return nil, err
	}

	if reply.Status == wire.StatusNotAuthorized {
		return nil, fault.New(fault.KindAuth, "device rejected user")
	}
	if reply.Status.IsError() {
		return nil, fault.Newf(fault.KindTransport, "challenge failed: %s", reply.Status)
	}

	rec := reply.First()
	if rec == nil {
		return nil, fault.New(fault.KindTransport, "challenge reply carried no nonce record")
	}
	nonce, err := hex.DecodeString(rec[wire.AttrNonce])
	if err != nil || len(nonce) == 0 {
		return nil, fault.Wrap(fault.KindTransport, err, "malformed challenge nonce")
	}
	return nonce, nil
}

// roundTrip sends one command and reads the ordered reply. Handshake
// commands run before the session is handed to the executor, so direct
// send/receive here cannot interleave with provisioning traffic.
func (s *Session) roundTrip(cmd *wire.Command, timeout time.Duration) (*wire.Reply, error) {
	data, err := wire.EncodeCommand(cmd)
	if err != nil {
		return nil, fault.Wrap(fault.KindValidation, err, "encode handshake command")
	}
	if err := s.Send(data); err != nil {
		return nil, fault.Wrap(fault.KindTransport, err, "handshake send failed")
	}

	raw, err := s.Receive(timeout)
	if err != nil {
		return nil, fault.Wrap(fault.KindTransport, err, "handshake receive failed")
	}
	reply, err := wire.DecodeReply(raw)
	if err != nil {
		return nil, fault.Wrap(fault.KindTransport, err, "malformed handshake reply")
	}
	if reply.Seq != cmd.Seq {
		return nil, fault.New(fault.KindTransport,
			fmt.Sprintf("handshake reply seq %d does not match command seq %d", reply.Seq, cmd.Seq))
	}
	return reply, nil
}
