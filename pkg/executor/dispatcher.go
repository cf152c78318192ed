package executor

import (
	"context"

	"github.com/provedorpro/subsync/pkg/fault"
	"github.com/provedorpro/subsync/pkg/session"
	"github.com/provedorpro/subsync/pkg/wire"
)

// Runner is the interface higher layers use to issue one device command.
// It is implemented by Dispatcher and by test fakes.
type Runner interface {
	Run(ctx context.Context, cmd wire.Command) (*Result, error)
}

// Dispatcher pairs session acquisition with command execution.
//
// Run makes exactly one attempt: acquire (fail-fast) then execute.
// Transport and timeout faults are surfaced to the caller, who retries
// the whole operation on its next invocation.
type Dispatcher struct {
	sessions *session.Manager
	exec     *Executor
}

// NewDispatcher creates a dispatcher over the session manager and executor.
func NewDispatcher(sessions *session.Manager, exec *Executor) *Dispatcher {
	return &Dispatcher{sessions: sessions, exec: exec}
}

// Run acquires the live session and executes one command on it.
func (d *Dispatcher) Run(ctx context.Context, cmd wire.Command) (*Result, error) {
	sess, err := d.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return d.exec.Execute(ctx, sess, cmd)
}

// Identity queries the device identity. Used for health checks and the
// operator test-connection endpoint.
func (d *Dispatcher) Identity(ctx context.Context) (string, error) {
	res, err := d.Run(ctx, wire.Command{
		Operation: wire.OpQuery,
		Path:      wire.PathIdentity,
	})
	if err != nil {
		return "", err
	}
	rec := res.First()
	if rec == nil {
		return "", fault.New(fault.KindTransport, "identity query returned no record")
	}
	return rec[wire.AttrName], nil
}

// Compile-time interface satisfaction check.
var _ Runner = (*Dispatcher)(nil)
