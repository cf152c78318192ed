package executor

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/provedorpro/subsync/pkg/fault"
	"github.com/provedorpro/subsync/pkg/log"
	"github.com/provedorpro/subsync/pkg/session"
	"github.com/provedorpro/subsync/pkg/wire"
)

// DefaultCommandTimeout bounds one command round trip.
const DefaultCommandTimeout = 10 * time.Second

// ErrExecutorClosed indicates the executor has been shut down.
var ErrExecutorClosed = errors.New("executor closed")

// Result is a successful command outcome.
type Result struct {
	// CorrelationID identifies the command in logs.
	CorrelationID string

	// Records holds query results, if any.
	Records []map[string]string

	// Message is the device's informational message, if any.
	Message string
}

// First returns the first record, or nil when there is none.
func (r *Result) First() map[string]string {
	if len(r.Records) == 0 {
		return nil
	}
	return r.Records[0]
}

// job is one queued command with its reply channel.
type job struct {
	sess    *session.Session
	cmd     wire.Command
	timeout time.Duration
	done    chan outcome
}

type outcome struct {
	res *Result
	err error
}

// Executor runs commands one at a time in FIFO order.
type Executor struct {
	manager *session.Manager
	logger  log.Logger

	mu      sync.Mutex
	timeout time.Duration

	queue chan *job

	closeOnce sync.Once
	closedCh  chan struct{}
	wg        sync.WaitGroup
}

// New creates an executor bound to the session manager. The manager is
// needed to tear sessions down when a command times out.
func New(manager *session.Manager, logger log.Logger) *Executor {
	e := &Executor{
		manager:  manager,
		logger:   logger,
		timeout:  DefaultCommandTimeout,
		queue:    make(chan *job),
		closedCh: make(chan struct{}),
	}
	e.wg.Add(1)
	go e.worker()
	return e
}

// SetTimeout sets the default per-command timeout.
func (e *Executor) SetTimeout(timeout time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeout = timeout
}

// defaultTimeout returns the configured per-command timeout.
func (e *Executor) defaultTimeout() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeout
}

// Close shuts the executor down. Commands already dequeued finish;
// queued callers receive ErrExecutorClosed.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		close(e.closedCh)
	})
	e.wg.Wait()
}

// Execute runs one command with the default timeout.
func (e *Executor) Execute(ctx context.Context, sess *session.Session, cmd wire.Command) (*Result, error) {
	return e.ExecuteTimeout(ctx, sess, cmd, e.defaultTimeout())
}

// ExecuteTimeout runs one command with an explicit timeout.
//
// If ctx is cancelled after the command was enqueued, the command still
// executes against the device; only the caller's wait is abandoned.
func (e *Executor) ExecuteTimeout(ctx context.Context, sess *session.Session, cmd wire.Command, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	j := &job{
		sess:    sess,
		cmd:     cmd,
		timeout: timeout,
		done:    make(chan outcome, 1),
	}

	select {
	case e.queue <- j:
	case <-e.closedCh:
		return nil, ErrExecutorClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case out := <-j.done:
		return out.res, out.err
	case <-e.closedCh:
		return nil, ErrExecutorClosed
	case <-ctx.Done():
		// The command still runs to completion on the worker; the reply
		// stays attributed to it and the queue stays in sync.
		return nil, ctx.Err()
	}
}

// worker is the sole writer to the session transport.
func (e *Executor) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.closedCh:
			return
		case j := <-e.queue:
			res, err := e.run(j)
			j.done <- outcome{res: res, err: err}
		}
	}
}

// run executes one command synchronously.
func (e *Executor) run(j *job) (*Result, error) {
	if !j.sess.Alive() {
		return nil, fault.New(fault.KindTransport, "session is no longer alive")
	}

	correlationID := uuid.NewString()
	j.cmd.Seq = j.sess.NextSeq()

	data, err := wire.EncodeCommand(&j.cmd)
	if err != nil {
		return nil, fault.Wrap(fault.KindValidation, err, "encode command")
	}

	e.logCommand(j.sess, &j.cmd, nil, 0)
	started := time.Now()

	if err := j.sess.Send(data); err != nil {
		e.manager.Invalidate(j.sess, "command send failed")
		return nil, fault.Wrap(fault.KindTransport, err, "command send failed")
	}

	raw, err := j.sess.Receive(j.timeout)
	if err != nil {
		// The in-flight reply cannot be discarded from an ordered stream,
		// so any receive failure costs the session.
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			e.manager.Invalidate(j.sess, "command timeout")
			return nil, fault.Newf(fault.KindTimeout, "command %s %s exceeded %v", j.cmd.Operation, j.cmd.Path, j.timeout)
		}
		e.manager.Invalidate(j.sess, "command receive failed")
		return nil, fault.Wrap(fault.KindTransport, err, "command receive failed")
	}

	reply, err := wire.DecodeReply(raw)
	if err != nil {
		e.manager.Invalidate(j.sess, "malformed reply")
		return nil, fault.Wrap(fault.KindTransport, err, "malformed reply")
	}
	if reply.Seq != j.cmd.Seq {
		// Reply misattribution means the stream is desynchronized.
		e.manager.Invalidate(j.sess, "reply sequence mismatch")
		return nil, fault.Newf(fault.KindTransport, "reply seq %d does not match command seq %d", reply.Seq, j.cmd.Seq)
	}

	e.logCommand(j.sess, &j.cmd, &reply.Status, time.Since(started))

	if reply.Status.IsError() {
		return nil, statusFault(reply)
	}

	return &Result{
		CorrelationID: correlationID,
		Records:       reply.Records,
		Message:       reply.Message,
	}, nil
}

// statusFault maps a device-reported failure to the error taxonomy.
// Device failures are never retried here; retry policy belongs to callers.
func statusFault(reply *wire.Reply) error {
	msg := reply.Message
	if msg == "" {
		msg = reply.Status.String()
	}

	switch reply.Status {
	case wire.StatusMalformed:
		return fault.New(fault.KindValidation, msg)
	case wire.StatusNotAuthorized:
		return fault.New(fault.KindAuth, msg)
	case wire.StatusNotFound:
		return fault.New(fault.KindNotFound, msg)
	case wire.StatusDuplicate:
		return fault.New(fault.KindDuplicate, msg)
	case wire.StatusBusy:
		// Busy is transient; callers may retry on their next invocation.
		return fault.New(fault.KindTransport, msg)
	default:
		return fault.Newf(fault.KindUnknown, "device error: %s", msg)
	}
}

// logCommand emits a command event (send when status is nil, reply otherwise).
func (e *Executor) logCommand(sess *session.Session, cmd *wire.Command, status *wire.Status, roundTrip time.Duration) {
	if e.logger == nil {
		return
	}
	direction := log.DirectionOut
	if status != nil {
		direction = log.DirectionIn
	}
	e.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: sess.ID(),
		Direction:    direction,
		Layer:        log.LayerCommand,
		RemoteAddr:   sess.RemoteAddr(),
		Command: &log.CommandEvent{
			Seq:       cmd.Seq,
			Operation: cmd.Operation,
			Path:      cmd.Path,
			Target:    cmd.Attr(wire.AttrName),
			Status:    status,
			RoundTrip: roundTrip,
		},
	})
}
