package executor_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provedorpro/subsync/internal/devmock"
	"github.com/provedorpro/subsync/pkg/executor"
	"github.com/provedorpro/subsync/pkg/fault"
	"github.com/provedorpro/subsync/pkg/session"
	"github.com/provedorpro/subsync/pkg/wire"
)

type harness struct {
	device *devmock.Device
	server *devmock.Server
	mgr    *session.Manager
	exec   *executor.Executor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	device := devmock.New("router-lab")
	device.AddUser("api", "hunter2")
	server, err := devmock.NewServer(device)
	require.NoError(t, err)

	mgr := session.NewManager(session.Config{
		Address:  server.Addr(),
		Username: "api",
		Password: "hunter2",
	})
	exec := executor.New(mgr, nil)

	t.Cleanup(func() {
		exec.Close()
		mgr.Close()
		server.Close()
	})
	return &harness{device: device, server: server, mgr: mgr, exec: exec}
}

func (h *harness) acquire(t *testing.T) *session.Session {
	t.Helper()
	s, err := h.mgr.Acquire(context.Background())
	require.NoError(t, err)
	return s
}

func TestExecuteIdentityQuery(t *testing.T) {
	h := newHarness(t)
	sess := h.acquire(t)

	res, err := h.exec.Execute(context.Background(), sess, wire.Command{
		Operation: wire.OpQuery,
		Path:      wire.PathIdentity,
	})
	require.NoError(t, err)
	require.NotNil(t, res.First())
	assert.Equal(t, "router-lab", res.First()[wire.AttrName])
}

func TestExecuteMapsDeviceErrors(t *testing.T) {
	tests := []struct {
		status wire.Status
		kind   fault.Kind
	}{
		{wire.StatusNotFound, fault.KindNotFound},
		{wire.StatusDuplicate, fault.KindDuplicate},
		{wire.StatusMalformed, fault.KindValidation},
		{wire.StatusBusy, fault.KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			h := newHarness(t)
			sess := h.acquire(t)

			h.device.FailNext(wire.PathCredential, wire.OpQuery, tt.status)
			_, err := h.exec.Execute(context.Background(), sess, wire.Command{
				Operation:  wire.OpQuery,
				Path:       wire.PathCredential,
				Attributes: map[string]string{wire.AttrName: "joao123"},
			})
			require.Error(t, err)
			assert.Equal(t, tt.kind, fault.KindOf(err))

			// Device-reported failures do not cost the session.
			assert.True(t, sess.Alive())
		})
	}
}

func TestExecuteTimeoutTearsDownSession(t *testing.T) {
	h := newHarness(t)
	sess := h.acquire(t)

	h.device.DelayNext(wire.PathIdentity, wire.OpQuery, 2*time.Second)

	_, err := h.exec.ExecuteTimeout(context.Background(), sess, wire.Command{
		Operation: wire.OpQuery,
		Path:      wire.PathIdentity,
	}, 100*time.Millisecond)

	require.Error(t, err)
	assert.Equal(t, fault.KindTimeout, fault.KindOf(err))
	assert.False(t, sess.Alive(), "timed-out session must be discarded")

	// The caller reacquires and retries with a fresh session.
	sess2 := h.acquire(t)
	assert.NotEqual(t, sess.ID(), sess2.ID())

	res, err := h.exec.Execute(context.Background(), sess2, wire.Command{
		Operation: wire.OpQuery,
		Path:      wire.PathIdentity,
	})
	require.NoError(t, err)
	assert.Equal(t, "router-lab", res.First()[wire.AttrName])
}

func TestConcurrentCallersAreFIFO(t *testing.T) {
	h := newHarness(t)
	sess := h.acquire(t)

	// Enqueue disables for distinct usernames from concurrent goroutines,
	// releasing them in a known order.
	const n = 8
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("user-%d", i)
		_, err := h.exec.Execute(context.Background(), sess, wire.Command{
			Operation:  wire.OpAdd,
			Path:       wire.PathCredential,
			Attributes: map[string]string{wire.AttrName: name, wire.AttrService: "pppoe"},
		})
		require.NoError(t, err)
	}
	h.device.ResetCommandLog()

	// Each goroutine waits for its turn token, submits, then hands the
	// token on. Submission order is deterministic; execution overlap is
	// the executor's problem.
	turns := make([]chan struct{}, n+1)
	for i := range turns {
		turns[i] = make(chan struct{})
	}
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			<-turns[i]
			close(turns[i+1])
			_, err := h.exec.Execute(context.Background(), sess, wire.Command{
				Operation:  wire.OpDisable,
				Path:       wire.PathCredential,
				Attributes: map[string]string{wire.AttrName: fmt.Sprintf("user-%d", i)},
			})
			assert.NoError(t, err)
		}(i)
	}
	close(turns[0])
	wg.Wait()

	// All commands applied, none lost or interleaved.
	cmds := h.device.Commands()
	require.Len(t, cmds, n)
	seen := make(map[string]bool)
	var prevSeq uint32
	for _, c := range cmds {
		assert.Equal(t, wire.OpDisable, c.Operation)
		seen[c.Attr(wire.AttrName)] = true
		// Seq is assigned at send time by the single worker: it must be
		// strictly increasing across the received stream.
		require.Greater(t, c.Seq, prevSeq)
		prevSeq = c.Seq
	}
	assert.Len(t, seen, n)
}

func TestAbandonedCallerDoesNotDesyncQueue(t *testing.T) {
	h := newHarness(t)
	sess := h.acquire(t)

	_, err := h.exec.Execute(context.Background(), sess, wire.Command{
		Operation:  wire.OpAdd,
		Path:       wire.PathCredential,
		Attributes: map[string]string{wire.AttrName: "joao123", wire.AttrService: "pppoe"},
	})
	require.NoError(t, err)

	// Slow command whose caller gives up immediately.
	h.device.DelayNext(wire.PathCredential, wire.OpDisable, 300*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = h.exec.Execute(ctx, sess, wire.Command{
		Operation:  wire.OpDisable,
		Path:       wire.PathCredential,
		Attributes: map[string]string{wire.AttrName: "joao123"},
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The abandoned command still executed, and the next command gets its
	// own reply, not the stale one.
	res, err := h.exec.Execute(context.Background(), sess, wire.Command{
		Operation: wire.OpQuery,
		Path:      wire.PathIdentity,
	})
	require.NoError(t, err)
	assert.Equal(t, "router-lab", res.First()[wire.AttrName])

	rec, ok := h.device.Credential("joao123")
	require.True(t, ok)
	assert.Equal(t, "true", rec[wire.AttrDisabled], "abandoned disable must still apply")
}

func TestExecuteOnDeadSession(t *testing.T) {
	h := newHarness(t)
	sess := h.acquire(t)
	h.mgr.Invalidate(sess, "test")

	_, err := h.exec.Execute(context.Background(), sess, wire.Command{
		Operation: wire.OpQuery,
		Path:      wire.PathIdentity,
	})
	require.Error(t, err)
	assert.Equal(t, fault.KindTransport, fault.KindOf(err))
}

func TestDispatcherIdentity(t *testing.T) {
	h := newHarness(t)
	d := executor.NewDispatcher(h.mgr, h.exec)

	name, err := d.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "router-lab", name)
}

func TestExecutorClosed(t *testing.T) {
	h := newHarness(t)
	sess := h.acquire(t)
	h.exec.Close()

	_, err := h.exec.Execute(context.Background(), sess, wire.Command{
		Operation: wire.OpQuery,
		Path:      wire.PathIdentity,
	})
	require.ErrorIs(t, err, executor.ErrExecutorClosed)
}
