package devmock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provedorpro/subsync/pkg/wire"
)

func TestApplyTableSemantics(t *testing.T) {
	d := New("router-lab")

	add := &wire.Command{Seq: 1, Operation: wire.OpAdd, Path: wire.PathCredential,
		Attributes: map[string]string{wire.AttrName: "joao123", wire.AttrService: "pppoe"}}
	require.Equal(t, wire.StatusOK, d.apply(add).Status)

	rec, ok := d.Credential("joao123")
	require.True(t, ok)
	assert.Equal(t, "false", rec[wire.AttrDisabled], "new records start enabled")

	// Duplicate add is rejected.
	add.Seq = 2
	assert.Equal(t, wire.StatusDuplicate, d.apply(add).Status)

	// Disable flips the flag; enable flips it back.
	toggle := &wire.Command{Seq: 3, Operation: wire.OpDisable, Path: wire.PathCredential,
		Attributes: map[string]string{wire.AttrName: "joao123"}}
	require.Equal(t, wire.StatusOK, d.apply(toggle).Status)
	rec, _ = d.Credential("joao123")
	assert.Equal(t, "true", rec[wire.AttrDisabled])

	toggle = &wire.Command{Seq: 4, Operation: wire.OpEnable, Path: wire.PathCredential,
		Attributes: map[string]string{wire.AttrName: "joao123"}}
	require.Equal(t, wire.StatusOK, d.apply(toggle).Status)
	rec, _ = d.Credential("joao123")
	assert.Equal(t, "false", rec[wire.AttrDisabled])

	// Update on a missing record is not found.
	update := &wire.Command{Seq: 5, Operation: wire.OpUpdate, Path: wire.PathQueue,
		Attributes: map[string]string{wire.AttrName: "ghost"}}
	assert.Equal(t, wire.StatusNotFound, d.apply(update).Status)

	// Queues do not support enable/disable.
	badToggle := &wire.Command{Seq: 6, Operation: wire.OpDisable, Path: wire.PathQueue,
		Attributes: map[string]string{wire.AttrName: "joao123"}}
	assert.Equal(t, wire.StatusMalformed, d.apply(badToggle).Status)
}

func TestQueryMissIsEmptyOK(t *testing.T) {
	d := New("router-lab")

	q := &wire.Command{Seq: 1, Operation: wire.OpQuery, Path: wire.PathCredential,
		Attributes: map[string]string{wire.AttrName: "nobody"}}
	reply := d.apply(q)
	assert.Equal(t, wire.StatusOK, reply.Status)
	assert.Empty(t, reply.Records)
}

func TestScriptedFailureConsumedOnce(t *testing.T) {
	d := New("router-lab")
	d.FailNext(wire.PathIdentity, wire.OpQuery, wire.StatusBusy)

	q := &wire.Command{Seq: 1, Operation: wire.OpQuery, Path: wire.PathIdentity}
	assert.Equal(t, wire.StatusBusy, d.apply(q).Status)

	q.Seq = 2
	assert.Equal(t, wire.StatusOK, d.apply(q).Status)
}

func TestScriptedDelayConsumedOnce(t *testing.T) {
	d := New("router-lab")
	d.DelayNext(wire.PathIdentity, wire.OpQuery, 10*time.Millisecond)

	q := &wire.Command{Seq: 1, Operation: wire.OpQuery, Path: wire.PathIdentity}
	delay, ok := d.takeDelay(q)
	require.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, delay)

	_, ok = d.takeDelay(q)
	assert.False(t, ok)
}
