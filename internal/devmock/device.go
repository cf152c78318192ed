// Package devmock provides an in-memory access device for testing.
//
// The mock speaks the real wire protocol over TCP: length-prefixed CBOR
// frames, the challenge/proof handshake, and ordered replies. Tests
// point a session.Manager at Server.Addr() and exercise the full stack.
package devmock

import (
	"sync"
	"time"

	"github.com/provedorpro/subsync/pkg/wire"
)

// Device holds the mock's record tables and scripted behaviors.
type Device struct {
	mu sync.Mutex

	identity string
	users    map[string]string

	credentials map[string]map[string]string
	queues      map[string]map[string]string

	// commands logs every authenticated command in arrival order.
	commands []wire.Command

	// scripted one-shot behaviors, consumed in FIFO order per key
	failures map[behaviorKey][]wire.Status
	delays   map[behaviorKey][]time.Duration
}

type behaviorKey struct {
	path string
	op   wire.Operation
}

// New creates a mock device with the given identity name.
func New(identity string) *Device {
	return &Device{
		identity:    identity,
		users:       make(map[string]string),
		credentials: make(map[string]map[string]string),
		queues:      make(map[string]map[string]string),
		failures:    make(map[behaviorKey][]wire.Status),
		delays:      make(map[behaviorKey][]time.Duration),
	}
}

// AddUser registers an API user allowed to authenticate.
func (d *Device) AddUser(user, password string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user] = password
}

// password looks up a user's password.
func (d *Device) password(user string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.users[user]
	return p, ok
}

// SeedCredential preloads a credential record, as if provisioned
// earlier. The disabled flag defaults to "false".
func (d *Device) SeedCredential(name string, attrs map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := map[string]string{wire.AttrName: name, wire.AttrDisabled: "false"}
	for k, v := range attrs {
		rec[k] = v
	}
	d.credentials[name] = rec
}

// SeedQueue preloads a bandwidth-queue record.
func (d *Device) SeedQueue(name string, attrs map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := map[string]string{wire.AttrName: name}
	for k, v := range attrs {
		rec[k] = v
	}
	d.queues[name] = rec
}

// Credential returns a copy of the named credential record.
func (d *Device) Credential(name string) (map[string]string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return copyRecord(d.credentials[name])
}

// Queue returns a copy of the named queue record.
func (d *Device) Queue(name string) (map[string]string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return copyRecord(d.queues[name])
}

// Commands returns a snapshot of all authenticated commands received.
func (d *Device) Commands() []wire.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]wire.Command, len(d.commands))
	copy(out, d.commands)
	return out
}

// CommandCount counts received commands matching operation and path.
func (d *Device) CommandCount(op wire.Operation, path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.commands {
		if c.Operation == op && c.Path == path {
			n++
		}
	}
	return n
}

// ResetCommandLog clears the received-command log, keeping record tables.
func (d *Device) ResetCommandLog() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = nil
}

// FailNext scripts the next command matching path+op to fail with status.
// Multiple calls queue up in order.
func (d *Device) FailNext(path string, op wire.Operation, status wire.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := behaviorKey{path: path, op: op}
	d.failures[k] = append(d.failures[k], status)
}

// DelayNext scripts the next command matching path+op to stall before
// the reply is sent. Used to force command timeouts.
func (d *Device) DelayNext(path string, op wire.Operation, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := behaviorKey{path: path, op: op}
	d.delays[k] = append(d.delays[k], delay)
}

// takeDelay pops a scripted delay for the command, if any.
func (d *Device) takeDelay(cmd *wire.Command) (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := behaviorKey{path: cmd.Path, op: cmd.Operation}
	q := d.delays[k]
	if len(q) == 0 {
		return 0, false
	}
	d.delays[k] = q[1:]
	return q[0], true
}

// apply executes an authenticated command against the record tables.
func (d *Device) apply(cmd *wire.Command) *wire.Reply {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.commands = append(d.commands, *cmd)

	reply := &wire.Reply{Seq: cmd.Seq, Status: wire.StatusOK}

	// Scripted failure first: it models the device rejecting the command,
	// so no table mutation happens.
	k := behaviorKey{path: cmd.Path, op: cmd.Operation}
	if q := d.failures[k]; len(q) > 0 {
		d.failures[k] = q[1:]
		reply.Status = q[0]
		reply.Message = "scripted failure"
		return reply
	}

	switch cmd.Path {
	case wire.PathIdentity:
		if cmd.Operation != wire.OpQuery {
			reply.Status = wire.StatusMalformed
			reply.Message = "identity supports query only"
			return reply
		}
		reply.Records = []map[string]string{{wire.AttrName: d.identity}}
		return reply

	case wire.PathCredential:
		return d.applyTable(d.credentials, cmd, true)

	case wire.PathQueue:
		return d.applyTable(d.queues, cmd, false)

	default:
		reply.Status = wire.StatusMalformed
		reply.Message = "unknown path " + cmd.Path
		return reply
	}
}

// applyTable handles the record operations shared by both collections.
// Enable/disable only apply to credentials. Caller holds d.mu.
func (d *Device) applyTable(table map[string]map[string]string, cmd *wire.Command, allowToggle bool) *wire.Reply {
	reply := &wire.Reply{Seq: cmd.Seq, Status: wire.StatusOK}
	name := cmd.Attr(wire.AttrName)

	switch cmd.Operation {
	case wire.OpQuery:
		// A query that matches nothing succeeds with zero records.
		if rec, ok := table[name]; ok {
			c, _ := copyRecord(rec)
			reply.Records = []map[string]string{c}
		}

	case wire.OpAdd:
		if name == "" {
			reply.Status = wire.StatusMalformed
			reply.Message = "name is required"
			return reply
		}
		if _, ok := table[name]; ok {
			reply.Status = wire.StatusDuplicate
			reply.Message = "record already exists"
			return reply
		}
		rec := make(map[string]string, len(cmd.Attributes)+1)
		for k, v := range cmd.Attributes {
			rec[k] = v
		}
		if _, ok := rec[wire.AttrDisabled]; !ok {
			rec[wire.AttrDisabled] = "false"
		}
		table[name] = rec

	case wire.OpUpdate:
		rec, ok := table[name]
		if !ok {
			reply.Status = wire.StatusNotFound
			reply.Message = "no such record"
			return reply
		}
		for k, v := range cmd.Attributes {
			rec[k] = v
		}

	case wire.OpEnable, wire.OpDisable:
		if !allowToggle {
			reply.Status = wire.StatusMalformed
			reply.Message = "collection does not support enable/disable"
			return reply
		}
		rec, ok := table[name]
		if !ok {
			reply.Status = wire.StatusNotFound
			reply.Message = "no such record"
			return reply
		}
		if cmd.Operation == wire.OpDisable {
			rec[wire.AttrDisabled] = "true"
		} else {
			rec[wire.AttrDisabled] = "false"
		}
	}

	return reply
}

func copyRecord(rec map[string]string) (map[string]string, bool) {
	if rec == nil {
		return nil, false
	}
	out := make(map[string]string, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, true
}
