package wire

import (
	"strings"
	"testing"
)

func TestEncodeDecodeCommand(t *testing.T) {
	cmd := &Command{
		Seq:       7,
		Operation: OpAdd,
		Path:      PathCredential,
		Attributes: map[string]string{
			AttrName:     "joao123",
			AttrPassword: "s3cret",
			AttrService:  "pppoe",
			AttrComment:  "sub-42",
		},
	}

	data, err := EncodeCommand(cmd)
	if err != nil {
		t.Fatalf("EncodeCommand failed: %v", err)
	}

	got, err := DecodeCommand(data)
	if err != nil {
		t.Fatalf("DecodeCommand failed: %v", err)
	}

	if got.Seq != cmd.Seq || got.Operation != cmd.Operation || got.Path != cmd.Path {
		t.Errorf("decoded header mismatch: got %+v, want %+v", got, cmd)
	}
	if got.Attr(AttrName) != "joao123" || got.Attr(AttrService) != "pppoe" {
		t.Errorf("decoded attributes mismatch: %v", got.Attributes)
	}
}

func TestEncodeCommandRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "zero seq",
			cmd:  Command{Seq: 0, Operation: OpAdd, Path: PathCredential},
			want: "seq 0",
		},
		{
			name: "bad operation",
			cmd:  Command{Seq: 1, Operation: Operation(99), Path: PathCredential},
			want: "invalid operation",
		},
		{
			name: "missing path",
			cmd:  Command{Seq: 1, Operation: OpQuery},
			want: "path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeCommand(&tt.cmd)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestEncodeDecodeReply(t *testing.T) {
	r := &Reply{
		Seq:    7,
		Status: StatusOK,
		Records: []map[string]string{
			{AttrName: "joao123", AttrDisabled: "false"},
		},
	}

	data, err := EncodeReply(r)
	if err != nil {
		t.Fatalf("EncodeReply failed: %v", err)
	}

	got, err := DecodeReply(data)
	if err != nil {
		t.Fatalf("DecodeReply failed: %v", err)
	}

	if got.Seq != 7 || !got.IsSuccess() {
		t.Errorf("decoded reply mismatch: %+v", got)
	}
	if rec := got.First(); rec == nil || rec[AttrName] != "joao123" {
		t.Errorf("First() = %v, want joao123 record", rec)
	}
}

func TestReplyFirstEmpty(t *testing.T) {
	r := &Reply{Seq: 1, Status: StatusOK}
	if r.First() != nil {
		t.Error("First() on empty records should be nil")
	}
}

func TestErrorReplyCarriesMessage(t *testing.T) {
	r := &Reply{Seq: 3, Status: StatusNotFound, Message: "no such credential"}

	data, err := EncodeReply(r)
	if err != nil {
		t.Fatalf("EncodeReply failed: %v", err)
	}
	got, err := DecodeReply(data)
	if err != nil {
		t.Fatalf("DecodeReply failed: %v", err)
	}

	if !got.Status.IsError() || got.Message != "no such credential" {
		t.Errorf("decoded error reply mismatch: %+v", got)
	}
}

func TestOperationStrings(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpAdd, "add"},
		{OpUpdate, "update"},
		{OpEnable, "enable"},
		{OpDisable, "disable"},
		{OpQuery, "query"},
		{Operation(0), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Operation(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}
