package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindValidation, "VALIDATION"},
		{KindAuth, "AUTH"},
		{KindTransport, "TRANSPORT"},
		{KindTimeout, "TIMEOUT"},
		{KindNotFound, "NOT_FOUND"},
		{KindDuplicate, "DUPLICATE"},
		{KindPartialProvision, "PARTIAL_PROVISION"},
		{KindUnknown, "UNKNOWN"},
		{Kind(200), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !KindTransport.Retryable() {
		t.Error("transport errors should be retryable")
	}
	if !KindTimeout.Retryable() {
		t.Error("timeout errors should be retryable")
	}
	for _, k := range []Kind{KindValidation, KindAuth, KindNotFound, KindDuplicate, KindPartialProvision} {
		if k.Retryable() {
			t.Errorf("%s should not be retryable", k)
		}
	}
}

func TestKindOf(t *testing.T) {
	f := Newf(KindNotFound, "credential %q missing", "ghost")
	if KindOf(f) != KindNotFound {
		t.Errorf("KindOf = %v, want NOT_FOUND", KindOf(f))
	}

	// Wrapped faults keep their kind through the chain.
	wrapped := fmt.Errorf("block failed: %w", f)
	if KindOf(wrapped) != KindNotFound {
		t.Errorf("KindOf(wrapped) = %v, want NOT_FOUND", KindOf(wrapped))
	}

	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain errors should be KindUnknown")
	}
	if KindOf(nil) != KindUnknown {
		t.Error("nil should be KindUnknown")
	}
}

func TestWrapUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	f := Wrap(KindTransport, inner, "send failed")

	if !errors.Is(f, inner) {
		t.Error("Wrap should preserve the error chain")
	}
	if !Is(f, KindTransport) {
		t.Error("Is should match the fault kind")
	}
	if Is(f, KindAuth) {
		t.Error("Is should not match other kinds")
	}
}
