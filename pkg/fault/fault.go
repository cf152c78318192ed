package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error for retry and surfacing decisions.
type Kind uint8

const (
	// KindUnknown is the zero value for unclassified errors.
	KindUnknown Kind = iota

	// KindValidation indicates missing or malformed caller input.
	// Never retried.
	KindValidation

	// KindAuth indicates the device rejected our credentials.
	// Fatal to the session, never retried.
	KindAuth

	// KindTransport indicates a connect or IO failure.
	// Retryable from session acquisition.
	KindTransport

	// KindTimeout indicates a command exceeded its deadline.
	// The session is discarded; the caller must retry with a fresh one.
	KindTimeout

	// KindNotFound indicates the target record is absent on the device.
	KindNotFound

	// KindDuplicate indicates the device rejected a create because the
	// record already exists.
	KindDuplicate

	// KindPartialProvision indicates the credential was created but the
	// queue step failed. The error carries enough state to resume.
	KindPartialProvision
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindAuth:
		return "AUTH"
	case KindTransport:
		return "TRANSPORT"
	case KindTimeout:
		return "TIMEOUT"
	case KindNotFound:
		return "NOT_FOUND"
	case KindDuplicate:
		return "DUPLICATE"
	case KindPartialProvision:
		return "PARTIAL_PROVISION"
	default:
		return "UNKNOWN"
	}
}

// Retryable reports whether errors of this kind are recoverable by
// retrying the whole operation from session acquisition.
func (k Kind) Retryable() bool {
	return k == KindTransport || k == KindTimeout
}

// Fault is a classified engine error.
type Fault struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Err != nil {
		if f.Message != "" {
			return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
		}
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap returns the wrapped error, if any.
func (f *Fault) Unwrap() error {
	return f.Err
}

// FaultKind returns the fault's kind. It satisfies the kinder interface
// used by KindOf, so other error types can report a kind without being
// a *Fault.
func (f *Fault) FaultKind() Kind {
	return f.Kind
}

// New creates a fault with a fixed message.
func New(k Kind, msg string) *Fault {
	return &Fault{Kind: k, Message: msg}
}

// Newf creates a fault with a formatted message.
func Newf(k Kind, format string, args ...any) *Fault {
	return &Fault{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a fault wrapping an underlying error.
func Wrap(k Kind, err error, msg string) *Fault {
	return &Fault{Kind: k, Message: msg, Err: err}
}

// kinder is satisfied by any error that reports a fault kind.
type kinder interface {
	FaultKind() Kind
}

// KindOf returns the kind of the first classified error in err's chain,
// or KindUnknown if none is found.
func KindOf(err error) Kind {
	var k kinder
	if errors.As(err, &k) {
		return k.FaultKind()
	}
	return KindUnknown
}

// Is reports whether err's chain contains a fault of the given kind.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
