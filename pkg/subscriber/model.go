package subscriber

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DeviceState is the engine's view of a subscriber's access state on the
// device.
type DeviceState uint8

const (
	// StateUnprovisioned means the subscriber has never been provisioned.
	// A subscriber never returns to this state; deprovisioning is not
	// modeled.
	StateUnprovisioned DeviceState = iota

	// StateActive means the access credential is enabled.
	StateActive

	// StateBlocked means the access credential is disabled.
	StateBlocked
)

// String returns the state name.
func (s DeviceState) String() string {
	switch s {
	case StateUnprovisioned:
		return "UNPROVISIONED"
	case StateActive:
		return "ACTIVE"
	case StateBlocked:
		return "BLOCKED"
	default:
		return fmt.Sprintf("DeviceState(%d)", uint8(s))
	}
}

// BillingStatus is the billing collaborator's verdict on a subscriber.
// OverdueDays zero means current.
type BillingStatus struct {
	OverdueDays int
}

// Current reports whether the subscriber is paid up.
func (b BillingStatus) Current() bool {
	return b.OverdueDays <= 0
}

// String returns "CURRENT" or "OVERDUE(n)".
func (b BillingStatus) String() string {
	if b.Current() {
		return "CURRENT"
	}
	return fmt.Sprintf("OVERDUE(%d)", b.OverdueDays)
}

// Plan is a bandwidth plan. Limits are human-entered magnitudes such as
// "50M", "50MB" or "1G"; normalization to device syntax happens at
// provisioning time.
type Plan struct {
	Name          string
	DownloadLimit string
	UploadLimit   string
}

// Validate checks the plan fields needed to derive a device queue.
func (p Plan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("plan name is required")
	}
	if strings.TrimSpace(p.DownloadLimit) == "" {
		return fmt.Errorf("plan %q: download limit is required", p.Name)
	}
	if strings.TrimSpace(p.UploadLimit) == "" {
		return fmt.Errorf("plan %q: upload limit is required", p.Name)
	}
	return nil
}

// Subscriber is a snapshot of one subscriber as held by the billing
// store. The engine never persists it; it only computes and applies the
// desired device state for the snapshot it was handed.
type Subscriber struct {
	// ID is the stable external key, recorded on device records as a
	// comment for traceability.
	ID string

	// Username names the access credential on the device. Immutable once
	// provisioned.
	Username string

	// CredentialSecret is the access credential's secret. Opaque to the
	// engine and never logged.
	CredentialSecret string

	// PlanRef names the subscriber's plan in the billing store.
	PlanRef string

	BillingStatus BillingStatus
	DeviceState   DeviceState
	LastSyncedAt  time.Time
}

// Validate checks the fields required before any device operation.
func (s Subscriber) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("subscriber id is required")
	}
	if strings.TrimSpace(s.Username) == "" {
		return fmt.Errorf("subscriber %q: username is required", s.ID)
	}
	return nil
}

// LogValue implements slog.LogValuer so a subscriber logged as a value
// never exposes the credential secret.
func (s Subscriber) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", s.ID),
		slog.String("username", s.Username),
		slog.String("billing", s.BillingStatus.String()),
		slog.String("deviceState", s.DeviceState.String()),
	)
}
