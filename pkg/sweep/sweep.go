// Package sweep reconciles device access state with billing status.
//
// Each run walks every subscriber the billing store knows, computes the
// desired access state from billing status and the grace period, reads
// the credential's actual disabled flag from the device, and issues a
// block or unblock only when they differ. The device is the source of
// truth for access state, so a converged set produces zero transition
// commands on the next run.
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/provedorpro/subsync/pkg/access"
	"github.com/provedorpro/subsync/pkg/subscriber"
)

// Defaults applied by New when the config leaves them zero.
const (
	DefaultInterval = 5 * time.Minute
	DefaultWorkers  = 4
)

// Config holds sweep policy.
type Config struct {
	// Interval between runs of the Run loop.
	Interval time.Duration

	// GracePeriodDays is how many days overdue a subscriber may be
	// before being blocked.
	GracePeriodDays int

	// Workers bounds the per-run fan-out. Workers overlap billing reads
	// and decisions only; device commands still serialize in the
	// executor's queue.
	Workers int
}

// Anomaly records one subscriber the sweep could not reconcile.
type Anomaly struct {
	SubscriberID string `json:"subscriberId"`
	Username     string `json:"username"`
	Reason       string `json:"reason"`
}

// Summary reports one sweep run.
type Summary struct {
	RunID     string        `json:"runId"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`

	Verified  int `json:"verified"`
	Blocked   int `json:"blocked"`
	Unblocked int `json:"unblocked"`
	Errored   int `json:"errored"`

	Anomalies []Anomaly `json:"anomalies,omitempty"`
}

// Transitions is the number of device state changes the run issued.
func (s *Summary) Transitions() int {
	return s.Blocked + s.Unblocked
}

// Sweeper runs reconciliation passes.
type Sweeper struct {
	store  subscriber.Store
	ctrl   *access.Controller
	logger *slog.Logger
	cfg    Config

	mu   sync.Mutex
	last *Summary
}

// New creates a sweeper. A nil logger disables application logging.
func New(store subscriber.Store, ctrl *access.Controller, logger *slog.Logger, cfg Config) *Sweeper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Sweeper{store: store, ctrl: ctrl, logger: logger, cfg: cfg}
}

// LastSummary returns the most recent run's summary, or nil before the
// first run completes.
func (s *Sweeper) LastSummary() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Run sweeps immediately and then on every interval tick until ctx is
// cancelled. Run errors are logged, never fatal to the loop.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "sweep run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single reconciliation pass. It returns an error
// only when the subscriber listing itself fails; per-subscriber
// failures are recorded as anomalies and never abort the run.
func (s *Sweeper) RunOnce(ctx context.Context) (*Summary, error) {
	subs, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	work := make(chan subscriber.Subscriber)
	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := s.cfg.Workers
	if workers > len(subs) {
		workers = len(subs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range work {
				outcome, anomaly := s.reconcile(ctx, sub)
				mu.Lock()
				switch outcome {
				case outcomeVerified:
					summary.Verified++
				case outcomeBlocked:
					summary.Blocked++
				case outcomeUnblocked:
					summary.Unblocked++
				case outcomeErrored:
					summary.Errored++
					summary.Anomalies = append(summary.Anomalies, *anomaly)
				}
				mu.Unlock()
			}
		}()
	}

	for _, sub := range subs {
		select {
		case work <- sub:
		case <-ctx.Done():
			// Stop feeding; in-flight subscribers finish.
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(work)
	wg.Wait()

	summary.Duration = time.Since(summary.StartedAt)

	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "sweep completed",
		"runId", summary.RunID,
		"verified", summary.Verified,
		"blocked", summary.Blocked,
		"unblocked", summary.Unblocked,
		"errored", summary.Errored,
		"duration", summary.Duration)
	return summary, nil
}

type outcome uint8

const (
	outcomeVerified outcome = iota
	outcomeBlocked
	outcomeUnblocked
	outcomeErrored
)

// desiredState applies the grace-period rule.
func (s *Sweeper) desiredState(b subscriber.BillingStatus) subscriber.DeviceState {
	if !b.Current() && b.OverdueDays >= s.cfg.GracePeriodDays {
		return subscriber.StateBlocked
	}
	return subscriber.StateActive
}

// reconcile drives one subscriber toward its desired state.
func (s *Sweeper) reconcile(ctx context.Context, sub subscriber.Subscriber) (outcome, *Anomaly) {
	fail := func(err error) (outcome, *Anomaly) {
		s.logger.WarnContext(ctx, "sweep anomaly", "subscriber", sub, "error", err)
		return outcomeErrored, &Anomaly{
			SubscriberID: sub.ID,
			Username:     sub.Username,
			Reason:       err.Error(),
		}
	}

	desired := s.desiredState(sub.BillingStatus)

	disabled, err := s.ctrl.Disabled(ctx, sub.Username)
	if err != nil {
		return fail(err)
	}
	observed := subscriber.StateActive
	if disabled {
		observed = subscriber.StateBlocked
	}

	if observed == desired {
		s.recordSync(ctx, sub.ID, observed)
		return outcomeVerified, nil
	}

	switch desired {
	case subscriber.StateBlocked:
		if err := s.ctrl.Block(ctx, sub.Username); err != nil {
			return fail(err)
		}
		s.recordSync(ctx, sub.ID, subscriber.StateBlocked)
		return outcomeBlocked, nil
	default:
		if err := s.ctrl.Unblock(ctx, sub.Username); err != nil {
			return fail(err)
		}
		s.recordSync(ctx, sub.ID, subscriber.StateActive)
		return outcomeUnblocked, nil
	}
}

// recordSync writes the observed state back to the store. Failure to
// record does not fail the reconciliation; the device already holds the
// right state.
func (s *Sweeper) recordSync(ctx context.Context, id string, state subscriber.DeviceState) {
	if err := s.store.RecordSync(ctx, id, state); err != nil {
		s.logger.WarnContext(ctx, "sync record failed", "subscriberId", id, "error", err)
	}
}
