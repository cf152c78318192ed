package provision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/provedorpro/subsync/pkg/executor"
	"github.com/provedorpro/subsync/pkg/fault"
	"github.com/provedorpro/subsync/pkg/subscriber"
	"github.com/provedorpro/subsync/pkg/wire"
)

// ServiceName is the access service type written on every credential.
const ServiceName = "pppoe"

// Result reports what a provisioning call actually changed on the
// device. An all-false result is a successful no-op.
type Result struct {
	CredentialCreated bool
	QueueCreated      bool
	QueueUpdated      bool

	// MaxLimit is the normalized queue limit in effect after the call.
	MaxLimit string
}

// PartialError reports that the credential step succeeded but the queue
// step failed. The credential is deliberately left in place; retrying
// the same provision call completes by adding only the missing queue.
type PartialError struct {
	Username string
	MaxLimit string
	Err      error
}

// Error implements the error interface.
func (e *PartialError) Error() string {
	return fmt.Sprintf("credential %q created but queue step failed: %v", e.Username, e.Err)
}

// Unwrap returns the queue step's error.
func (e *PartialError) Unwrap() error {
	return e.Err
}

// FaultKind classifies the error for fault.KindOf.
func (e *PartialError) FaultKind() fault.Kind {
	return fault.KindPartialProvision
}

// Service applies subscriber/plan snapshots to the device idempotently.
type Service struct {
	runner executor.Runner
	logger *slog.Logger
}

// NewService creates a provisioning service over the command runner.
// A nil logger disables application logging.
func NewService(runner executor.Runner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{runner: runner, logger: logger}
}

// Provision ensures the device holds exactly one credential record and
// one bandwidth-queue record for the subscriber, matching the plan.
//
// Calling it twice with the same arguments is a no-op the second time;
// with a changed plan it issues a single queue update. If the
// credential exists but the queue is missing (a previous partial
// failure), only the queue is added.
func (s *Service) Provision(ctx context.Context, sub subscriber.Subscriber, plan subscriber.Plan) (Result, error) {
	if err := sub.Validate(); err != nil {
		return Result{}, fault.Wrap(fault.KindValidation, err, "invalid subscriber")
	}
	if err := plan.Validate(); err != nil {
		return Result{}, fault.Wrap(fault.KindValidation, err, "invalid plan")
	}
	limit, err := MaxLimit(plan.DownloadLimit, plan.UploadLimit)
	if err != nil {
		return Result{}, err
	}

	res := Result{MaxLimit: limit}

	existing, err := s.queryOne(ctx, wire.PathCredential, sub.Username)
	if err != nil {
		return res, err
	}

	if existing == nil {
		created, err := s.addCredential(ctx, sub)
		if err != nil {
			return res, err
		}
		res.CredentialCreated = created
	}

	if err := s.syncQueue(ctx, sub, limit, &res); err != nil {
		if res.CredentialCreated {
			return res, &PartialError{Username: sub.Username, MaxLimit: limit, Err: err}
		}
		return res, err
	}

	s.logger.InfoContext(ctx, "provision applied",
		"subscriber", sub,
		"plan", plan.Name,
		"maxLimit", limit,
		"credentialCreated", res.CredentialCreated,
		"queueCreated", res.QueueCreated,
		"queueUpdated", res.QueueUpdated)
	return res, nil
}

// addCredential creates the access credential. A duplicate response
// means another path already provisioned it, which is fine.
func (s *Service) addCredential(ctx context.Context, sub subscriber.Subscriber) (bool, error) {
	_, err := s.runner.Run(ctx, wire.Command{
		Operation: wire.OpAdd,
		Path:      wire.PathCredential,
		Attributes: map[string]string{
			wire.AttrName:     sub.Username,
			wire.AttrPassword: sub.CredentialSecret,
			wire.AttrService:  ServiceName,
			wire.AttrComment:  sub.ID,
		},
	})
	if err != nil {
		if fault.Is(err, fault.KindDuplicate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// syncQueue brings the bandwidth queue to the desired limit: add when
// absent, update when present with a different limit, otherwise no-op.
func (s *Service) syncQueue(ctx context.Context, sub subscriber.Subscriber, limit string, res *Result) error {
	existing, err := s.queryOne(ctx, wire.PathQueue, sub.Username)
	if err != nil {
		return err
	}

	if existing == nil {
		_, err := s.runner.Run(ctx, wire.Command{
			Operation: wire.OpAdd,
			Path:      wire.PathQueue,
			Attributes: map[string]string{
				wire.AttrName:     sub.Username,
				wire.AttrTarget:   sub.Username,
				wire.AttrMaxLimit: limit,
				wire.AttrComment:  sub.ID,
			},
		})
		if err != nil {
			if fault.Is(err, fault.KindDuplicate) {
				// Lost a race with a concurrent provision of the same
				// subscriber; the queue exists now.
				return nil
			}
			return err
		}
		res.QueueCreated = true
		return nil
	}

	if existing[wire.AttrMaxLimit] == limit {
		return nil
	}
	_, err = s.runner.Run(ctx, wire.Command{
		Operation: wire.OpUpdate,
		Path:      wire.PathQueue,
		Attributes: map[string]string{
			wire.AttrName:     sub.Username,
			wire.AttrMaxLimit: limit,
		},
	})
	if err != nil {
		return err
	}
	res.QueueUpdated = true
	return nil
}

// queryOne fetches the record named name from path, or nil when the
// device has none.
func (s *Service) queryOne(ctx context.Context, path, name string) (map[string]string, error) {
	res, err := s.runner.Run(ctx, wire.Command{
		Operation:  wire.OpQuery,
		Path:       path,
		Attributes: map[string]string{wire.AttrName: name},
	})
	if err != nil {
		if fault.Is(err, fault.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return res.First(), nil
}
