// Package access flips a subscriber's access credential between enabled
// and disabled.
//
// It is a thin, auditable command translator: it holds no state, does
// not dedupe (re-blocking an already blocked subscriber re-issues the
// disable, which the device treats as a no-op), and surfaces a missing
// credential as a NotFound fault. Skipping already-converged
// subscribers is the reconciliation sweep's job.
package access

import (
	"context"
	"log/slog"

	"github.com/provedorpro/subsync/pkg/executor"
	"github.com/provedorpro/subsync/pkg/fault"
	"github.com/provedorpro/subsync/pkg/wire"
)

// Controller issues enable/disable commands for access credentials.
type Controller struct {
	runner executor.Runner
	logger *slog.Logger
}

// NewController creates a controller over the command runner. A nil
// logger disables application logging.
func NewController(runner executor.Runner, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{runner: runner, logger: logger}
}

// Block disables the credential named username. A block against a
// never-provisioned subscriber fails with a NotFound fault; that is a
// caller bug, not a success.
func (c *Controller) Block(ctx context.Context, username string) error {
	return c.toggle(ctx, username, wire.OpDisable)
}

// Unblock enables the credential named username. Same not-found
// semantics as Block.
func (c *Controller) Unblock(ctx context.Context, username string) error {
	return c.toggle(ctx, username, wire.OpEnable)
}

// Disabled reports whether the credential named username is currently
// disabled on the device. The device is the source of truth for access
// state; nothing is cached here.
func (c *Controller) Disabled(ctx context.Context, username string) (bool, error) {
	if username == "" {
		return false, fault.New(fault.KindValidation, "username is required")
	}
	res, err := c.runner.Run(ctx, wire.Command{
		Operation:  wire.OpQuery,
		Path:       wire.PathCredential,
		Attributes: map[string]string{wire.AttrName: username},
	})
	if err != nil {
		return false, err
	}
	rec := res.First()
	if rec == nil {
		return false, fault.Newf(fault.KindNotFound, "credential %q not found", username)
	}
	return rec[wire.AttrDisabled] == "true", nil
}

func (c *Controller) toggle(ctx context.Context, username string, op wire.Operation) error {
	if username == "" {
		return fault.New(fault.KindValidation, "username is required")
	}
	_, err := c.runner.Run(ctx, wire.Command{
		Operation:  op,
		Path:       wire.PathCredential,
		Attributes: map[string]string{wire.AttrName: username},
	})
	if err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "access transition applied",
		"username", username,
		"operation", op.String())
	return nil
}
