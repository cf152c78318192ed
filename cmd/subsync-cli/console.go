package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/provedorpro/subsync/pkg/access"
	"github.com/provedorpro/subsync/pkg/executor"
	"github.com/provedorpro/subsync/pkg/provision"
	"github.com/provedorpro/subsync/pkg/session"
	"github.com/provedorpro/subsync/pkg/subscriber"
	"github.com/provedorpro/subsync/pkg/sweep"
	"github.com/provedorpro/subsync/pkg/wire"
)

// Console handles interactive mode for subsync-cli.
type Console struct {
	dispatcher  *executor.Dispatcher
	provisioner *provision.Service
	ctrl        *access.Controller
	sweeper     *sweep.Sweeper
	store       *subscriber.MemoryStore
	sessions    *session.Manager
	rl          *readline.Instance
}

// NewConsole creates a new interactive console handler.
func NewConsole(
	dispatcher *executor.Dispatcher,
	provisioner *provision.Service,
	ctrl *access.Controller,
	sweeper *sweep.Sweeper,
	store *subscriber.MemoryStore,
	sessions *session.Manager,
) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "subsync> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{
		dispatcher:  dispatcher,
		provisioner: provisioner,
		ctrl:        ctrl,
		sweeper:     sweeper,
		store:       store,
		sessions:    sessions,
		rl:          rl,
	}, nil
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "test", "t":
			c.cmdTest(ctx)

		case "provision", "p":
			c.cmdProvision(ctx, args)

		case "block", "b":
			c.cmdBlock(ctx, args)

		case "unblock", "u":
			c.cmdUnblock(ctx, args)

		case "query", "q":
			c.cmdQuery(ctx, args)

		case "overdue":
			c.cmdOverdue(args)

		case "sweep":
			c.cmdSweep(ctx)

		case "status", "s":
			c.cmdStatus()

		case "quit", "exit":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Subsync Console Commands:
  Device:
    test                                    - Query device identity
    query <username>                        - Show a subscriber's device records
    status                                  - Show connectivity and last sweep

  Provisioning & Access:
    provision <id> <user> <pass> <down> <up> - Create credential + queue
    block <username>                         - Disable a subscriber's access
    unblock <username>                        - Enable a subscriber's access

  Reconciliation:
    overdue <id> <days>                     - Mark a subscriber overdue
    sweep                                   - Run one reconciliation pass

  General:
    help                                    - Show this help
    quit                                    - Exit console`)
}

// cmdTest handles the test command.
func (c *Console) cmdTest(ctx context.Context) {
	testCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	identity, err := c.dispatcher.Identity(testCtx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Device test failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Device reachable: %s\n", identity)
}

// cmdProvision handles the provision command.
func (c *Console) cmdProvision(ctx context.Context, args []string) {
	if len(args) < 5 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: provision <id> <username> <password> <download> <upload>")
		fmt.Fprintln(c.rl.Stdout(), "  Example: provision c-42 joao123 s3cret 50M 50M")
		return
	}

	sub := subscriber.Subscriber{
		ID:               args[0],
		Username:         args[1],
		CredentialSecret: args[2],
		PlanRef:          args[3] + "/" + args[4],
	}
	plan := subscriber.Plan{
		Name:          sub.PlanRef,
		DownloadLimit: args[3],
		UploadLimit:   args[4],
	}

	res, err := c.provisioner.Provision(ctx, sub, plan)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Provision failed: %v\n", err)
		return
	}

	sub.DeviceState = subscriber.StateActive
	c.store.PutSubscriber(sub)
	c.store.PutPlan(plan)

	switch {
	case res.CredentialCreated:
		fmt.Fprintf(c.rl.Stdout(), "Provisioned %s (max-limit %s)\n", sub.Username, res.MaxLimit)
	case res.QueueUpdated:
		fmt.Fprintf(c.rl.Stdout(), "Queue updated for %s (max-limit %s)\n", sub.Username, res.MaxLimit)
	case res.QueueCreated:
		fmt.Fprintf(c.rl.Stdout(), "Queue added for %s (max-limit %s)\n", sub.Username, res.MaxLimit)
	default:
		fmt.Fprintf(c.rl.Stdout(), "Already provisioned, nothing to do\n")
	}
}

// cmdBlock handles the block command.
func (c *Console) cmdBlock(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: block <username>")
		return
	}
	if err := c.ctrl.Block(ctx, args[0]); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Block failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Blocked %s\n", args[0])
}

// cmdUnblock handles the unblock command.
func (c *Console) cmdUnblock(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: unblock <username>")
		return
	}
	if err := c.ctrl.Unblock(ctx, args[0]); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Unblock failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Unblocked %s\n", args[0])
}

// cmdQuery shows a subscriber's device records.
func (c *Console) cmdQuery(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: query <username>")
		return
	}
	username := args[0]

	for _, path := range []string{wire.PathCredential, wire.PathQueue} {
		res, err := c.dispatcher.Run(ctx, wire.Command{
			Operation:  wire.OpQuery,
			Path:       path,
			Attributes: map[string]string{wire.AttrName: username},
		})
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Query %s failed: %v\n", path, err)
			return
		}
		rec := res.First()
		if rec == nil {
			fmt.Fprintf(c.rl.Stdout(), "%s: no record\n", path)
			continue
		}
		fmt.Fprintf(c.rl.Stdout(), "%s:\n", path)
		for _, key := range []string{wire.AttrName, wire.AttrService, wire.AttrTarget, wire.AttrMaxLimit, wire.AttrDisabled, wire.AttrComment} {
			if v, ok := rec[key]; ok {
				fmt.Fprintf(c.rl.Stdout(), "  %-10s %s\n", key, v)
			}
		}
	}
}

// cmdOverdue marks a subscriber overdue in the local store, standing in
// for the billing pipeline.
func (c *Console) cmdOverdue(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: overdue <id> <days>")
		return
	}
	days, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid day count: %v\n", err)
		return
	}
	if err := c.store.SetBilling(args[0], subscriber.BillingStatus{OverdueDays: days}); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Subscriber %s marked overdue %d day(s)\n", args[0], days)
}

// cmdSweep runs one reconciliation pass.
func (c *Console) cmdSweep(ctx context.Context) {
	summary, err := c.sweeper.RunOnce(ctx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Sweep failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Sweep %s: verified=%d blocked=%d unblocked=%d errored=%d (%s)\n",
		summary.RunID[:8], summary.Verified, summary.Blocked, summary.Unblocked,
		summary.Errored, summary.Duration.Round(time.Millisecond))
	for _, a := range summary.Anomalies {
		fmt.Fprintf(c.rl.Stdout(), "  anomaly %s: %s\n", a.Username, a.Reason)
	}
}

// cmdStatus shows connectivity and the last sweep summary.
func (c *Console) cmdStatus() {
	fmt.Fprintln(c.rl.Stdout(), "\nEngine Status")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(c.rl.Stdout(), "  Connectivity:  %s\n", c.sessions.Connectivity())

	if last := c.sweeper.LastSummary(); last != nil {
		fmt.Fprintf(c.rl.Stdout(), "  Last sweep:    %s ago\n", time.Since(last.StartedAt).Round(time.Second))
		fmt.Fprintf(c.rl.Stdout(), "  Verified:      %d\n", last.Verified)
		fmt.Fprintf(c.rl.Stdout(), "  Transitions:   %d\n", last.Transitions())
		fmt.Fprintf(c.rl.Stdout(), "  Errored:       %d\n", last.Errored)
	} else {
		fmt.Fprintln(c.rl.Stdout(), "  Last sweep:    never")
	}
	fmt.Fprintln(c.rl.Stdout())
}
