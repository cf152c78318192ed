// Command subsyncd keeps subscriber access state on a network access
// device synchronized with billing status.
//
// It maintains one authenticated control session to the device, exposes
// an operator HTTP API for provisioning and manual block/unblock, and
// runs a periodic reconciliation sweep that blocks subscribers past
// their grace period and unblocks the ones that paid up.
//
// Usage:
//
//	subsyncd [flags]
//
// Flags:
//
//	-config string  Path to the YAML config file (optional; SUBSYNC_*
//	                environment variables override it)
//	-version        Show version information
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/provedorpro/subsync/pkg/access"
	"github.com/provedorpro/subsync/pkg/config"
	"github.com/provedorpro/subsync/pkg/executor"
	"github.com/provedorpro/subsync/pkg/log"
	"github.com/provedorpro/subsync/pkg/provision"
	"github.com/provedorpro/subsync/pkg/session"
	"github.com/provedorpro/subsync/pkg/subscriber"
	"github.com/provedorpro/subsync/pkg/sweep"
)

// Version information - set at build time via ldflags
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

var (
	configPath  = flag.String("config", "", "Path to the YAML config file")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Printf("subsyncd %s (commit %s)\n", Version, GitCommit)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	engine, shutdown := buildEngine(cfg, logger)
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go engine.Sweeper.Run(ctx)

	srv := NewServer(cfg.HTTP.Listen, engine, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("subsyncd started",
		"listen", cfg.HTTP.Listen,
		"device", cfg.Device.Address(),
		"sweepInterval", cfg.Sweep.Interval.Std(),
		"graceDays", cfg.Sweep.GracePeriodDays)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			return 1
		}
	}
	return 0
}

// buildEngine wires the core components from configuration. The
// returned function tears the engine down in dependency order.
func buildEngine(cfg *config.Config, logger *slog.Logger) (*Engine, func()) {
	protocolLog := log.NewSlogAdapter(logger)

	sessions := session.NewManager(session.Config{
		Address:        cfg.Device.Address(),
		Username:       cfg.Device.Username,
		Password:       cfg.Device.Password,
		ConnectTimeout: cfg.Device.ConnectTimeout.Std(),
		IdleTimeout:    cfg.Device.IdleTimeout.Std(),
		Logger:         protocolLog,
	})

	exec := executor.New(sessions, protocolLog)
	exec.SetTimeout(cfg.Device.CommandTimeout.Std())
	dispatcher := executor.NewDispatcher(sessions, exec)

	store := subscriber.NewMemoryStore()
	ctrl := access.NewController(dispatcher, logger)
	sweeper := sweep.New(store, ctrl, logger, sweep.Config{
		Interval:        cfg.Sweep.Interval.Std(),
		GracePeriodDays: cfg.Sweep.GracePeriodDays,
		Workers:         cfg.Sweep.Workers,
	})

	engine := &Engine{
		Sessions:    sessions,
		Dispatcher:  dispatcher,
		Provisioner: provision.NewService(dispatcher, logger),
		Access:      ctrl,
		Sweeper:     sweeper,
		Store:       store,
	}
	return engine, func() {
		exec.Close()
		sessions.Close()
	}
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
