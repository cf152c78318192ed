// Command subsync-cli is an interactive operator console for the
// subscriber sync engine.
//
// It connects to the access device from the same configuration the
// daemon uses and exposes provision/block/unblock/sweep as console
// commands. With -demo it starts an in-process mock device instead,
// so the console can be explored without network access.
//
// Usage:
//
//	subsync-cli [flags]
//
// Flags:
//
//	-config string  Path to the YAML config file
//	-demo           Run against an in-process mock device
//	-version        Show version information
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/provedorpro/subsync/internal/devmock"
	"github.com/provedorpro/subsync/pkg/access"
	"github.com/provedorpro/subsync/pkg/config"
	"github.com/provedorpro/subsync/pkg/executor"
	"github.com/provedorpro/subsync/pkg/provision"
	"github.com/provedorpro/subsync/pkg/session"
	"github.com/provedorpro/subsync/pkg/subscriber"
	"github.com/provedorpro/subsync/pkg/sweep"
)

// Version information - set at build time via ldflags
var Version = "0.1.0"

var (
	configPath  = flag.String("config", "", "Path to the YAML config file")
	demoMode    = flag.Bool("demo", false, "Run against an in-process mock device")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Printf("subsync-cli %s\n", Version)
		return 0
	}

	cfg := config.Default()
	address := ""

	if *demoMode {
		device := devmock.New("demo-router")
		device.AddUser("api", "demo")
		mock, err := devmock.NewServer(device)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: demo device failed to start: %v\n", err)
			return 1
		}
		defer mock.Close()

		cfg.Device.Username = "api"
		cfg.Device.Password = "demo"
		address = mock.Addr()
		fmt.Printf("Demo device \"demo-router\" listening on %s\n", address)
	} else {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		address = cfg.Device.Address()
	}

	logger := slog.New(slog.DiscardHandler)

	sessions := session.NewManager(session.Config{
		Address:        address,
		Username:       cfg.Device.Username,
		Password:       cfg.Device.Password,
		ConnectTimeout: cfg.Device.ConnectTimeout.Std(),
		IdleTimeout:    cfg.Device.IdleTimeout.Std(),
	})
	defer sessions.Close()

	exec := executor.New(sessions, nil)
	defer exec.Close()
	exec.SetTimeout(cfg.Device.CommandTimeout.Std())

	dispatcher := executor.NewDispatcher(sessions, exec)
	store := subscriber.NewMemoryStore()
	ctrl := access.NewController(dispatcher, logger)
	sweeper := sweep.New(store, ctrl, logger, sweep.Config{
		GracePeriodDays: cfg.Sweep.GracePeriodDays,
		Workers:         cfg.Sweep.Workers,
	})

	console, err := NewConsole(dispatcher, provision.NewService(dispatcher, logger), ctrl, sweeper, store, sessions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	console.Run(ctx, cancel)
	return 0
}
