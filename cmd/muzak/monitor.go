package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/himanishpuri/muzak/internal/capture"
	"github.com/himanishpuri/muzak/internal/config"
	"github.com/himanishpuri/muzak/internal/monitor"
	"github.com/himanishpuri/muzak/internal/netcheck"
	"github.com/himanishpuri/muzak/internal/notify"
	"github.com/himanishpuri/muzak/internal/recognize"
	"github.com/himanishpuri/muzak/internal/storage"
	"github.com/himanishpuri/muzak/pkg/logger"
)

func handleMonitor(args []string) {
	log := logger.GetLogger()

	monitorCmd := flag.NewFlagSet("monitor", flag.ExitOnError)
	skipOnEnter := monitorCmd.Bool("skip-on-enter", false, "Pressing Enter skips the current wait")
	monitorCmd.Parse(args)

	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ %v\n", err)
		log.Errorf("Configuration error: %v", err)
		os.Exit(1)
	}

	fmt.Println("🔧 Initializing...")
	db, err := storage.NewDBClientWithPath(cfg.Storage.DBPath)
	if err != nil {
		fail("open database", err)
	}

	backend := newBackend(cfg, db)
	rec := recognize.NewAdapter(backend, config.Seconds(cfg.Recognition.TimeoutSeconds))
	capturer := capture.NewCommand(cfg.Capture.SampleRate, cfg.Capture.Channels)
	probe := netcheck.New(cfg.Network.ProbeAddress,
		config.Seconds(cfg.Network.ProbeTimeoutSeconds),
		config.Seconds(cfg.Network.CacheWindowSeconds))
	dispatcher := notify.FromConfig(cfg.Notifications, log.WithPrefix("[notify]"))

	opts := []monitor.Option{monitor.WithNotifier(dispatcher)}
	if cfg.Recognition.Backend == config.BackendRemote {
		opts = append(opts, monitor.WithProbe(probe))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *skipOnEnter {
		opts = append(opts, monitor.WithSkip(readEnter(ctx)))
	}

	m := monitor.New(monitor.SettingsFrom(cfg), capturer, rec, db, opts...)

	fmt.Printf("🎧 Monitoring (backend: %s, sinks: %v). Press Ctrl+C to stop.\n", cfg.Recognition.Backend, dispatcher.Sinks())
	if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fail("run monitor", err)
	}

	st := m.Stats()
	fmt.Printf("\n✅ Stopped after %d samples: %d new detections, %d repeats suppressed\n", st.Iterations, st.Accepted, st.Suppressed)
}

// newBackend picks the recognition backend from the config.
func newBackend(cfg *config.Config, db *storage.DBClient) recognize.Backend {
	log := logger.GetLogger().WithPrefix("[recognize]")
	if cfg.Recognition.Backend == config.BackendLocal {
		return recognize.NewLocalBackend(db, cfg.Recognition.MinConfidence, log)
	}
	return recognize.NewRemoteBackend(cfg.Recognition.URL, cfg.Recognition.MinConfidence, nil)
}

// readEnter signals on the returned channel for every line read from stdin.
func readEnter(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case ch <- struct{}{}:
			case <-ctx.Done():
				return
			default:
			}
		}
	}()
	return ch
}
