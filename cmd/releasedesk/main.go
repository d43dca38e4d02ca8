// cmd/releasedesk/main.go
//
// This is the entry point for releasedesk.
// When you run `releasedesk` from any directory, that directory becomes the
// project: its .releasedesk/ folder holds the config, the diagnostic log and
// the activity journal.
//
// Flow:
// 1. Load config and open the file logger (the TUI owns the terminal)
// 2. Build the order store, activity log, backend, engine and authenticator
// 3. Start the optional HTTP bridge next to the TUI
// 4. When the TUI exits or a signal arrives, stop the bridge and flush logs

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/releasedesk/internal/activity"
	"github.com/kingrea/releasedesk/internal/auth"
	"github.com/kingrea/releasedesk/internal/backend"
	"github.com/kingrea/releasedesk/internal/bridge"
	"github.com/kingrea/releasedesk/internal/config"
	"github.com/kingrea/releasedesk/internal/logging"
	"github.com/kingrea/releasedesk/internal/metrics"
	"github.com/kingrea/releasedesk/internal/order"
	"github.com/kingrea/releasedesk/internal/release"
	"github.com/kingrea/releasedesk/internal/tui"
)

const shutdownTimeout = 3 * time.Second

func main() {
	// Get the current working directory - this is the project we release from
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
		os.Exit(1)
	}
	if err := run(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(projectDir string) error {
	if err := config.InitDeskDir(projectDir); err != nil {
		return fmt.Errorf("initialize %s directory: %w", config.DeskDir, err)
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogsDir(), cfg.Project.Logging.Level, cfg.Project.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Close()
	// net/http and other std log users must not write over the TUI
	defer zap.RedirectStdLog(logger.Zap())()
	mainLog := logger.For("main")

	store := order.NewStore()
	if cfg.SeedSampleOrders() {
		if err := store.Insert(order.SampleOrders()...); err != nil {
			return fmt.Errorf("seed orders: %w", err)
		}
	}
	selection := order.NewSelection()

	activityLog, err := activity.New(activity.WithJournal(cfg.ActivityJournalPath()))
	if err != nil {
		return err
	}
	mainLog.Infow("activity journal", "path", activityLog.JournalPath())

	releaseBackend, err := backend.FromConfig(cfg)
	if err != nil {
		return err
	}
	activityLog.Info("System started.")
	activityLog.Success("Connected to %s.", releaseBackend.Name())

	recorder := metrics.New()
	timing := cfg.Project.Release.Timing
	engine, err := release.NewEngine(store, selection, activityLog, releaseBackend,
		release.WithTiming(timing.StartDelay, timing.SettleDelay),
		release.WithRecorder(recorder),
		release.WithLogger(logger.For("release")),
	)
	if err != nil {
		return err
	}

	authenticator, err := auth.New(cfg.Project.Auth.Users, auth.WithLogger(logger.For("auth")))
	if err != nil {
		return err
	}

	server, err := bridge.NewServer(bridge.SettingsFromConfig(cfg), bridge.Deps{
		Store:     store,
		Selection: selection,
		Log:       activityLog,
		Releaser:  engine,
		Auth:      authenticator,
		Mode: func() release.Mode {
			mode, err := release.ParseMode(cfg.ReleaseMode())
			if err != nil {
				return release.ModeIdenticalBatches
			}
			return mode
		},
		Metrics: recorder.Handler(),
	}, bridge.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := tui.NewApp(tui.Deps{
		Config:    cfg,
		Store:     store,
		Selection: selection,
		Log:       activityLog,
		Engine:    engine,
		Auth:      authenticator,
		Logger:    logger.For("tui"),
		LoginHint: cfg.DemoLoginHint(),
	}, tui.WithContext(ctx))
	defer app.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(gctx); err != nil {
			if errors.Is(err, bridge.ErrDisabled) {
				return nil
			}
			return err
		}
		<-gctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		defer cancel()
		program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(gctx))
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("run TUI: %w", err)
		}
		return nil
	})

	err = g.Wait()
	if summary, ok := engine.LastRun(); ok {
		mainLog.Infow("session finished", "last_run", summary.RunID, "result", summary.Result)
	}
	return err
}
