package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kag-tools/matchreplay/internal/api"
	"github.com/kag-tools/matchreplay/internal/config"
	"github.com/kag-tools/matchreplay/internal/controller"
	"github.com/kag-tools/matchreplay/internal/database"
	"github.com/kag-tools/matchreplay/internal/dispatcher"
	"github.com/kag-tools/matchreplay/internal/logging"
	"github.com/kag-tools/matchreplay/internal/metrics"
	"github.com/kag-tools/matchreplay/internal/monitor"
	"github.com/kag-tools/matchreplay/internal/parser"
	"github.com/kag-tools/matchreplay/internal/queue"
	"github.com/kag-tools/matchreplay/internal/sim/headless"
	"github.com/kag-tools/matchreplay/internal/storage"
)

// runServe drives a headless session from stdin. Each line is either an
// operator command ("!rec start-recording") or ignored chatter, exactly the
// stream the game server console would deliver.
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	mapName := fs.String("map", "CTF_Cove", "map loaded into the headless session")
	tickRate := fs.Int("tickrate", 30, "simulation ticks per second")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tickRate <= 0 {
		return fmt.Errorf("tickrate must be positive, got %d", *tickRate)
	}

	zlog := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// database + archive
	dbManager := database.NewManager(zlog)
	var archive *storage.Archive
	if err := dbManager.Connect(); err != nil {
		logger.Warn("Database unavailable, archive disabled", "error", err)
	} else {
		models := append([]any{}, storage.ArchiveModels...)
		models = append(models, monitor.Models...)
		if err := dbManager.Migrate(models...); err != nil {
			logger.Error("Migration failed, archive disabled", "error", err)
		} else {
			archive = storage.NewArchive(dbManager.DB)
		}
		defer dbManager.Close()
	}

	// metrics, config-gated; spools to a gzip file when InfluxDB is down
	var ctrlMetrics controller.Metrics
	if config.GetBool("influx.enabled") {
		metricsMgr := metrics.NewManager(zlog, filepath.Join(config.GetString("logsDir"), "metrics_backup.gz"))
		if err := metricsMgr.Connect(); err != nil {
			logger.Warn("Metrics disabled", "error", err)
		} else {
			ctrlMetrics = metricsMgr
			defer metricsMgr.Close()
		}
	}

	// frontend uploads, config-gated
	var uploader controller.Uploader
	if config.GetBool("api.enabled") {
		client := api.New(config.GetString("api.serverUrl"), config.GetString("api.apiKey"))
		if err := client.Healthcheck(); err != nil {
			logger.Warn("Frontend unreachable, uploads may fail", "error", err)
		}
		uploader = client
	}

	store, err := storage.NewFileStore(config.GetString("recordingsDir"))
	if err != nil {
		return fmt.Errorf("open recordings dir: %w", err)
	}

	// re-route logging so every record carries the controller's mode; the
	// controller doesn't exist yet, so the provider binds late
	var ctrl *controller.Controller
	if err := slogManager.Setup(logFile, config.GetString("logLevel"), gelfAddr(), func() []slog.Attr {
		if ctrl == nil {
			return nil
		}
		st := ctrl.Status()
		return []slog.Attr{
			slog.String("mode", st.Mode),
			slog.Int("match", st.MatchNumber),
		}
	}); err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	logger = slogManager.Logger()

	host := headless.New(*mapName)
	ctrl = controller.New(controller.Deps{
		Host:     host,
		Log:      logger,
		Store:    store,
		Archive:  archive,
		Metrics:  ctrlMetrics,
		Uploader: uploader,
	}, controller.Config{
		SessionName:   config.GetString("sessionName"),
		SnapThreshold: config.GetFloat64("snapThreshold"),
		Autorecord:    config.GetBool("autorecord"),
	})

	d, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}
	ctrl.RegisterHandlers(d)
	d.Register("match-restart", func(dispatcher.Event) (any, error) {
		ctrl.OnMatchRestart()
		return nil, nil
	}, dispatcher.Logged())
	d.Register("game-over", func(dispatcher.Event) (any, error) {
		ctrl.OnGameOver()
		return nil, nil
	}, dispatcher.Logged())

	statusMonitor := monitor.NewService(monitor.Dependencies{
		Source:          ctrl,
		DB:              dbManager.DB,
		Logger:          logger,
		SessionName:     config.GetString("sessionName"),
		StatusDir:       store.Dir(),
		IsDatabaseValid: func() bool { return dbManager.IsValid },
	})
	if err := statusMonitor.Start(); err != nil {
		logger.Warn("Status monitor failed to start", "error", err)
	}
	defer statusMonitor.Stop()

	// stdin reader feeds the tick loop through a queue, one line per entry
	lines := queue.New[string]()
	stdinDone := make(chan struct{})
	go func() {
		defer close(stdinDone)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines.Push(scanner.Text())
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	p := parser.NewParser(logger)
	ticker := time.NewTicker(time.Second / time.Duration(*tickRate))
	defer ticker.Stop()

	logger.Info("Session running", "map", *mapName, "tickRate", *tickRate)
	for {
		select {
		case <-sig:
			logger.Info("Interrupted, shutting down")
			return nil
		case <-stdinDone:
			logger.Info("Input closed, shutting down")
			return nil
		case <-ticker.C:
			for _, line := range lines.GetAndEmpty() {
				ev, err := p.ParseLine(line)
				if errors.Is(err, parser.ErrNotCommand) {
					continue
				}
				if err != nil {
					logger.Warn("Bad command line", "line", line, "error", err)
					continue
				}
				if _, err := d.Dispatch(ev); err != nil {
					logger.Warn("Command failed", "command", ev.Command, "error", err)
				}
			}
			host.Advance(1)
			ctrl.Update()
		}
	}
}
