package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tucoflyer/botcontrol/internal/bot"
	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/internal/controller"
	"github.com/tucoflyer/botcontrol/internal/dispatcher"
	"github.com/tucoflyer/botcontrol/internal/led"
	"github.com/tucoflyer/botcontrol/internal/logging"
	"github.com/tucoflyer/botcontrol/internal/monitor"
	"github.com/tucoflyer/botcontrol/internal/otel"
	"github.com/tucoflyer/botcontrol/internal/storage"
	"github.com/tucoflyer/botcontrol/internal/transport"
	"github.com/tucoflyer/botcontrol/internal/webui"
	"github.com/tucoflyer/botcontrol/internal/worker"
	"github.com/tucoflyer/botcontrol/pkg/core"
	"github.com/tucoflyer/botcontrol/pkg/streaming"
	"golang.org/x/sync/errgroup"
)

// inbox forwards to the bot once it exists; transport and hub are built first.
type inbox struct {
	bot *bot.Bot
}

func (i *inbox) Submit(ev dispatcher.Event) error {
	if i.bot == nil {
		return bot.ErrStopped
	}
	return i.bot.Submit(ev)
}

func runController(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	bootLogger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
	if err := loadServiceConfig(bootLogger); err != nil {
		return err
	}
	level := config.GetString("logLevel")

	// Logs
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	logFile, err := os.Create(logging.LogFilePath(logsDir, appName, start))
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	defer logFile.Close()

	otelCfg := config.GetOTelConfig()
	var otelLogs, otelMetrics io.WriteCloser
	if otelCfg.Enabled {
		if otelLogs, err = os.Create(filepath.Join(logsDir, appName+".otel.jsonl")); err != nil {
			return fmt.Errorf("create otel log file: %w", err)
		}
		defer otelLogs.Close()
		if otelMetrics, err = os.Create(filepath.Join(logsDir, appName+".metrics.jsonl")); err != nil {
			return fmt.Errorf("create otel metric file: %w", err)
		}
		defer otelMetrics.Close()
	}
	provider, err := otel.New(otel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		BatchTimeout:   otelCfg.BatchTimeout,
		LogWriter:      otelLogs,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
		MetricWriter:   otelMetrics,
		MetricInterval: otelCfg.MetricsEvery,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			bootLogger.Error("otel shutdown", "error", err)
		}
	}()

	// Rig config first so every log record can carry the mode
	store, err := loadRigConfig(bootLogger)
	if err != nil {
		return err
	}

	slogManager := logging.NewSlogManager()
	logOpts := logging.Options{
		Level:    level,
		Stdout:   cmd.OutOrStdout(),
		File:     logFile,
		Provider: provider.LoggerProvider(),
		Context:  logging.AttrFunc("mode", func() string { return store.Snapshot().Mode.String() }),
	}
	if config.GetBool("graylog.enabled") {
		logOpts.GraylogAddr = config.GetString("graylog.address")
	}
	if err := slogManager.Setup(logOpts); err != nil {
		return err
	}
	defer slogManager.Close()
	logger := slogManager.Logger()
	slog.SetDefault(logger)

	cfg := store.Snapshot()
	topo, err := config.GetTopology()
	if err != nil {
		return err
	}
	if err := topo.Validate(len(cfg.Winches)); err != nil {
		return err
	}
	footprint, _ := topo.Footprint()
	logger.Info("starting", "winches", len(cfg.Winches), "controller", topo.ControllerAddr,
		"flyer", topo.FlyerAddr, "http", topo.HTTPAddr, "footprint_m2", footprint)

	// Recording
	backend, err := createStorageBackend(config.GetStorageConfig(), logger, logFile, level)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	session := core.NewSession(start, topo.ControllerAddr, topo.FlyerAddr, len(cfg.Winches))
	if err := backend.StartSession(session); err != nil {
		logger.Warn("start session", "session", session.ID.String(), "error", err)
	}

	// Wiring
	fwd := &inbox{}
	hub := webui.NewHub(store, fwd, logger.With("component", "webui"))
	animator := led.NewAnimator(cfg.Lighting.Animation, led.SinkFunc(func(f led.Frame) {
		hub.Broadcast(streaming.TypeLightFrame, streaming.LightFrame{Winches: f.Winches})
	}), logger.With("component", "led"))
	state := controller.New(cfg, animator, controller.WithLogger(logger.With("component", "controller")))

	udp, err := transport.Listen(topo, fwd, logger.With("component", "transport"))
	if err != nil {
		return err
	}

	d, err := dispatcher.New(logger.With("component", "dispatcher"))
	if err != nil {
		return err
	}
	workers := worker.NewManager(worker.Dependencies{
		State:  state,
		Config: store,
		Sender: udp,
		Hub:    hub,
		Logger: logger.With("component", "worker"),
	}, backend)
	workers.RegisterHandlers(d)

	b, err := bot.New(bot.Dependencies{
		State:      state,
		Config:     store,
		Dispatcher: d,
		Worker:     workers,
		Flyer:      udp,
		Hub:        hub,
		Logger:     logger.With("component", "bot"),
	})
	if err != nil {
		return err
	}
	fwd.bot = b

	mon := monitor.NewService(monitor.Dependencies{
		Mode:           b.Mode,
		Datagrams:      udp.Stats,
		RecordsDropped: recordsDropped(backend),
		LastDBWrite:    workers.GetLastDBWriteDuration,
		Clients:        hub.ClientCount,
		Hub:            hub,
		StatusFile:     filepath.Join(logsDir, "status.txt"),
		Logger:         logger.With("component", "monitor"),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(gctx) })
	g.Go(func() error { return udp.Serve(gctx) })
	g.Go(func() error { return webui.ListenAndServe(gctx, topo.HTTPAddr, hub) })
	g.Go(func() error { return animator.Run(gctx) })
	g.Go(func() error { return mon.Run(gctx) })

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("shutting down after error", "error", runErr)
	} else {
		runErr = nil
		logger.Info("shutting down")
	}

	// drain queued records before closing the recorder
	d.Close()
	if err := backend.Close(); err != nil {
		logger.Error("close storage", "error", err)
	}
	if exp, ok := backend.(storage.Exporter); ok && exp.ExportedFilePath() != "" {
		logger.Info("session exported", "path", exp.ExportedFilePath())
	}
	if err := slogManager.Flush(context.Background()); err != nil {
		logger.Warn("flush logs", "error", err)
	}
	return runErr
}
