package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"easyquery/config"
	"easyquery/internal/application"
	"easyquery/internal/infra/api"
	"easyquery/internal/infra/audio"
	"easyquery/internal/infra/control"
	"easyquery/internal/infra/desktop"
	"easyquery/internal/infra/metrics"
	"easyquery/internal/infra/prefs"
	"easyquery/internal/infra/pushover"
	"easyquery/internal/ui"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults are used when empty)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("loading .env", "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	timeout, err := cfg.RequestTimeout()
	if err != nil {
		logger.Error("invalid api timeout", "error", err)
		os.Exit(1)
	}

	httpClient, err := api.NewHTTPClient(timeout, cfg.API.EnableHTTP2)
	if err != nil {
		logger.Error("creating http client", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	client := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Endpoints: api.Endpoints{
			Connect:      cfg.API.ConnectPath,
			Schema:       cfg.API.SchemaPath,
			Query:        cfg.API.QueryPath,
			SpeechToText: cfg.API.SpeechPath,
		},
		SpeechProviderField: cfg.API.SpeechProviderField,
	}, httpClient, m)

	mic := metrics.InstrumentMicrophone(createMicrophone(cfg.Audio, logger), m)
	capture := application.NewCapture(mic, cfg.Audio.Encodings, logger)

	controller := application.NewController(
		client,
		capture,
		prefs.NewFileStore(cfg.Preferences.Path, logger),
		createNotifier(cfg, logger),
		desktop.NewClipboard(),
		logger,
	)

	renderer := ui.NewTerminalRenderer()
	controller.OnProgress(renderer.Render)
	controller.LoadPreferences(ctx)

	tasks := application.NewTasks(ctx, renderer.Render, logger)

	if cfg.Control.Enabled {
		server := control.NewServer(control.Config{
			Addr:      cfg.Control.Addr,
			AuthToken: cfg.Control.AuthToken,
			RateLimit: cfg.Control.RateLimit,
		}, controller, m.Handler(), logger)
		server.OnRender(renderer.Render)

		if err := server.Start(ctx); err != nil {
			logger.Error("starting control server", "error", err)
			os.Exit(1)
		}
		defer server.Stop()
	}

	logger.Info("starting easyquery",
		"api", cfg.API.BaseURL,
		"microphone", mic.Name(),
		"provider", controller.Provider(),
	)

	shell := ui.NewShell(os.Stdin, renderer, controller, tasks, logger)
	if err := shell.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("shell error", "error", err)
	}

	if n := tasks.CancelAll(); n > 0 {
		logger.Info("canceled pending requests", "count", n)
	}
	tasks.Wait()
}

func createMicrophone(cfg config.AudioConfig, logger *slog.Logger) application.Microphone {
	switch cfg.Source {
	case "file":
		return audio.NewFileMicrophone(cfg.File, cfg.ChunkSize)
	case "microphone":
		return audio.NewMicrophone(cfg.SampleRate, cfg.Channels, cfg.ChunkSize, logger)
	default:
		logger.Warn("unknown audio source, using microphone", "source", cfg.Source)
		return audio.NewMicrophone(cfg.SampleRate, cfg.Channels, cfg.ChunkSize, logger)
	}
}

func createNotifier(cfg *config.Config, logger *slog.Logger) application.Notifier {
	switch {
	case cfg.Pushover.Enabled:
		logger.Debug("notifications via pushover")
		return pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey)
	case cfg.Notify.Desktop:
		logger.Debug("notifications via desktop")
		return desktop.NewNotifier("EasyQuery")
	default:
		return &application.NoopNotifier{}
	}
}

// setupLogger writes to stderr so logs never mix with shell output on
// stdout. A log file, when set, is rotated by lumberjack.
func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		})
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}
