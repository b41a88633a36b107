package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/duel-legacy/matchmaker/internal/app"
	"github.com/duel-legacy/matchmaker/internal/config"
	"github.com/duel-legacy/matchmaker/internal/conn"
	"github.com/duel-legacy/matchmaker/internal/matchmaking"
	"github.com/duel-legacy/matchmaker/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "matchmaker.yaml", "Path to config file")
	wsURL := flag.String("url", "", "Override the matchmaking WebSocket URL")
	token := flag.String("token", os.Getenv("MATCHMAKER_TOKEN"), "Auth token (default $MATCHMAKER_TOKEN)")
	metricsAddr := flag.String("metrics", "", "Serve Prometheus metrics on this address")
	logFile := flag.String("log-file", "", "Write logs to this file")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *wsURL != "" {
		cfg.Matchmaking.URL = *wsURL
	}
	if *metricsAddr != "" {
		cfg.Metrics.Listen = *metricsAddr
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if *token == "" {
		return errors.New("an auth token is required (--token or $MATCHMAKER_TOKEN)")
	}

	// The TUI owns the terminal, so logs are dropped unless a file is set.
	logger, closer, err := cfg.Log.NewLogger(io.Discard)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(metrics.WithRegistry(registry))
	if cfg.Metrics.Listen != "" {
		go serveMetrics(ctx, cfg.Metrics.Listen, registry, logger)
	}

	mc := cfg.Matchmaking
	attempts := mc.MaxReconnectAttempts
	if attempts == 0 {
		attempts = conn.NoReconnect
	}
	manager := conn.NewManager(conn.Config{
		URL:                  mc.URL,
		ReconnectDelay:       mc.ReconnectDelay,
		MaxReconnectAttempts: attempts,
		PingInterval:         mc.PingInterval,
		WriteTimeout:         mc.WriteTimeout,
		HandshakeTimeout:     mc.HandshakeTimeout,
	}, conn.WithLogger(logger), conn.WithMetrics(mt))

	ctl := matchmaking.New(manager,
		matchmaking.WithLogger(logger),
		matchmaking.WithMetrics(mt),
		matchmaking.WithSearchTimeout(mc.SearchTimeout),
		matchmaking.WithResyncOnReconnect(mc.ResyncOnReconnect),
	)
	updates, unsubscribe := ctl.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctl.Run(ctx)
	}()

	logger.Info("starting", "url", mc.URL)
	p := tea.NewProgram(app.New(ctl, updates, *token), tea.WithAltScreen())
	_, err = p.Run()

	cancel()
	<-done
	return err
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server", "error", err)
	}
}
