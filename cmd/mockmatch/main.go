package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/duel-legacy/matchmaker/internal/config"
	"github.com/duel-legacy/matchmaker/internal/mockserver"
)

func main() {
	configPath := flag.String("config", "matchmaker.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	matchAfter := flag.Int("match-after", 0, "Queue size that triggers a match")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.MockServer.Port = *port
	}
	if *matchAfter > 0 {
		cfg.MockServer.MatchAfter = *matchAfter
	}

	logger, closer, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	srv := mockserver.NewServer(mockserver.FromConfig(cfg.MockServer), logger)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mockserver.ListenAndServe(ctx, cfg.MockServer.Host, cfg.MockServer.Port, mux, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}
