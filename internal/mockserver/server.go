// Package mockserver is a local matchmaking service for development and
// integration tests. It speaks the same frames as the production service.
package mockserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duel-legacy/matchmaker/internal/config"
	"github.com/duel-legacy/matchmaker/internal/protocol"
)

type Config struct {
	MatchAfter int
	DuelHost   string
	DuelPort   int
}

// FromConfig maps the mockserver section of the YAML config.
func FromConfig(c config.MockServerConfig) Config {
	return Config{MatchAfter: c.MatchAfter, DuelHost: c.DuelHost, DuelPort: c.DuelPort}
}

type Server struct {
	hub      *Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(cfg Config, logger *slog.Logger) *Server {
	if cfg.MatchAfter < 2 {
		cfg.MatchAfter = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mockserver")
	s := &Server{
		hub:    newHub(cfg, logger),
		logger: logger,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: checkOrigin}
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		st := s.hub.Stats()
		fmt.Fprintf(w, "ok online=%d queued=%d\n", st.Online, st.Queued)
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	p := s.hub.add(conn, token)
	go func() {
		defer s.hub.remove(p)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			cmd, err := protocol.DecodeCommand(data)
			if err != nil {
				s.logger.Warn("bad client frame", "player", p.name, "error", err)
				continue
			}
			s.hub.handle(p, cmd)
		}
	}()
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Host == r.Host {
		return true
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// ListenAndServe serves until ctx is done.
func ListenAndServe(ctx context.Context, host string, port int, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("mock matchmaking server listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
