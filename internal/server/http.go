package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dmmcquay/leelawatcher/internal/archive"
	"github.com/dmmcquay/leelawatcher/internal/health"
	"github.com/dmmcquay/leelawatcher/internal/logging"
	"github.com/dmmcquay/leelawatcher/internal/metrics"
	"github.com/dmmcquay/leelawatcher/internal/ratelimit"
	"github.com/dmmcquay/leelawatcher/internal/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultGameListLimit caps /api/games when no limit is given.
const DefaultGameListLimit = 50

// BoardSource exposes the focus board and the navigation list.
type BoardSource interface {
	Snapshot() (registry.Snapshot, bool)
	List() []registry.Summary
}

// Navigator moves the focus.
type Navigator interface {
	Navigate(forward bool) bool
}

// GameArchive lists and fetches archived games.
type GameArchive interface {
	List(limit int) ([]archive.Game, error)
	Get(id string) (*archive.Game, error)
}

// Option configures an HTTPServer.
type Option func(*HTTPServer)

// WithBoards exposes the board API and, with a hub, the websocket endpoint.
func WithBoards(b BoardSource) Option {
	return func(s *HTTPServer) { s.boards = b }
}

// WithNavigator enables the focus navigation endpoints.
func WithNavigator(n Navigator) Option {
	return func(s *HTTPServer) { s.navigator = n }
}

// WithArchive enables the archived game endpoints.
func WithArchive(a GameArchive) Option {
	return func(s *HTTPServer) { s.archive = a }
}

// WithHub mounts the websocket endpoint at /ws.
func WithHub(h *Hub) Option {
	return func(s *HTTPServer) { s.hub = h }
}

// WithRateLimiter throttles the /api routes per remote address.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *HTTPServer) { s.limiter = l }
}

// HTTPServer serves health, metrics, the board API and the websocket feed.
type HTTPServer struct {
	server     *http.Server
	logger     logging.ContextLogger
	checker    *health.Checker
	prometheus *metrics.PrometheusCollector

	boards    BoardSource
	navigator Navigator
	archive   GameArchive
	hub       *Hub
	limiter   *ratelimit.Limiter
}

// NewHTTPServer creates a server listening on addr.
func NewHTTPServer(addr string, logger logging.ContextLogger, checker *health.Checker, opts ...Option) *HTTPServer {
	s := &HTTPServer{
		logger:     logger,
		checker:    checker,
		prometheus: metrics.NewPrometheusCollector(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.logger))
	r.Use(PrometheusMiddleware(s.prometheus))

	r.Get("/health", s.checker.LivenessHandler())
	r.Get("/ready", s.checker.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(s.limiter))

		if s.boards != nil {
			r.Get("/api/focus", s.handleFocus)
			r.Get("/api/boards", s.handleBoards)
		}
		if s.navigator != nil {
			r.Post("/api/focus/next", s.handleNavigate(true))
			r.Post("/api/focus/previous", s.handleNavigate(false))
		}
		if s.archive != nil {
			r.Get("/api/games", s.handleGames)
			r.Get("/api/games/{id}", s.handleGame)
			r.Get("/api/games/{id}/sgf", s.handleGameSGF)
		}
	})
	if s.hub != nil {
		r.Get("/ws", s.hub.ServeWS)
	}
	return r
}

// Handler returns the router.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start listens on the configured address and serves in the background. A
// listen failure is returned immediately.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("Starting HTTP server", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

type navigateResponse struct {
	Moved bool               `json:"moved"`
	Board *registry.Snapshot `json:"board,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *HTTPServer) handleFocus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.boards.Snapshot()
	if !ok {
		s.writeError(w, r, http.StatusNotFound, "no boards")
		return
	}
	s.writeJSON(w, r, http.StatusOK, snap)
}

func (s *HTTPServer) handleBoards(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.boards.List())
}

func (s *HTTPServer) handleNavigate(forward bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := navigateResponse{Moved: s.navigator.Navigate(forward)}
		if s.boards != nil {
			if snap, ok := s.boards.Snapshot(); ok {
				resp.Board = &snap
			}
		}
		if s.hub != nil {
			s.hub.BoardChanged()
		}
		s.writeJSON(w, r, http.StatusOK, resp)
	}
}

func (s *HTTPServer) handleGames(w http.ResponseWriter, r *http.Request) {
	limit := DefaultGameListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	games, err := s.archive.List(limit)
	if err != nil {
		s.logger.WithContext(r.Context()).Error("Failed to list archived games", "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "failed to list games")
		return
	}
	s.writeJSON(w, r, http.StatusOK, games)
}

func (s *HTTPServer) game(w http.ResponseWriter, r *http.Request) (*archive.Game, bool) {
	g, err := s.archive.Get(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, archive.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, err.Error())
		return nil, false
	case err != nil:
		s.logger.WithContext(r.Context()).Error("Failed to load archived game", "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "failed to load game")
		return nil, false
	}
	return g, true
}

func (s *HTTPServer) handleGame(w http.ResponseWriter, r *http.Request) {
	if g, ok := s.game(w, r); ok {
		s.writeJSON(w, r, http.StatusOK, g)
	}
}

func (s *HTTPServer) handleGameSGF(w http.ResponseWriter, r *http.Request) {
	g, ok := s.game(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/x-go-sgf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+g.Seed+`.sgf"`)
	w.Write([]byte(g.SGF))
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithContext(r.Context()).Error("Failed to encode response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.writeJSON(w, r, status, errorResponse{Error: msg})
}
