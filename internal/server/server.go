// Package server exposes a running playback session to remote viewers: a
// websocket frame feed, a control endpoint, the log summary and Prometheus
// metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OpenTraceLab/OpenTraceSoccer/internal/config"
	"github.com/OpenTraceLab/OpenTraceSoccer/internal/session"
)

// Options configure a Server.
type Options struct {
	Config     config.ServerConfig
	Logger     *log.Logger
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	// DisableLogging drops the request logger middleware.
	DisableLogging bool
}

// Server serves one session.
type Server struct {
	session  *session.Session
	cfg      config.ServerConfig
	logger   *log.Logger
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	viewers  prometheus.Gauge
	router   chi.Router
}

// New builds the server and its routes. It starts no goroutines.
func New(s *session.Session, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "server: ", log.LstdFlags)
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	cfg := opts.Config
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 25
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	srv := &Server{
		session:  s,
		cfg:      cfg,
		logger:   logger,
		gatherer: gatherer,
		viewers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "rcgplay_viewers",
			Help: "Connected websocket viewers",
		}),
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     srv.checkOrigin,
	}
	srv.router = srv.routes(opts.DisableLogging)
	return srv
}

func (s *Server) routes(disableLogging bool) chi.Router {
	r := chi.NewRouter()
	if !disableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/log", s.handleLog)
	r.Post("/control", s.handleControl)
	r.Get("/ws", s.handleWebSocket)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on the configured address until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	hs := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", s.cfg.Addr)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	s.logger.Printf("websocket connection rejected from origin %s", origin)
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"session":  s.session.ID.String(),
		"location": s.session.Location(),
		"state":    s.session.State().String(),
	})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.session.Summary()
	if !ok {
		writeError(w, http.StatusNotFound, "log not loaded yet")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var cmd session.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.session.Control(cmd); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, session.ErrNoLog) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
