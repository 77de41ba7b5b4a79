package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/umputun/newscrawl/pkg/domain"
	"github.com/umputun/newscrawl/pkg/pipeline"
)

//go:generate moq -out mocks/stats.go -pkg mocks -skip-ensure -fmt goimports . StatsProvider
//go:generate moq -out mocks/items.go -pkg mocks -skip-ensure -fmt goimports . ItemStore

// Server exposes crawl status, stored items and prometheus metrics over HTTP
type Server struct {
	cfg      Config
	stats    StatsProvider
	items    ItemStore
	gatherer prometheus.Gatherer
	started  time.Time

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Config defines server parameters
type Config struct {
	Listen  string
	Timeout time.Duration
	Version string
	Debug   bool
	RunID   string
	Sink    string
	Sources []string
}

// StatsProvider reports pipeline counters of the running crawl
type StatsProvider interface {
	Stats() pipeline.Stats
}

// ItemStore gives read access to assembled items, available with the sqlite sink only
type ItemStore interface {
	Get(ctx context.Context, key string) (*domain.NewsItem, error)
	List(ctx context.Context, source string, limit int) ([]domain.NewsItem, error)
	Count(ctx context.Context) (int, error)
}

// New initializes a new server instance. items and gatherer are optional,
// routes depending on them are not registered when nil.
func New(cfg Config, stats StatsProvider, items ItemStore, gatherer prometheus.Gatherer) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	s := &Server{
		cfg:      cfg,
		stats:    stats,
		items:    items,
		gatherer: gatherer,
		started:  time.Now(),
		router:   routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the configured router, used in tests and for embedding
func (s *Server) Handler() http.Handler { return s.router }

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	log.Printf("[INFO] starting server on %s", s.cfg.Listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.Timeout,
		ReadTimeout:       s.cfg.Timeout,
		WriteTimeout:      s.cfg.Timeout,
	}
	httpServer := s.httpServer
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("newscrawl", "umputun", s.cfg.Version))
	s.router.Use(rest.Ping)

	if s.cfg.Debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		if s.items != nil {
			r.HandleFunc("GET /items", s.listItemsHandler)
			r.HandleFunc("GET /items/{key}", s.getItemHandler)
		}
	})

	if s.gatherer != nil {
		s.router.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
