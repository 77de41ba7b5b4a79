package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/umputun/newscrawl/pkg/domain"
	"github.com/umputun/newscrawl/pkg/pipeline"
	"github.com/umputun/newscrawl/pkg/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// statusResponse is the body of GET /api/v1/status
type statusResponse struct {
	Status  string          `json:"status"`
	Version string          `json:"version"`
	RunID   string          `json:"run_id,omitempty"`
	Sink    string          `json:"sink,omitempty"`
	Sources []string        `json:"sources"`
	Uptime  string          `json:"uptime"`
	Time    time.Time       `json:"time"`
	Stats   *pipeline.Stats `json:"stats,omitempty"`
	Stored  *int            `json:"stored,omitempty"`
}

// itemsResponse is the body of GET /api/v1/items
type itemsResponse struct {
	Source string            `json:"source,omitempty"`
	Count  int               `json:"count"`
	Items  []domain.NewsItem `json:"items"`
}

// statusHandler returns run identity and pipeline counters
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:  "ok",
		Version: s.cfg.Version,
		RunID:   s.cfg.RunID,
		Sink:    s.cfg.Sink,
		Sources: s.cfg.Sources,
		Uptime:  time.Since(s.started).Truncate(time.Second).String(),
		Time:    time.Now().UTC(),
	}
	if resp.Sources == nil {
		resp.Sources = []string{}
	}
	if s.stats != nil {
		st := s.stats.Stats()
		resp.Stats = &st
	}
	if s.items != nil {
		count, err := s.items.Count(r.Context())
		if err != nil {
			log.Printf("[WARN] can't count stored items: %v", err)
		} else {
			resp.Stored = &count
		}
	}
	RenderJSON(w, r, http.StatusOK, resp)
}

// listItemsHandler returns stored items, optionally filtered by ?source= and capped by ?limit=
func (s *Server) listItemsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			RenderError(w, r, errors.New("invalid limit"), http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}
	source := r.URL.Query().Get("source")

	items, err := s.items.List(r.Context(), source, limit)
	if err != nil {
		log.Printf("[ERROR] can't list items: %v", err)
		RenderError(w, r, errors.New("can't list items"), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []domain.NewsItem{}
	}
	RenderJSON(w, r, http.StatusOK, itemsResponse{Source: source, Count: len(items), Items: items})
}

// getItemHandler returns a single item by its document key
func (s *Server) getItemHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	item, err := s.items.Get(r.Context(), key)
	if errors.Is(err, repository.ErrNotFound) {
		RenderError(w, r, errors.New("item not found"), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[ERROR] can't get item %s: %v", key, err)
		RenderError(w, r, errors.New("can't get item"), http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, item)
}
