// Package sink delivers finished news items to output backends.
//
// Backends are resolved from a configured identifier through a Registry of factories:
// jsonl (append-only line files), sqlite (document upsert), elasticsearch (document index)
// and redis (queue publish). Each backend owns its open, flush and close lifecycle,
// a Dispatcher wraps one backend for the pipeline.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/umputun/newscrawl/pkg/domain"
)

// ErrUnknownBackend is returned for identifiers with no registered factory
var ErrUnknownBackend = errors.New("unknown sink backend")

// Sink accepts news items. Implementations are safe for concurrent Send calls.
type Sink interface {
	Open(ctx context.Context) error
	Send(ctx context.Context, item *domain.NewsItem) error
	Flush(ctx context.Context) error
	Close() error
}

// Factory makes a sink from settings, invalid settings are reported immediately
type Factory func(settings Settings) (Sink, error)

// Registry maps backend identifiers to factories
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with all built-in backends and their aliases
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}}
	r.Register(NewJSONL, "jsonl", "file")
	r.Register(NewSQLite, "sqlite", "sqlite3", "document")
	r.Register(NewElasticsearch, "elasticsearch", "es")
	r.Register(NewRedis, "redis", "queue")
	return r
}

// Register adds a factory under one or more identifiers
func (r *Registry) Register(f Factory, ids ...string) {
	for _, id := range ids {
		r.factories[strings.ToLower(id)] = f
	}
}

// Names returns registered identifiers, sorted
func (r *Registry) Names() []string {
	res := make([]string, 0, len(r.factories))
	for k := range r.factories {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

// Resolve maps an identifier to its registered name. Identifiers are matched
// case-insensitively and may be given as a class path like
// "news_scraper.sinks.jsonl.JsonlSink", where the module segment or the class name
// without its "Sink" suffix selects the backend.
func (r *Registry) Resolve(id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return "", fmt.Errorf("%w: empty identifier", ErrUnknownBackend)
	}
	if _, ok := r.factories[id]; ok {
		return id, nil
	}
	if parts := strings.Split(id, "."); len(parts) > 1 {
		candidates := []string{strings.TrimSuffix(parts[len(parts)-1], "sink")}
		if len(parts) > 2 {
			candidates = append(candidates, parts[len(parts)-2])
		}
		for _, c := range candidates {
			if _, ok := r.factories[c]; ok {
				return c, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q, known: %s", ErrUnknownBackend, id, strings.Join(r.Names(), ", "))
}

// New resolves id and builds the sink, returning it with the resolved name
func (r *Registry) New(id string, settings Settings) (Sink, string, error) {
	name, err := r.Resolve(id)
	if err != nil {
		return nil, "", err
	}
	if settings == nil {
		settings = Settings{}
	}
	s, err := r.factories[name](settings)
	if err != nil {
		return nil, "", fmt.Errorf("make %s sink: %w", name, err)
	}
	return s, name, nil
}

// keyField reads the upsert key setting of document-store backends
func keyField(settings Settings) (domain.KeyField, error) {
	switch k := domain.KeyField(strings.ToLower(settings.String("key", string(domain.KeyFingerprint)))); k {
	case domain.KeyFingerprint, domain.KeyURLHash:
		return k, nil
	default:
		return "", fmt.Errorf("invalid key %q, expected fingerprint or url_hash", k)
	}
}
