package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/umputun/newscrawl/pkg/domain"
	"github.com/umputun/newscrawl/pkg/repository"
)

// SQLite upserts items into the sqlite document store
type SQLite struct {
	cfg   repository.Config
	key   domain.KeyField
	repos *repository.Repositories
}

// NewSQLite makes a sqlite sink, settings: dsn, key (fingerprint|url_hash), max_open_conns
func NewSQLite(settings Settings) (Sink, error) {
	key, err := keyField(settings)
	if err != nil {
		return nil, err
	}
	maxOpen, err := settings.Int("max_open_conns", 1)
	if err != nil {
		return nil, err
	}
	return &SQLite{
		cfg: repository.Config{
			DSN:          settings.String("dsn", repository.DefaultDSN),
			MaxOpenConns: maxOpen,
			MaxIdleConns: maxOpen,
		},
		key: key,
	}, nil
}

// Open opens the database and applies the schema
func (s *SQLite) Open(ctx context.Context) error {
	repos, err := repository.NewRepositories(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	s.repos = repos
	return nil
}

// Send upserts the item by the configured key
func (s *SQLite) Send(ctx context.Context, item *domain.NewsItem) error {
	if s.repos == nil {
		return errors.New("sqlite sink is not open")
	}
	return s.repos.News.Upsert(ctx, s.key, item)
}

// Flush is a no-op, every upsert is committed
func (s *SQLite) Flush(context.Context) error { return nil }

// Close closes the database
func (s *SQLite) Close() error {
	if s.repos == nil {
		return nil
	}
	err := s.repos.Close()
	s.repos = nil
	return err
}

// Repositories exposes the underlying store
func (s *SQLite) Repositories() *repository.Repositories { return s.repos }
