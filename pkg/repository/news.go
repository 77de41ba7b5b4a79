package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/umputun/newscrawl/pkg/domain"
)

// ErrNotFound is returned for a missing document key
var ErrNotFound = errors.New("not found")

// newsRow is a news item with its document key
type newsRow struct {
	DocKey   string `db:"doc_key"`
	KeyField string `db:"key_field"`
	domain.NewsItem
}

const newsColumns = `doc_key, key_field, title, author, text, summary, url, source, published_at, scraped_at,
	url_hash, fingerprint, author_source, summary_max_chars, summary_truncated, parse_ok, parse_error,
	extraction_method, content_length_chars, category, sentiment`

// NewsRepository stores news items keyed by fingerprint or url_hash
type NewsRepository struct {
	db *sqlx.DB
}

// NewNewsRepository creates a new news repository
func NewNewsRepository(db *sqlx.DB) *NewsRepository {
	return &NewsRepository{db: db}
}

// Upsert inserts the item or replaces the stored one with the same key.
// Lock errors are retried with backoff.
func (r *NewsRepository) Upsert(ctx context.Context, field domain.KeyField, item *domain.NewsItem) error {
	key := item.Key(field)
	if key == "" {
		return fmt.Errorf("upsert %s: empty %s", item.URL, field)
	}
	if field != domain.KeyURLHash {
		field = domain.KeyFingerprint
	}
	row := newsRow{DocKey: key, KeyField: string(field), NewsItem: *item}

	query := `INSERT INTO news_items (` + newsColumns + `) VALUES (
		:doc_key, :key_field, :title, :author, :text, :summary, :url, :source, :published_at, :scraped_at,
		:url_hash, :fingerprint, :author_source, :summary_max_chars, :summary_truncated, :parse_ok, :parse_error,
		:extraction_method, :content_length_chars, :category, :sentiment)
		ON CONFLICT(doc_key) DO UPDATE SET
			key_field = excluded.key_field,
			title = excluded.title,
			author = excluded.author,
			text = excluded.text,
			summary = excluded.summary,
			url = excluded.url,
			source = excluded.source,
			published_at = excluded.published_at,
			scraped_at = excluded.scraped_at,
			url_hash = excluded.url_hash,
			fingerprint = excluded.fingerprint,
			author_source = excluded.author_source,
			summary_max_chars = excluded.summary_max_chars,
			summary_truncated = excluded.summary_truncated,
			parse_ok = excluded.parse_ok,
			parse_error = excluded.parse_error,
			extraction_method = excluded.extraction_method,
			content_length_chars = excluded.content_length_chars,
			category = excluded.category,
			sentiment = excluded.sentiment,
			updated_at = CURRENT_TIMESTAMP`

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err := retrier.Do(ctx, func() error {
		if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("upsert news item %s: %w", key, err)}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// Get returns the item stored under key
func (r *NewsRepository) Get(ctx context.Context, key string) (*domain.NewsItem, error) {
	var row newsRow
	err := r.db.GetContext(ctx, &row, `SELECT `+newsColumns+` FROM news_items WHERE doc_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return &row.NewsItem, nil
}

// List returns items of a source (all sources if empty), most recently scraped first
func (r *NewsRepository) List(ctx context.Context, source string, limit int) ([]domain.NewsItem, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + newsColumns + ` FROM news_items`
	args := []any{}
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY scraped_at DESC, doc_key LIMIT ?`
	args = append(args, limit)

	var rows []newsRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list news items: %w", err)
	}
	res := make([]domain.NewsItem, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.NewsItem)
	}
	return res, nil
}

// Count returns the number of stored items
func (r *NewsRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM news_items`); err != nil {
		return 0, fmt.Errorf("count news items: %w", err)
	}
	return count, nil
}
