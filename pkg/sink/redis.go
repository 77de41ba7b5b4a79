package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-pkgz/lgr"
	"github.com/redis/go-redis/v9"

	"github.com/umputun/newscrawl/pkg/domain"
)

// queue client kinds
const (
	QueueStream = "stream"
	QueueList   = "list"
)

// queueClient publishes encoded items to redis
type queueClient interface {
	Kind() string
	Probe(ctx context.Context) error
	Publish(ctx context.Context, item *domain.NewsItem, payload []byte) error
}

// Redis publishes items to a redis queue. Streams (XADD) are the primary client and a
// list (RPUSH) the alternate one; the first client passing its probe at Open is used
// for the whole run. Send returns only after redis acknowledged the write.
type Redis struct {
	opts    *redis.Options
	mode    string
	stream  string
	listKey string
	maxLen  int64
	runID   string

	mu     sync.Mutex
	client *redis.Client
	queue  queueClient
}

// NewRedis makes a redis sink, settings: addr, password, db, stream, list_key,
// mode (auto|stream|list), max_len, run_id
func NewRedis(settings Settings) (Sink, error) {
	db, err := settings.Int("db", 0)
	if err != nil {
		return nil, err
	}
	maxLen, err := settings.Int("max_len", 0)
	if err != nil {
		return nil, err
	}
	mode := strings.ToLower(settings.String("mode", "auto"))
	if mode != "auto" && mode != QueueStream && mode != QueueList {
		return nil, fmt.Errorf("invalid mode %q, expected auto, stream or list", mode)
	}
	stream := settings.String("stream", "news_items")
	return &Redis{
		opts: &redis.Options{
			Addr:     settings.String("addr", "localhost:6379"),
			Password: settings.String("password", ""),
			DB:       db,
		},
		mode:    mode,
		stream:  stream,
		listKey: settings.String("list_key", stream),
		maxLen:  int64(maxLen),
		runID:   settings.String("run_id", ""),
	}, nil
}

// Open connects and selects the queue client
func (r *Redis) Open(ctx context.Context) error {
	client := redis.NewClient(r.opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("connect to redis %s: %w", r.opts.Addr, err)
	}

	var candidates []queueClient
	stream := &streamQueue{client: client, stream: r.stream, maxLen: r.maxLen, runID: r.runID}
	list := &listQueue{client: client, key: r.listKey}
	switch r.mode {
	case QueueStream:
		candidates = []queueClient{stream}
	case QueueList:
		candidates = []queueClient{list}
	default:
		candidates = []queueClient{stream, list}
	}

	var errs []error
	for _, q := range candidates {
		if err := q.Probe(ctx); err != nil {
			lgr.Printf("[WARN] redis %s client unavailable: %v", q.Kind(), err)
			errs = append(errs, fmt.Errorf("%s: %w", q.Kind(), err))
			continue
		}
		r.mu.Lock()
		r.client, r.queue = client, q
		r.mu.Unlock()
		lgr.Printf("[INFO] redis sink uses %s client", q.Kind())
		return nil
	}
	_ = client.Close()
	return fmt.Errorf("no usable redis queue client: %w", errors.Join(errs...))
}

// Kind returns the selected client kind, empty before Open
func (r *Redis) Kind() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queue == nil {
		return ""
	}
	return r.queue.Kind()
}

// Send publishes the item
func (r *Redis) Send(ctx context.Context, item *domain.NewsItem) error {
	r.mu.Lock()
	q := r.queue
	r.mu.Unlock()
	if q == nil {
		return errors.New("redis sink is not open")
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	if err := q.Publish(ctx, item, payload); err != nil {
		return fmt.Errorf("publish to redis %s: %w", q.Kind(), err)
	}
	return nil
}

// Flush is a no-op, every publish is acknowledged
func (r *Redis) Flush(context.Context) error { return nil }

// Close closes the connection
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client, r.queue = nil, nil
	return err
}

type streamQueue struct {
	client *redis.Client
	stream string
	maxLen int64
	runID  string
}

func (s *streamQueue) Kind() string { return QueueStream }

func (s *streamQueue) Probe(ctx context.Context) error {
	return s.client.XLen(ctx, s.stream).Err()
}

func (s *streamQueue) Publish(ctx context.Context, item *domain.NewsItem, payload []byte) error {
	values := map[string]any{
		"item":        string(payload),
		"source":      item.Source,
		"url_hash":    item.URLHash,
		"fingerprint": item.Fingerprint,
	}
	if s.runID != "" {
		values["run_id"] = s.runID
	}
	args := &redis.XAddArgs{Stream: s.stream, Values: values}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.client.XAdd(ctx, args).Err()
}

type listQueue struct {
	client *redis.Client
	key    string
}

func (l *listQueue) Kind() string { return QueueList }

func (l *listQueue) Probe(ctx context.Context) error {
	return l.client.LLen(ctx, l.key).Err()
}

func (l *listQueue) Publish(ctx context.Context, _ *domain.NewsItem, payload []byte) error {
	return l.client.RPush(ctx, l.key, payload).Err()
}
