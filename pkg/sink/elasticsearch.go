package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/go-pkgz/repeater/v2"

	"github.com/umputun/newscrawl/pkg/domain"
)

// Elasticsearch indexes items as documents with the configured key as id,
// re-indexing a key replaces the document
type Elasticsearch struct {
	cfg     elasticsearch.Config
	index   string
	key     domain.KeyField
	refresh bool
	retries int
	client  *elasticsearch.Client
}

// NewElasticsearch makes an elasticsearch sink, settings: addresses, index, username,
// password, key (fingerprint|url_hash), refresh (refresh index on flush), retries
func NewElasticsearch(settings Settings) (Sink, error) {
	key, err := keyField(settings)
	if err != nil {
		return nil, err
	}
	refresh, err := settings.Bool("refresh", false)
	if err != nil {
		return nil, err
	}
	retries, err := settings.Int("retries", 5)
	if err != nil {
		return nil, err
	}
	return &Elasticsearch{
		cfg: elasticsearch.Config{
			Addresses: settings.Strings("addresses", []string{settings.String("url", "http://localhost:9200")}),
			Username:  settings.String("username", ""),
			Password:  settings.String("password", ""),
		},
		index:   settings.String("index", "news_items"),
		key:     key,
		refresh: refresh,
		retries: max(retries, 1),
	}, nil
}

// Open creates the client and checks the cluster is reachable
func (e *Elasticsearch) Open(ctx context.Context) error {
	client, err := elasticsearch.NewClient(e.cfg)
	if err != nil {
		return fmt.Errorf("create elasticsearch client: %w", err)
	}

	retrier := repeater.NewBackoff(e.retries, 100*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err = retrier.Do(ctx, func() error {
		res, infoErr := client.Info(client.Info.WithContext(ctx))
		if infoErr != nil {
			return infoErr
		}
		defer drain(res.Body)
		if res.IsError() {
			return fmt.Errorf("cluster info: %s", res.String())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("connect to elasticsearch %v: %w", e.cfg.Addresses, err)
	}
	e.client = client
	return nil
}

// Send indexes the item
func (e *Elasticsearch) Send(ctx context.Context, item *domain.NewsItem) error {
	if e.client == nil {
		return errors.New("elasticsearch sink is not open")
	}
	id := item.Key(e.key)
	if id == "" {
		return fmt.Errorf("index %s: empty %s", item.URL, e.key)
	}
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	res, err := e.client.Index(
		e.index,
		bytes.NewReader(body),
		e.client.Index.WithContext(ctx),
		e.client.Index.WithDocumentID(id),
	)
	if err != nil {
		return fmt.Errorf("index document %s: %w", id, err)
	}
	defer drain(res.Body)
	if res.IsError() {
		return fmt.Errorf("index document %s: %s", id, res.String())
	}
	return nil
}

// Flush refreshes the index if configured
func (e *Elasticsearch) Flush(ctx context.Context) error {
	if e.client == nil || !e.refresh {
		return nil
	}
	res, err := e.client.Indices.Refresh(
		e.client.Indices.Refresh.WithContext(ctx),
		e.client.Indices.Refresh.WithIndex(e.index),
	)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", e.index, err)
	}
	defer drain(res.Body)
	if res.IsError() {
		return fmt.Errorf("refresh %s: %s", e.index, res.String())
	}
	return nil
}

// Close releases the client
func (e *Elasticsearch) Close() error {
	e.client = nil
	return nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
