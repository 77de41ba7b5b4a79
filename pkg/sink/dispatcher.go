package sink

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/newscrawl/pkg/domain"
)

// Dispatcher delivers items to one sink and counts the results.
// Failed sends are reported to the caller and never retried.
type Dispatcher struct {
	name    string
	sink    Sink
	started atomic.Bool
	sent    atomic.Int64
	failed  atomic.Int64
}

// NewDispatcher wraps a sink
func NewDispatcher(name string, s Sink) *Dispatcher {
	return &Dispatcher{name: name, sink: s}
}

// Name returns the backend name
func (d *Dispatcher) Name() string { return d.name }

// Start opens the sink, failure here is fatal for the run
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.sink.Open(ctx); err != nil {
		return fmt.Errorf("open %s sink: %w", d.name, err)
	}
	d.started.Store(true)
	lgr.Printf("[INFO] sink %s opened", d.name)
	return nil
}

// Dispatch sends one item
func (d *Dispatcher) Dispatch(ctx context.Context, item *domain.NewsItem) error {
	if !d.started.Load() {
		d.failed.Add(1)
		return fmt.Errorf("dispatch to %s: sink not started", d.name)
	}
	if err := d.sink.Send(ctx, item); err != nil {
		d.failed.Add(1)
		return fmt.Errorf("dispatch %s to %s: %w", item.URL, d.name, err)
	}
	d.sent.Add(1)
	return nil
}

// Stop flushes and closes the sink
func (d *Dispatcher) Stop(ctx context.Context) error {
	if !d.started.CompareAndSwap(true, false) {
		return nil
	}
	var errs []error
	if err := d.sink.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush %s sink: %w", d.name, err))
	}
	if err := d.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s sink: %w", d.name, err))
	}
	lgr.Printf("[INFO] sink %s stopped, sent %d, failed %d", d.name, d.sent.Load(), d.failed.Load())
	return errors.Join(errs...)
}

// Stats returns numbers of sent and failed items
func (d *Dispatcher) Stats() (sent, failed int64) {
	return d.sent.Load(), d.failed.Load()
}
