package pipeline

import (
	"sync/atomic"

	"github.com/umputun/newscrawl/pkg/domain"
)

// Stats is a snapshot of pipeline counters
type Stats struct {
	Pages          int64                             `json:"pages"`
	Dropped        int64                             `json:"dropped"`
	Items          int64                             `json:"items"`
	ParseFailures  int64                             `json:"parse_failures"`
	Dispatched     int64                             `json:"dispatched"`
	DispatchErrors int64                             `json:"dispatch_errors"`
	Enqueued       int64                             `json:"enqueued"`
	Methods        map[domain.ExtractionMethod]int64 `json:"methods"`
}

// Add returns the sum of two snapshots
func (s Stats) Add(other Stats) Stats {
	res := Stats{
		Pages:          s.Pages + other.Pages,
		Dropped:        s.Dropped + other.Dropped,
		Items:          s.Items + other.Items,
		ParseFailures:  s.ParseFailures + other.ParseFailures,
		Dispatched:     s.Dispatched + other.Dispatched,
		DispatchErrors: s.DispatchErrors + other.DispatchErrors,
		Enqueued:       s.Enqueued + other.Enqueued,
		Methods:        map[domain.ExtractionMethod]int64{},
	}
	for k, v := range s.Methods {
		res.Methods[k] += v
	}
	for k, v := range other.Methods {
		res.Methods[k] += v
	}
	return res
}

type counters struct {
	pages          atomic.Int64
	dropped        atomic.Int64
	items          atomic.Int64
	parseFailures  atomic.Int64
	dispatched     atomic.Int64
	dispatchErrors atomic.Int64
	enqueued       atomic.Int64
	methods        map[domain.ExtractionMethod]*atomic.Int64 // keys fixed at creation
}

func newCounters() *counters {
	return &counters{methods: map[domain.ExtractionMethod]*atomic.Int64{
		domain.MethodFeed:         {},
		domain.MethodExtractor:    {},
		domain.MethodHTMLFallback: {},
	}}
}

func (c *counters) snapshot() Stats {
	res := Stats{
		Pages:          c.pages.Load(),
		Dropped:        c.dropped.Load(),
		Items:          c.items.Load(),
		ParseFailures:  c.parseFailures.Load(),
		Dispatched:     c.dispatched.Load(),
		DispatchErrors: c.dispatchErrors.Load(),
		Enqueued:       c.enqueued.Load(),
		Methods:        make(map[domain.ExtractionMethod]int64, len(c.methods)),
	}
	for k, v := range c.methods {
		res.Methods[k] = v.Load()
	}
	return res
}
