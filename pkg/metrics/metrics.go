// Package metrics exposes pipeline events as prometheus collectors
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/umputun/newscrawl/pkg/domain"
	"github.com/umputun/newscrawl/pkg/frontier"
)

// Namespace of all collectors
const Namespace = "newscrawl"

// Metrics implements pipeline.Recorder
type Metrics struct {
	PagesTotal     *prometheus.CounterVec // source, stage
	ItemsTotal     *prometheus.CounterVec // source, method, parse_ok
	ContentChars   *prometheus.HistogramVec
	DispatchTotal  *prometheus.CounterVec // source, status
	LinksTotal     *prometheus.CounterVec // source, result
	SummariesTotal *prometheus.CounterVec // source, truncated
	AuthorsTotal   *prometheus.CounterVec // source, author_source
}

// New creates and registers the collectors, nil reg means the default registerer
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		PagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pages_total",
			Help:      "Pages handled by final stage",
		}, []string{"source", "stage"}),

		ItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "items_total",
			Help:      "Assembled items by extraction method",
		}, []string{"source", "method", "parse_ok"}),

		ContentChars: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "content_length_chars",
			Help:      "Article text length after the quality gate",
			Buckets:   []float64{0, 200, 500, 1000, 2000, 5000, 10000, 20000},
		}, []string{"source"}),

		DispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dispatch_total",
			Help:      "Sink dispatch attempts by status",
		}, []string{"source", "status"}),

		LinksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "links_total",
			Help:      "Outbound links by planning result",
		}, []string{"source", "result"}),

		SummariesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "summaries_total",
			Help:      "Produced summaries",
		}, []string{"source", "truncated"}),

		AuthorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "authors_total",
			Help:      "Items by author source",
		}, []string{"source", "author_source"}),
	}
}

// PageHandled counts a page by the final stage it reached
func (m *Metrics) PageHandled(source string, stage domain.Stage) {
	m.PagesTotal.WithLabelValues(source, string(stage)).Inc()
}

// ItemAssembled records an assembled item
func (m *Metrics) ItemAssembled(item *domain.NewsItem) {
	method := string(item.ExtractionMethod)
	if method == "" {
		method = "none"
	}
	m.ItemsTotal.WithLabelValues(item.Source, method, strconv.FormatBool(item.ParseOK)).Inc()
	m.ContentChars.WithLabelValues(item.Source).Observe(float64(item.ContentLengthChars))
	m.AuthorsTotal.WithLabelValues(item.Source, string(item.AuthorSource)).Inc()
	if item.Summary != "" {
		m.SummariesTotal.WithLabelValues(item.Source, strconv.FormatBool(item.SummaryTruncated)).Inc()
	}
}

// ItemDispatched records a dispatch result
func (m *Metrics) ItemDispatched(source string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.DispatchTotal.WithLabelValues(source, status).Inc()
}

// LinksPlanned records link planning counters of a page
func (m *Metrics) LinksPlanned(source string, plan frontier.Plan) {
	add := func(result string, n int) {
		if n > 0 {
			m.LinksTotal.WithLabelValues(source, result).Add(float64(n))
		}
	}
	add("enqueued", len(plan.Enqueued))
	add("rejected", plan.Rejected)
	add("duplicate", plan.Duplicates)
	add("capped", plan.Capped)
}
