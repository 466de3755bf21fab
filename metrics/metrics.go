package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	FeedMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "feed_messages_total", Help: "Feed frames received by message type"}, []string{"type"})
	FeedErrorsTotal   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "feed_errors_total", Help: "Fatal feed errors by kind"}, []string{"kind"})
	FeedDroppedTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_dropped_total", Help: "Book frames dropped because they did not match their book"})
	FeedPingsTotal    = prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_keepalive_pings_total", Help: "Keepalive pings sent"})
	Subscriptions     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "feed_subscriptions", Help: "Products currently subscribed"})
	BooksTracked      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "books_tracked", Help: "Order books held in the registry"})

	QuoteRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "quote_requests_total", Help: "Quote requests by outcome"}, []string{"outcome"})
	QuoteLatencyMs     = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "quote_latency_ms", Help: "Quote computation latency", Buckets: prometheus.ExponentialBuckets(0.1, 2, 16)})
	SolverCapacity     = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "solver_capacity", Help: "Discretized capacity handed to the solver", Buckets: prometheus.ExponentialBuckets(1, 4, 12)})
)

func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		FeedMessagesTotal, FeedErrorsTotal, FeedDroppedTotal, FeedPingsTotal,
		Subscriptions, BooksTracked,
		QuoteRequestsTotal, QuoteLatencyMs, SolverCapacity,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
