package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rss_scout_ticks_total",
		Help: "Completed monitor check cycles",
	})
	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rss_scout_tick_duration_seconds",
		Help:    "Duration of one monitor check cycle",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})
	FeedChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rss_scout_feed_checks_total",
		Help: "Feed checks by result",
	}, []string{"status"})
	ItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rss_scout_items_total",
		Help: "Parsed items by gate decision",
	}, []string{"decision"})
	ForwardsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rss_scout_forwards_total",
		Help: "Items handed to the content pipeline by outcome",
	}, []string{"outcome"})
)

// MustRegister registers all collectors with registerer.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		TicksTotal,
		TickDuration,
		FeedChecksTotal,
		ItemsTotal,
		ForwardsTotal,
	)
}
