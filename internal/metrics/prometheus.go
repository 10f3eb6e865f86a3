package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Muchai10/safeguardcrawler/pkg/circuitbreaker"
)

var (
	ScanCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safeguard_scan_cycles_total",
			Help: "Scan cycles by outcome",
		},
		[]string{"outcome"},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "safeguard_scan_cycle_duration_seconds",
			Help:    "Wall time of a full scan cycle",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	PostsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safeguard_posts_fetched_total",
			Help: "Posts returned by the search capability",
		},
		[]string{"keyword"},
	)

	PostsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safeguard_posts_skipped_total",
			Help: "Posts dropped before admission",
		},
		[]string{"reason"},
	)

	ThreatsAdmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safeguard_threats_admitted_total",
			Help: "Records admitted into a batch",
		},
		[]string{"category"},
	)

	KeywordErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safeguard_keyword_errors_total",
			Help: "Search failures per keyword",
		},
		[]string{"keyword"},
	)

	SentimentRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safeguard_sentiment_requests_total",
			Help: "Sentiment inference calls by status",
		},
		[]string{"status"},
	)

	SentimentCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safeguard_sentiment_cache_total",
			Help: "Sentiment cache lookups",
		},
		[]string{"result"},
	)

	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safeguard_uploads_total",
			Help: "Remote upload attempts by status",
		},
		[]string{"status"},
	)

	BackupRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "safeguard_backup_rows",
			Help: "Rows in the most recent local backup",
		},
	)

	SchedulerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "safeguard_scheduler_state",
			Help: "1 for the scheduler's current state, 0 otherwise",
		},
		[]string{"state"},
	)

	DailyCycles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "safeguard_daily_cycles",
			Help: "Cycles counted against today's quota",
		},
	)

	BreakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "safeguard_circuit_breaker_open",
			Help: "1 while the named upstream breaker is open",
		},
		[]string{"name"},
	)

	LiveSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "safeguard_live_subscribers",
			Help: "Connected websocket alert subscribers",
		},
	)
)

func Init() {
	prometheus.MustRegister(ScanCycles)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(PostsFetched)
	prometheus.MustRegister(PostsSkipped)
	prometheus.MustRegister(ThreatsAdmitted)
	prometheus.MustRegister(KeywordErrors)
	prometheus.MustRegister(SentimentRequests)
	prometheus.MustRegister(SentimentCache)
	prometheus.MustRegister(Uploads)
	prometheus.MustRegister(BackupRows)
	prometheus.MustRegister(SchedulerState)
	prometheus.MustRegister(DailyCycles)
	prometheus.MustRegister(BreakerOpen)
	prometheus.MustRegister(LiveSubscribers)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// ObserveBreaker matches circuitbreaker.Config.OnStateChange.
func ObserveBreaker(name string, from, to circuitbreaker.State) {
	if to == circuitbreaker.StateOpen {
		BreakerOpen.WithLabelValues(name).Set(1)
		return
	}
	BreakerOpen.WithLabelValues(name).Set(0)
}
