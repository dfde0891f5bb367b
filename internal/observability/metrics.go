// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	ObservationsReceived *prometheus.CounterVec
	SignalsEmitted       *prometheus.CounterVec
	DuplicatesDropped    prometheus.Counter
	HighestSlotSeen      prometheus.Gauge

	// Engine metrics
	SignalsByState       *prometheus.CounterVec
	ClassificationMisses prometheus.Counter
	FreshMintSkips       prometheus.Counter
	SignalLatency        prometheus.Histogram
	TracesDropped        prometheus.Counter

	// Builder metrics
	BuildLatency *prometheus.HistogramVec
	BuildErrors  *prometheus.CounterVec

	// Submission metrics
	SubmissionLatency  *prometheus.HistogramVec
	AttemptsByStatus   *prometheus.CounterVec
	OutcomesByStatus   *prometheus.CounterVec
	ChannelWins        *prometheus.CounterVec
	InflightSubmission prometheus.Gauge

	// Ledger metrics
	LedgerFills     *prometheus.CounterVec
	LedgerConflicts prometheus.Counter
	OpenPositions   prometheus.Gauge
	PersistLatency  prometheus.Histogram
	PersistErrors   prometheus.Counter

	// Cache metrics
	VenueCacheSize prometheus.Gauge
	EnrichRequests *prometheus.CounterVec

	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSignalTimestamp prometheus.Gauge
	WalletBalance       *prometheus.GaugeVec
}

// latencyBuckets cover sub-millisecond planning up to multi-second confirmation.
var latencyBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers metrics on reg; tests pass a fresh registry.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "copytrader"
	}
	f := promauto.With(reg)

	return &Metrics{
		ObservationsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "observations_received_total",
			Help:      "Total number of observations received by source",
		}, []string{"source"}),
		SignalsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "signals_emitted_total",
			Help:      "Total number of trade signals emitted by direction",
		}, []string{"direction"}),
		DuplicatesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duplicates_dropped_total",
			Help:      "Total number of duplicate observations dropped",
		}),
		HighestSlotSeen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),

		SignalsByState: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "signals_total",
			Help:      "Total number of signals by final state",
		}, []string{"state"}),
		ClassificationMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "classification_misses_total",
			Help:      "Total number of signals with no known venue",
		}),
		FreshMintSkips: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "fresh_mint_skips_total",
			Help:      "Total number of signals skipped by the fresh-mint filter",
		}),
		SignalLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "signal_latency_seconds",
			Help:      "Time from observation to plans handed to submission",
			Buckets:   latencyBuckets,
		}),
		TracesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "traces_dropped_total",
			Help:      "Total number of signal traces dropped on a full write queue",
		}),

		BuildLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "builder",
			Name:      "build_latency_seconds",
			Help:      "Plan construction latency by venue",
			Buckets:   latencyBuckets,
		}, []string{"venue"}),
		BuildErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "builder",
			Name:      "build_errors_total",
			Help:      "Total number of build errors by venue and reason",
		}, []string{"venue", "reason"}),

		SubmissionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "attempt_latency_seconds",
			Help:      "Time from submission to terminal attempt status by channel",
			Buckets:   latencyBuckets,
		}, []string{"channel"}),
		AttemptsByStatus: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "attempts_total",
			Help:      "Total number of attempts by channel and status",
		}, []string{"channel", "status"}),
		OutcomesByStatus: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "outcomes_total",
			Help:      "Total number of plan outcomes by status",
		}, []string{"status"}),
		ChannelWins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "channel_wins_total",
			Help:      "Total number of confirmations won by channel",
		}, []string{"channel"}),
		InflightSubmission: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "inflight_plans",
			Help:      "Number of plans currently being submitted",
		}),

		LedgerFills: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "fills_total",
			Help:      "Total number of fills applied by direction",
		}, []string{"direction"}),
		LedgerConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "conflicts_total",
			Help:      "Total number of rejected fills",
		}),
		OpenPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "open_positions",
			Help:      "Number of open positions",
		}),
		PersistLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "persist_latency_seconds",
			Help:      "Position persistence latency",
			Buckets:   prometheus.DefBuckets,
		}),
		PersistErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "persist_errors_total",
			Help:      "Total number of failed position writes",
		}),

		VenueCacheSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "venue",
			Name:      "cache_size",
			Help:      "Number of mints in the venue cache",
		}),
		EnrichRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "venue",
			Name:      "enrich_requests_total",
			Help:      "Total number of enrichment requests by result",
		}, []string{"result"}),

		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSignalTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_signal_timestamp",
			Help:      "Unix timestamp of the last signal processed",
		}),
		WalletBalance: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "balance_lamports",
			Help:      "Last refreshed wallet balance",
		}, []string{"wallet"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordObservation counts an observation received from source.
func RecordObservation(source string, slot uint64) {
	DefaultMetrics.ObservationsReceived.WithLabelValues(source).Inc()
	if slot > 0 {
		DefaultMetrics.HighestSlotSeen.Set(float64(slot))
	}
}

// RecordSignal counts an emitted signal.
func RecordSignal(direction string) {
	DefaultMetrics.SignalsEmitted.WithLabelValues(direction).Inc()
}

// RecordDuplicate counts a dropped duplicate observation.
func RecordDuplicate() {
	DefaultMetrics.DuplicatesDropped.Inc()
}

// RecordSignalState counts a signal reaching its final state.
func RecordSignalState(state string) {
	DefaultMetrics.SignalsByState.WithLabelValues(state).Inc()
	DefaultMetrics.LastSignalTimestamp.Set(float64(time.Now().Unix()))
}

// RecordClassificationMiss counts a signal with no venue.
func RecordClassificationMiss() {
	DefaultMetrics.ClassificationMisses.Inc()
}

// RecordFreshMintSkip counts a signal filtered as a fresh mint.
func RecordFreshMintSkip() {
	DefaultMetrics.FreshMintSkips.Inc()
}

// RecordSignalLatency records observation-to-submission latency.
func RecordSignalLatency(d time.Duration) {
	DefaultMetrics.SignalLatency.Observe(d.Seconds())
}

// RecordBuild records builder latency and, on failure, the reason.
func RecordBuild(venue string, d time.Duration, reason string) {
	DefaultMetrics.BuildLatency.WithLabelValues(venue).Observe(d.Seconds())
	if reason != "" {
		DefaultMetrics.BuildErrors.WithLabelValues(venue, reason).Inc()
	}
}

// RecordAttempt records a terminal channel attempt.
func RecordAttempt(channel, status string, d time.Duration) {
	DefaultMetrics.AttemptsByStatus.WithLabelValues(channel, status).Inc()
	DefaultMetrics.SubmissionLatency.WithLabelValues(channel).Observe(d.Seconds())
}

// RecordOutcome records a plan outcome and the winning channel, if any.
func RecordOutcome(status, winner string) {
	DefaultMetrics.OutcomesByStatus.WithLabelValues(status).Inc()
	if winner != "" {
		DefaultMetrics.ChannelWins.WithLabelValues(winner).Inc()
	}
}

// SubmissionStarted tracks in-flight plans.
func SubmissionStarted() { DefaultMetrics.InflightSubmission.Inc() }

// SubmissionFinished tracks in-flight plans.
func SubmissionFinished() { DefaultMetrics.InflightSubmission.Dec() }

// RecordFill counts an applied fill.
func RecordFill(direction string) {
	DefaultMetrics.LedgerFills.WithLabelValues(direction).Inc()
}

// RecordLedgerConflict counts a rejected fill.
func RecordLedgerConflict() {
	DefaultMetrics.LedgerConflicts.Inc()
}

// RecordTraceDropped counts a trace lost to a full write queue.
func RecordTraceDropped() {
	DefaultMetrics.TracesDropped.Inc()
}

// SetOpenPositions updates the open positions gauge.
func SetOpenPositions(n int) {
	DefaultMetrics.OpenPositions.Set(float64(n))
}

// RecordPersist records a position write.
func RecordPersist(d time.Duration, err error) {
	DefaultMetrics.PersistLatency.Observe(d.Seconds())
	if err != nil {
		DefaultMetrics.PersistErrors.Inc()
	}
}

// SetVenueCacheSize updates the cache size gauge.
func SetVenueCacheSize(n int) {
	DefaultMetrics.VenueCacheSize.Set(float64(n))
}

// RecordEnrich counts an enrichment request outcome.
func RecordEnrich(result string) {
	DefaultMetrics.EnrichRequests.WithLabelValues(result).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// SetWalletBalance records a refreshed balance.
func SetWalletBalance(wallet string, lamports uint64) {
	DefaultMetrics.WalletBalance.WithLabelValues(wallet).Set(float64(lamports))
}
