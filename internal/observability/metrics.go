package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for CTFIndexer.
type Metrics struct {
	// --- Core processing ---
	CoreEventsApplied  *prometheus.CounterVec
	CoreEventsRejected *prometheus.CounterVec
	CoreEventDuration  *prometheus.HistogramVec
	CoreSequence       prometheus.Gauge
	CoreLastBlock      prometheus.Gauge

	// --- Domain counters ---
	TradesRecorded        *prometheus.CounterVec
	FillsDropped          prometheus.Counter
	UnregisteredTransfers prometheus.Counter
	MarketsPrepared       prometheus.Counter
	MarketsResolved       prometheus.Counter
	TokensRegistered      *prometheus.CounterVec
	OrderingRegressions   prometheus.Counter

	// --- Idempotency ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	DedupTier2Errors      prometheus.Counter

	// --- Channels & backpressure ---
	ChannelSize     *prometheus.GaugeVec
	ChannelCapacity *prometheus.GaugeVec
	ProjectionDrops prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchDur      prometheus.Histogram
	PersistBatchSize     prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistRetry         prometheus.Counter
	PersistLastSequence  prometheus.Gauge

	// --- Projection ---
	ProjectionUpserts   *prometheus.CounterVec
	ProjectionUpdateDur *prometheus.HistogramVec
	ProjectionLastSeq   prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		CoreEventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ctf_core_events_applied_total",
			Help: "Events successfully applied by the reducer",
		}, []string{"event_type"}),

		CoreEventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ctf_core_events_rejected_total",
			Help: "Events rejected (duplicate, parse, validation)",
		}, []string{"event_type", "reason"}),

		CoreEventDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ctf_core_event_apply_duration_seconds",
			Help:    "Time to apply a single event in the reducer",
			Buckets: latencyBuckets,
		}, []string{"event_type"}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ctf_core_sequence",
			Help: "Current global sequence number",
		}),

		CoreLastBlock: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ctf_core_last_block",
			Help: "Highest block number observed",
		}),

		TradesRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ctf_trades_recorded_total",
			Help: "Trade records created",
		}, []string{"exchange", "side"}),

		FillsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ctf_fills_dropped_total",
			Help: "Order fills dropped because neither asset id was a registered token",
		}),

		UnregisteredTransfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ctf_unregistered_transfers_total",
			Help: "Transfers skipped because the token id had no registry mapping",
		}),

		MarketsPrepared: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ctf_markets_prepared_total",
			Help: "Condition preparations applied",
		}),

		MarketsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ctf_markets_resolved_total",
			Help: "Condition resolutions applied",
		}),

		TokensRegistered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ctf_tokens_registered_total",
			Help: "Token registry entries created",
		}, []string{"exchange"}),

		OrderingRegressions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ctf_ordering_regressions_total",
			Help: "Events delivered behind the stream watermark",
		}),

		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ctf_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"event_type", "tier"}),

		DedupLRUSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ctf_dedup_lru_size",
			Help: "Current LRU occupancy",
		}),

		DedupTier2Errors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ctf_dedup_tier2_errors_total",
			Help: "Failed Postgres dedup lookups",
		}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ctf_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ctf_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ProjectionDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ctf_projection_drops_total",
			Help: "Outputs dropped due to full projection channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ctf_persist_events_written_total",
			Help: "Events written to the event log",
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ctf_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ctf_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ctf_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ctf_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ctf_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		ProjectionUpserts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ctf_projection_upserts_total",
			Help: "Entity rows upserted",
		}, []string{"entity"}),

		ProjectionUpdateDur: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ctf_projection_update_duration_seconds",
			Help:    "Projection table update duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"entity"}),

		ProjectionLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ctf_projection_last_sequence",
			Help: "Last projected sequence",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ctf_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ctf_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
	}
}

// SetChannelMetrics updates channel occupancy metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
}
