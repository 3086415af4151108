// Package metrics provides Prometheus instrumentation for the scoring service.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path pattern, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudsentry",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fraudsentry",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// TransactionsScoredTotal counts scored transactions by verdict.
	TransactionsScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudsentry",
			Name:      "transactions_scored_total",
			Help:      "Total transactions scored, by verdict (fraud or legit).",
		},
		[]string{"verdict"},
	)

	// OverridesAppliedTotal counts scores forced by the business override rule.
	OverridesAppliedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudsentry",
		Name:      "overrides_applied_total",
		Help:      "Total verdicts forced to fraud by the high-amount/low-history rule.",
	})

	// CacheOpsTotal counts result cache operations by op and result.
	CacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudsentry",
			Name:      "cache_ops_total",
			Help:      "Result cache operations by op (get/put) and result (hit/miss/ok/error).",
		},
		[]string{"op", "result"},
	)

	// LedgerAppendFailuresTotal counts failed ledger appends (audit gaps).
	LedgerAppendFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudsentry",
		Name:      "ledger_append_failures_total",
		Help:      "Total failed transaction ledger appends.",
	})

	// FeatureLookupsTotal counts feature store lookups by field and result.
	FeatureLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudsentry",
			Name:      "feature_lookups_total",
			Help:      "Feature store lookups by field and result (ok/miss/error/skipped).",
		},
		[]string{"field", "result"},
	)

	// BatchItemsTotal counts batch items by outcome.
	BatchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudsentry",
			Name:      "batch_items_total",
			Help:      "Batch transaction items by outcome (scored/degraded).",
		},
		[]string{"outcome"},
	)

	// BatchDuration observes wall-clock batch processing time.
	BatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraudsentry",
		Name:      "batch_duration_seconds",
		Help:      "Wall-clock duration of batch scoring requests.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// AlertsEmittedTotal counts alerts delivered over streams.
	AlertsEmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudsentry",
		Name:      "alerts_emitted_total",
		Help:      "Total fraud alerts emitted over alert streams.",
	})

	// ActiveAlertStreams tracks currently open alert streams.
	ActiveAlertStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudsentry",
		Name:      "active_alert_streams",
		Help:      "Number of currently open alert streams.",
	})

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudsentry",
		Name:      "active_websocket_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})

	// KafkaPublishTotal counts scored-event publishes by result.
	KafkaPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudsentry",
			Name:      "kafka_publish_total",
			Help:      "Scored-transaction event publishes by result.",
		},
		[]string{"result"},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudsentry", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudsentry", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudsentry", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudsentry", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TransactionsScoredTotal,
		OverridesAppliedTotal,
		CacheOpsTotal,
		LedgerAppendFailuresTotal,
		FeatureLookupsTotal,
		BatchItemsTotal,
		BatchDuration,
		AlertsEmittedTotal,
		ActiveAlertStreams,
		ActiveWebSocketClients,
		KafkaPublishTotal,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and the runtime
// goroutine count into Prometheus gauges. Call in a goroutine; exits when
// ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // route pattern, not raw path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for the /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
