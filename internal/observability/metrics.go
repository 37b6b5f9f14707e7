package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_requests_total",
			Help: "Total HTTP requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "campaign_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "campaign_in_flight",
		Help: "In-flight HTTP requests",
	})
	RequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_request_errors_total",
			Help: "Total errors by type",
		}, []string{"type"},
	)

	GeneratedEntities = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_generated_entities_total",
			Help: "Generated campaigns, ad groups and ads",
		}, []string{"entity"},
	)
	GenerationWarnings = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "campaign_generation_warnings_total",
		Help: "Template and platform limit warnings raised during generation",
	})

	SyncOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_sync_operations_total",
			Help: "Platform operations executed by outcome",
		}, []string{"type", "entity", "outcome"},
	)
	SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_sync_runs_total",
			Help: "Sync runs by outcome",
		}, []string{"outcome"},
	)
	SyncRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "campaign_sync_run_duration_seconds",
		Help:    "Wall time of a sync run",
		Buckets: prometheus.DefBuckets,
	})

	RuleSnapshotRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_rule_snapshot_refreshes_total",
			Help: "Rule set reloads from the database",
		}, []string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal, Latency, InFlight, RequestErrors,
		GeneratedEntities, GenerationWarnings,
		SyncOperations, SyncRuns, SyncRunDuration,
		RuleSnapshotRefreshes,
	)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
		if rr.code >= http.StatusInternalServerError {
			RequestErrors.WithLabelValues("server").Inc()
		} else if rr.code >= http.StatusBadRequest {
			RequestErrors.WithLabelValues("client").Inc()
		}
	})
}
