// Package metrics exposes the Prometheus collectors for the vault layer.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vault_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vault_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vault_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	deposits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vault_layer",
			Subsystem: "vault",
			Name:      "deposits_total",
			Help:      "Total number of committed deposits.",
		},
		[]string{"asset"},
	)

	withdrawals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vault_layer",
			Subsystem: "vault",
			Name:      "withdrawals_total",
			Help:      "Total number of committed withdrawals.",
		},
	)

	operationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vault_layer",
			Subsystem: "vault",
			Name:      "operation_failures_total",
			Help:      "Total number of rejected vault operations.",
		},
		[]string{"operation", "reason"},
	)

	custodyBalance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vault_layer",
			Subsystem: "vault",
			Name:      "custody_balance",
			Help:      "Custody balance per asset class as reported by the ledger.",
		},
		[]string{"asset"},
	)

	withdrawalNonce = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vault_layer",
			Subsystem: "vault",
			Name:      "withdrawal_nonce",
			Help:      "Current value of the withdrawal nonce counter.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		deposits,
		withdrawals,
		operationFailures,
		custodyBalance,
		withdrawalNonce,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordDeposit counts a committed deposit for the given asset class.
func RecordDeposit(asset string) {
	deposits.WithLabelValues(asset).Inc()
}

// RecordWithdrawal counts a committed withdrawal and publishes the advanced
// nonce.
func RecordWithdrawal(nonce uint64) {
	withdrawals.Inc()
	withdrawalNonce.Set(float64(nonce + 1))
}

// RecordFailure counts a rejected operation by failure reason.
func RecordFailure(operation, reason string) {
	operationFailures.WithLabelValues(operation, reason).Inc()
}

// SetCustodyBalance publishes the reconciled custody balance for an asset
// class. Precision above float64 is truncated; gauges are indicative only.
func SetCustodyBalance(asset string, balance float64) {
	custodyBalance.WithLabelValues(asset).Set(balance)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "vault" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/vault"
	}
	return "/vault/" + strings.Join(parts[1:], "/")
}
