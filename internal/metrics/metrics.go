// Package metrics exposes the portal's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "forum"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	ledgerTx      *prometheus.CounterVec
	depositCents  prometheus.Counter
	driftMembers  prometheus.Gauge
	importRows    *prometheus.CounterVec
	eventsPublish *prometheus.CounterVec
	rateLimited   prometheus.Counter
	suspicious    prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ledgerTx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_transactions_total",
			Help:      "Transaction record attempts by kind and result.",
		}, []string{"kind", "result"}),
		depositCents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_deposit_cents_total",
			Help:      "Sum of recorded deposit amounts in minor units.",
		}),
		driftMembers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_drift_members",
			Help:      "Members whose total saved differs from their deposit sum at the last full audit.",
		}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheet_import_rows_total",
			Help:      "Spreadsheet rows processed by result.",
		}, []string{"result"}),
		eventsPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_events_published_total",
			Help:      "Ledger events published by type and result.",
		}, []string{"type", "result"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Write requests rejected by the per-client rate limiter.",
		}),
		suspicious: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_suspicious_requests_total",
			Help:      "Requests matching a known probing pattern.",
		}),
	}
	reg.MustRegister(
		m.httpRequests, m.httpDuration, m.ledgerTx, m.depositCents,
		m.driftMembers, m.importRows, m.eventsPublish,
		m.rateLimited, m.suspicious,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveTransaction counts one record attempt. result is "recorded", "replayed" or an error kind.
func (m *Metrics) ObserveTransaction(kind, result string, depositCents int64) {
	if m == nil {
		return
	}
	m.ledgerTx.WithLabelValues(kind, result).Inc()
	if depositCents > 0 {
		m.depositCents.Add(float64(depositCents))
	}
}

func (m *Metrics) SetDriftMembers(n int) {
	if m == nil {
		return
	}
	m.driftMembers.Set(float64(n))
}

func (m *Metrics) ObserveImportRow(result string) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues(result).Inc()
}

func (m *Metrics) ObservePublish(eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventsPublish.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) ObserveSuspicious() {
	if m == nil {
		return
	}
	m.suspicious.Inc()
}
