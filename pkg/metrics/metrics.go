// Package metrics exposes the Prometheus collectors for the credential and humanize flows.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Code check results.
const (
	ResultIssued   = "issued"
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultCooldown = "cooldown"
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultBusy     = "busy"
)

var (
	Registry = prometheus.NewRegistry()

	AccountsSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kwala_accounts_swept_total",
		Help: "Unverified registrations removed after their grace period.",
	})

	CodeChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kwala_code_checks_total",
		Help: "Verification and reset code operations by outcome.",
	}, []string{"kind", "result"})

	HumanizeRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kwala_humanize_requests_total",
		Help: "Humanize requests by outcome.",
	}, []string{"result"})

	HumanizeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kwala_humanize_duration_seconds",
		Help:    "Time spent driving the humanize tool.",
		Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
	})
)

func init() {
	Registry.MustRegister(
		AccountsSwept,
		CodeChecks,
		HumanizeRequests,
		HumanizeDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
