// Package observability exposes Prometheus metrics for the web server.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth event results.
const (
	ResultSuccess   = "success"
	ResultRejected  = "rejected"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
)

// Metrics contains the application counters.
type Metrics struct {
	Logins           *prometheus.CounterVec
	Registrations    *prometheus.CounterVec
	SecretsSubmitted prometheus.Counter
	Logouts          prometheus.Counter
}

// NewMetrics creates and registers the application counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secrets_logins_total",
				Help: "Login attempts by method and result",
			},
			[]string{"method", "result"},
		),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secrets_registrations_total",
				Help: "Registration attempts by result",
			},
			[]string{"result"},
		),
		SecretsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secrets_submitted_total",
			Help: "Secrets stored or overwritten",
		}),
		Logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secrets_logouts_total",
			Help: "Sessions terminated through /logout",
		}),
	}

	reg.MustRegister(m.Logins, m.Registrations, m.SecretsSubmitted, m.Logouts)
	return m
}

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
