package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	Registry      *prometheus.Registry
	RequestsTotal *prometheus.CounterVec
	SavesTotal    *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "firmsheet_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		SavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "firmsheet_saves_total",
				Help: "Firm record save attempts by result",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.RequestsTotal, m.SavesTotal)
	return m
}

// ObserveSave counts one save with result "ok", "bad_request" or "error".
func (m *Metrics) ObserveSave(result string) {
	if m == nil {
		return
	}
	m.SavesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
