package statusserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the supervisor's prometheus instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	startsTotal  *prometheus.CounterVec
	exitsTotal   *prometheus.CounterVec
	running      *prometheus.GaugeVec
	lastExitCode *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		startsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supervisor_process_starts_total",
			Help: "Number of times a managed process was started.",
		}, []string{"process_id"}),
		exitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supervisor_process_exits_total",
			Help: "Number of times a managed process exited, by outcome.",
		}, []string{"process_id", "outcome"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "supervisor_process_running",
			Help: "Whether a managed process is currently running (1) or not (0).",
		}, []string{"process_id"}),
		lastExitCode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "supervisor_process_last_exit_code",
			Help: "Exit code of the most recent exit of a managed process.",
		}, []string{"process_id"}),
	}
	registry.MustRegister(m.startsTotal, m.exitsTotal, m.running, m.lastExitCode)
	return m
}

// ProcessStarted records a managed process launch.
func (m *Metrics) ProcessStarted(processID string) {
	m.startsTotal.WithLabelValues(processID).Inc()
	m.running.WithLabelValues(processID).Set(1)
}

// ProcessExited records a managed process exit with its code.
func (m *Metrics) ProcessExited(processID string, exitCode int) {
	outcome := "success"
	if exitCode != 0 {
		outcome = "failure"
	}
	m.exitsTotal.WithLabelValues(processID, outcome).Inc()
	m.running.WithLabelValues(processID).Set(0)
	m.lastExitCode.WithLabelValues(processID).Set(float64(exitCode))
}

// Handler exposes the metrics registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
