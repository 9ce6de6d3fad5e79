// Package metrics exposes the recorder counters in the Prometheus format.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xaionaro-go/liverecorder/pkg/resolution"
)

const namespace = "liverecorder"

// Metrics is a set of collectors registered on a dedicated registry.
//
// All the methods are safe to call on a nil *Metrics, so the recorder may
// run without metrics.
type Metrics struct {
	Registry *prometheus.Registry

	BytesRecorded  *prometheus.CounterVec
	Sessions       *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
	ProbeDuration  prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		BytesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_recorded_total",
			Help:      "Stream bytes written to the artifacts.",
		}, []string{"target"}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Recording sessions by the reason they ended.",
		}, []string{"outcome"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently streaming.",
		}),
		ProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Duration of the resolution probes.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
	m.Registry.MustRegister(
		m.BytesRecorded,
		m.Sessions,
		m.ActiveSessions,
		m.ProbeDuration,
	)
	return m
}

func (m *Metrics) AddBytes(target string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesRecorded.WithLabelValues(target).Add(float64(n))
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionEnded(outcome string) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.Sessions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// InstrumentProbe wraps the probe to observe the duration of every call.
func (m *Metrics) InstrumentProbe(probe resolution.Probe) resolution.Probe {
	if m == nil || probe == nil {
		return probe
	}
	return resolution.ProbeFunc(func(
		ctx context.Context,
		url string,
		timeout time.Duration,
	) (resolution.Resolution, error) {
		startedAt := time.Now()
		defer func() { m.ProbeDuration.Observe(time.Since(startedAt).Seconds()) }()
		return probe.Probe(ctx, url, timeout)
	})
}
