package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	presence        *prometheus.CounterVec
	presenceLatency *prometheus.HistogramVec
	rejections      *prometheus.CounterVec
	kioskSessions   *prometheus.CounterVec
	outbox          *prometheus.CounterVec
	autoClosed      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		presence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "presence_transitions_total",
			Help:      "Presence submissions by resulting transition.",
		}, []string{"type"}),
		presenceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "attendance",
			Name:      "presence_duration_seconds",
			Help:      "Time spent handling a presence submission.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "presence_rejections_total",
			Help:      "Presence submissions rejected, by error code.",
		}, []string{"code"}),
		kioskSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "kiosk_sessions_total",
			Help:      "Kiosk QR sessions issued or reused.",
		}, []string{"result"}),
		outbox: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "outbox_events_total",
			Help:      "Outbox relay results.",
		}, []string{"status"}),
		autoClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "auto_closed_total",
			Help:      "Stale attendances closed by the background job.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.presence,
		m.presenceLatency,
		m.rejections,
		m.kioskSessions,
		m.outbox,
		m.autoClosed,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObservePresence(transition string, started time.Time) {
	if m == nil {
		return
	}
	m.presence.WithLabelValues(transition).Inc()
	m.presenceLatency.WithLabelValues("ok").Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveRejection(code string, started time.Time) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(code).Inc()
	m.presenceLatency.WithLabelValues("rejected").Observe(time.Since(started).Seconds())
}

func (m *Metrics) KioskSession(result string) {
	if m == nil {
		return
	}
	m.kioskSessions.WithLabelValues(result).Inc()
}

func (m *Metrics) OutboxResult(status string) {
	if m == nil {
		return
	}
	m.outbox.WithLabelValues(status).Inc()
}

func (m *Metrics) AutoClosed(n int) {
	if m == nil {
		return
	}
	m.autoClosed.Add(float64(n))
}

// TrackSubscribers exposes the number of open kiosk feeds. It must be called
// at most once per Metrics.
func (m *Metrics) TrackSubscribers(count func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "attendance",
		Name:      "kiosk_feed_subscribers",
		Help:      "Open kiosk SSE connections.",
	}, func() float64 { return float64(count()) }))
}
