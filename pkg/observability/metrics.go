package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/argview/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one engine.
type Metrics struct {
	registry prometheus.Gatherer

	TreeNodes      prometheus.Gauge
	TreeDepth      prometheus.Gauge
	Messages       *prometheus.CounterVec
	ApplyDuration  *prometheus.HistogramVec
	GatePaused     prometheus.Gauge
	Continues      prometheus.Counter
	ChannelErrors  prometheus.Counter
	Connected      prometheus.Gauge
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		TreeNodes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "argview_tree_nodes",
			Help: "Number of nodes in the latest snapshot",
		}),
		TreeDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "argview_tree_depth",
			Help: "Number of levels in the latest snapshot",
		}),
		Messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "argview_messages_total",
			Help: "Critical sections processed, by method and result",
		}, []string{"method", "result"}),
		ApplyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "argview_apply_duration_seconds",
			Help:    "Time spent applying one message inside the critical section",
			Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"method"}),
		GatePaused: factory.NewGauge(prometheus.GaugeOpts{
			Name: "argview_gate_paused",
			Help: "1 while the remote process waits for a continue",
		}),
		Continues: factory.NewCounter(prometheus.CounterOpts{
			Name: "argview_continue_total",
			Help: "Continue events emitted to the remote process",
		}),
		ChannelErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "argview_channel_errors_total",
			Help: "Failed dials and lost connections",
		}),
		Connected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "argview_connected",
			Help: "1 while a connection to the remote process is open",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks records every engine event.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnApply: func(_ context.Context, e *domain.ApplyEvent) {
			method := methodLabel(e.Method)
			result := "ignored"
			if e.Changed {
				result = "applied"
			}
			m.Messages.WithLabelValues(method, result).Inc()
			m.ApplyDuration.WithLabelValues(method).Observe(e.Duration.Seconds())
			m.TreeNodes.Set(float64(e.NodeCount))
			m.TreeDepth.Set(float64(e.Depth))
		},
		OnError: func(_ context.Context, e *domain.ErrorEvent) {
			m.Messages.WithLabelValues(methodLabel(e.Method), "rejected").Inc()
		},
		OnGate: func(_ context.Context, e *domain.GateEvent) {
			if e.Gate.Status == domain.GatePaused {
				m.GatePaused.Set(1)
			} else {
				m.GatePaused.Set(0)
			}
			if e.Emitted {
				m.Continues.Inc()
			}
		},
		OnConnection: func(_ context.Context, e *domain.ConnectionEvent) {
			switch e.Kind {
			case domain.ConnectionOpened:
				m.Connected.Set(1)
			case domain.ConnectionFailed:
				m.ChannelErrors.Inc()
			case domain.ConnectionClosed:
				m.Connected.Set(0)
			}
		},
	}
}

// methodLabel keeps label cardinality bounded: unknown methods share one value.
func methodLabel(m domain.Method) string {
	switch m {
	case domain.MethodAdd, domain.MethodDelete, domain.MethodCreate, domain.MethodWait:
		return string(m)
	case "":
		return "unparsed"
	default:
		return "other"
	}
}
