package infra

import (
	"context"

	"edge-gateway/middleware/edgefilter/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStats conta decisões por ação/motivo e expõe o tamanho do store.
type PrometheusStats struct {
	decisions *prometheus.CounterVec
	evicted   prometheus.Counter
}

// NewPrometheusStats registra as métricas em reg. sizeFn (opcional) alimenta o
// gauge de chaves rastreadas.
func NewPrometheusStats(reg prometheus.Registerer, sizeFn func() int) *PrometheusStats {
	s := &PrometheusStats{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "edge",
				Subsystem: "filter",
				Name:      "decisions_total",
				Help:      "Total number of pipeline decisions",
			},
			[]string{"action", "reason", "category"},
		),
		evicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "edge",
				Subsystem: "filter",
				Name:      "evicted_keys_total",
				Help:      "Rate-limit records removed by stale sweeps",
			},
		),
	}
	reg.MustRegister(s.decisions, s.evicted)

	if sizeFn != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "edge",
				Subsystem: "filter",
				Name:      "tracked_keys",
				Help:      "Number of rate-limit keys currently tracked",
			},
			func() float64 { return float64(sizeFn()) },
		))
	}
	return s
}

func (s *PrometheusStats) Record(_ context.Context, ev domain.DecisionEvent) error {
	s.decisions.WithLabelValues(string(ev.Action), string(ev.Reason), string(ev.Category)).Inc()
	return nil
}

// ObserveSweep é usado como Pipeline.OnSweep / callback do janitor.
func (s *PrometheusStats) ObserveSweep(evicted int) {
	s.evicted.Add(float64(evicted))
}
