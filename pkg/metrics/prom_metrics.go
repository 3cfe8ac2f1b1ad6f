package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	resourceTotalsGaugeVec = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "simkube",
			Subsystem: "resource",
			Name:      "totals",
		},
		[]string{"kind"},
	)

	actionsAppliedCounterVec = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simkube",
			Subsystem: "controller",
			Name:      "actions_applied_total",
		},
		[]string{"controller", "kind"},
	)

	actionsRejectedCounterVec = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simkube",
			Subsystem: "controller",
			Name:      "actions_rejected_total",
		},
		[]string{"controller", "kind", "reason"},
	)
)

func init() {
	metrics.Registry.MustRegister(resourceTotalsGaugeVec)
	metrics.Registry.MustRegister(actionsAppliedCounterVec)
	metrics.Registry.MustRegister(actionsRejectedCounterVec)
}

// PromServer implements Server on top of the controller-runtime metrics
// registry, the same registry the teacher's operator serves /metrics from.
type PromServer struct{}

func (PromServer) RecordResourceTotal(kind string, count int) {
	resourceTotalsGaugeVec.WithLabelValues(kind).Set(float64(count))
}

func (PromServer) RecordActionApplied(controller, kind string) {
	actionsAppliedCounterVec.WithLabelValues(controller, kind).Inc()
}

func (PromServer) RecordActionRejected(controller, kind, reason string) {
	actionsRejectedCounterVec.WithLabelValues(controller, kind, reason).Inc()
}
