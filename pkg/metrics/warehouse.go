package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WarehouseMetrics records counters for the crowd-scoring and lifecycle paths.
type WarehouseMetrics struct {
	crowdBumps           *prometheus.CounterVec
	containerTransitions *prometheus.CounterVec
	pickTaskTransitions  *prometheus.CounterVec
}

// NewWarehouseMetrics registers the warehouse metrics on the provided registerer.
func NewWarehouseMetrics(reg prometheus.Registerer) *WarehouseMetrics {
	if reg == nil {
		return &WarehouseMetrics{}
	}
	crowdBumps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crowd_bumps_total",
		Help: "Shelf crowd counter bumps by activity.",
	}, []string{"activity"})
	containerTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "container_transitions_total",
		Help: "Container lifecycle transitions by target state.",
	}, []string{"to_state"})
	pickTaskTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pick_task_transitions_total",
		Help: "Pick task lifecycle transitions by target state.",
	}, []string{"to_state"})
	reg.MustRegister(crowdBumps, containerTransitions, pickTaskTransitions)
	return &WarehouseMetrics{
		crowdBumps:           crowdBumps,
		containerTransitions: containerTransitions,
		pickTaskTransitions:  pickTaskTransitions,
	}
}

// IncCrowdBump counts one bump against the named activity counter.
func (w *WarehouseMetrics) IncCrowdBump(activity string) {
	if w == nil || w.crowdBumps == nil {
		return
	}
	w.crowdBumps.WithLabelValues(normalizeLabel(activity)).Inc()
}

// IncContainerTransition counts one container transition into toState.
func (w *WarehouseMetrics) IncContainerTransition(toState string) {
	if w == nil || w.containerTransitions == nil {
		return
	}
	w.containerTransitions.WithLabelValues(normalizeLabel(toState)).Inc()
}

// IncPickTaskTransition counts one pick task transition into toState.
func (w *WarehouseMetrics) IncPickTaskTransition(toState string) {
	if w == nil || w.pickTaskTransitions == nil {
		return
	}
	w.pickTaskTransitions.WithLabelValues(normalizeLabel(toState)).Inc()
}
