package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bandroom",
			Name:      "reservation_created_total",
			Help:      "Count of reservations created by origin (adhoc or series).",
		},
		[]string{"origin"},
	)

	conflictsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bandroom",
			Name:      "conflicts_detected_total",
			Help:      "Count of conflicts detected by kind of blocking entity.",
		},
		[]string{"kind"},
	)

	seriesTransition = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bandroom",
			Name:      "series_transition_total",
			Help:      "Count of series lifecycle transitions.",
		},
		[]string{"to"},
	)

	generationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bandroom",
			Name:      "generation_runs_total",
			Help:      "Count of series generation passes by outcome.",
		},
		[]string{"outcome"},
	)

	instancesGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bandroom",
			Name:      "instances_generated_total",
			Help:      "Count of series instances by result (created or skipped).",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationCreated,
			conflictsDetected,
			seriesTransition,
			generationRuns,
			instancesGenerated,
		)
	})
}

func IncReservationCreated(origin string) {
	reservationCreated.WithLabelValues(origin).Inc()
}

func IncConflictDetected(kind string) {
	conflictsDetected.WithLabelValues(kind).Inc()
}

func IncSeriesTransition(to string) {
	seriesTransition.WithLabelValues(to).Inc()
}

func IncGenerationRun(outcome string) {
	generationRuns.WithLabelValues(outcome).Inc()
}

func IncInstanceGenerated(result string) {
	instancesGenerated.WithLabelValues(result).Inc()
}
