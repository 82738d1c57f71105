// Package metrics exposes Prometheus counters for the workout session engine.
// They are registered on the default registry and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkoutsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "freelift_workouts_started_total",
		Help: "Workouts started, including ones started from a template",
	})

	WorkoutsFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "freelift_workouts_finished_total",
		Help: "Workouts marked complete",
	})

	WorkoutsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "freelift_workouts_cancelled_total",
		Help: "Workouts discarded, either by cancel or by starting over",
	})

	SetsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "freelift_sets_completed_total",
		Help: "Sets that transitioned from incomplete to complete",
	})

	PersonalRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "freelift_personal_records_total",
		Help: "Personal records created",
	})

	StoreFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freelift_store_failures_total",
		Help: "Store calls that failed, by operation",
	}, []string{"op"})

	ActiveWorkout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "freelift_active_workout",
		Help: "1 while a workout is in progress, else 0",
	})

	RestSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "freelift_rest_period_seconds",
		Help:    "Rest time folded into the workout total per timer run",
		Buckets: []float64{15, 30, 60, 90, 120, 180, 240, 300, 600},
	})
)
