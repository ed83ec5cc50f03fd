package task

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	tasksSubmitted prometheus.Counter
	tasksRejected  *prometheus.CounterVec
	tasksExecuted  prometheus.Counter
	tasksInFlight  prometheus.Gauge
)

// Metrics exist from start so executors work without registration.
func init() {
	initMetrics("")
}

func initMetrics(namespace string) {
	tasksSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_submitted_total",
		Help:      "Total number of tasks submitted to bounded executors",
	})
	tasksRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_rejected_total",
			Help:      "Total number of rejected tasks by reason",
		},
		[]string{"reason"},
	)
	tasksExecuted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_executed_total",
		Help:      "Total number of tasks which finished running",
	})
	tasksInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_in_flight",
		Help:      "Number of currently running tasks",
	})
}

// RegisterMetrics recreates executor metrics under namespace and registers
// them in reg. It must be called before any executor is created.
func RegisterMetrics(reg prometheus.Registerer, namespace string) error {
	initMetrics(namespace)
	for _, c := range []prometheus.Collector{tasksSubmitted, tasksRejected, tasksExecuted, tasksInFlight} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
