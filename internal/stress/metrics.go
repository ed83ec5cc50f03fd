package stress

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	scenarioDuration *prometheus.HistogramVec
	scenarioFinal    *prometheus.GaugeVec
	scenarioOps      *prometheus.CounterVec
	scenarioFailures *prometheus.CounterVec
	weakCASRetries   prometheus.Counter
)

func init() {
	initMetrics("")
}

func initMetrics(namespace string) {
	scenarioDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scenario_duration_seconds",
			Help:      "Duration of stress scenario runs",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"scenario"},
	)
	scenarioFinal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_final_value",
			Help:      "Value of the scenario cell after the last run",
		},
		[]string{"scenario"},
	)
	scenarioOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenario_operations_total",
			Help:      "Total number of cell operations performed by scenarios",
		},
		[]string{"scenario"},
	)
	scenarioFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenario_failures_total",
			Help:      "Total number of failed scenario runs by kind: violation or aborted",
		},
		[]string{"scenario", "kind"},
	)
	weakCASRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "weak_cas_retries_total",
		Help:      "Total number of failed weak CAS attempts retried by the weak-retry scenario",
	})
}

// RegisterMetrics recreates scenario metrics under namespace and registers
// them in reg.
func RegisterMetrics(reg prometheus.Registerer, namespace string) error {
	initMetrics(namespace)
	for _, c := range []prometheus.Collector{scenarioDuration, scenarioFinal, scenarioOps, scenarioFailures, weakCASRetries} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func observeResult(res Result) {
	scenarioDuration.WithLabelValues(res.Scenario).Observe(res.Duration.Seconds())
	scenarioFinal.WithLabelValues(res.Scenario).Set(float64(res.Final))
	scenarioOps.WithLabelValues(res.Scenario).Add(float64(res.Ops))
	if res.Err != nil {
		kind := "aborted"
		if errors.Is(res.Err, ErrViolation) {
			kind = "violation"
		}
		scenarioFailures.WithLabelValues(res.Scenario, kind).Inc()
	}
}

func statRetries(n int32) {
	weakCASRetries.Add(float64(n))
}
