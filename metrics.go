package main

import (
	"github.com/contentsquare/atomiccell/internal/stress"
	"github.com/contentsquare/atomiccell/task"
	"github.com/prometheus/client_golang/prometheus"
)

var badRequest prometheus.Counter

func init() {
	initMetrics("")
}

func initMetrics(namespace string) {
	badRequest = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bad_request",
		Help:      "Total number of unsupported requests",
	})
}

// registerMetrics registers the command metrics together with the executor
// and scenario metrics under namespace.
func registerMetrics(reg prometheus.Registerer, namespace string) error {
	initMetrics(namespace)
	if err := reg.Register(badRequest); err != nil {
		return err
	}
	if err := task.RegisterMetrics(reg, namespace); err != nil {
		return err
	}
	return stress.RegisterMetrics(reg, namespace)
}
