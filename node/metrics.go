package node

import (
	"github.com/prometheus/client_golang/prometheus"
)

func makeNodeMetrics(registerer prometheus.Registerer, version string, methods []string) {
	info := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "rpcpeer",
		Name:        "info",
		Help:        "Information about the rpcpeer binary",
		ConstLabels: prometheus.Labels{"version": version},
	})
	info.Set(1)
	registeredMethods := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rpcpeer",
		Name:      "methods",
		Help:      "Number of methods served",
	})
	registeredMethods.Set(float64(len(methods)))
	registerer.MustRegister(info, registeredMethods)
}
