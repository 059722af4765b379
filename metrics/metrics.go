// Package metrics holds the Prometheus collectors shared by the proxy
// components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeLabelName = "outcome"
	kindLabelName    = "kind"
	resultLabelName  = "result"
)

var (
	// LifecycleEvents counts lifecycle events by adapter outcome
	// (registered, ignored, failed).
	LifecycleEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docker_tra_lifecycle_events_total",
			Help: "Lifecycle events consumed by the adapter, by outcome",
		},
		[]string{outcomeLabelName},
	)

	// Dispatches counts ingress requests by kind (http, upgrade) and result.
	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docker_tra_dispatches_total",
			Help: "Inbound requests handled by the ingress dispatchers",
		},
		[]string{kindLabelName, resultLabelName},
	)
)

// Dispatch results
const (
	ResultForwarded    = "forwarded"
	ResultNotFound     = "not_found"
	ResultNoPort       = "no_port"
	ResultBackendError = "backend_error"
)

// Sizer is anything that can report how many endpoints it holds.
type Sizer interface {
	Len() int
}

// RegisterRegistrySize exposes the number of registered endpoints as a
// gauge on the given registerer.
func RegisterRegistrySize(reg prometheus.Registerer, s Sizer) error {
	return reg.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "docker_tra_registered_endpoints",
			Help: "Number of routing keys currently registered",
		},
		func() float64 {
			return float64(s.Len())
		},
	))
}
