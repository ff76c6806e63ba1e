package kernel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	kernelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spsolve_kernel_calls_total",
		Help: "Total number of native kernel invocations",
	}, []string{"target"})

	kernelFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spsolve_kernel_failures_total",
		Help: "Total number of native kernel invocations that returned an error",
	}, []string{"target"})

	kernelDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spsolve_kernel_duration_seconds",
		Help:    "Time spent inside a native kernel invocation",
		Buckets: prometheus.DefBuckets,
	}, []string{"target"})
)
