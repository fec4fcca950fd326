package services

import "github.com/prometheus/client_golang/prometheus"

// animeMutations counts successful catalog writes by operation
// (create, replace, delete).
var animeMutations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "anime_mutations_total",
		Help: "Total number of successful anime catalog mutations.",
	},
	[]string{"op"},
)

func init() {
	prometheus.MustRegister(animeMutations)
}
