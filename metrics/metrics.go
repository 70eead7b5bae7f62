package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NodesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "royalty_dag_nodes",
			Help: "Number of content nodes in the graph",
		},
	)

	DistributionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "royalty_dag_distributions_total",
			Help: "Total number of distributions into content nodes",
		},
		[]string{"token", "status"},
	)

	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "royalty_dag_claims_total",
			Help: "Total number of claims against node claim-rights",
		},
		[]string{"class", "mode", "status"},
	)

	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "royalty_dag_settlements_total",
			Help: "Total number of cascade settlements",
		},
		[]string{"token", "status"},
	)

	SettledNodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "royalty_dag_settled_nodes",
			Help:    "Number of nodes visited by one settlement",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	CheckpointsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "royalty_dag_checkpoints_total",
			Help: "Total number of checkpoints written",
		},
	)

	PersistErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "royalty_dag_persist_errors_total",
			Help: "Total number of failed repository writes",
		},
		[]string{"kind"},
	)
)

// Status labels a counter by outcome.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
