package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultInserted = "inserted"
	resultUpdated  = "updated"
	resultRejected = "rejected"
)

var (
	productsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "index_products",
			Help: "Number of products currently held in the index, by source",
		},
		[]string{"source"},
	)

	upsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "index_upserts_total",
			Help: "Total upsert operations by result (inserted, updated, rejected)",
		},
		[]string{"result"},
	)

	evictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "index_evictions_total",
			Help: "Total products removed by the retention sweeper",
		},
	)
)
