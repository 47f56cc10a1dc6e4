package nats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	metricspkg "github.com/ApollusEHS-OSS/mantis/pkg/metrics"
)

// natsSourceReadCount is used to indicate the number of records read by the nats source vertex
var natsSourceReadCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "nats_source",
	Name:      "read_total",
	Help:      "Total number of records Read",
}, []string{metricspkg.LabelPipeline, metricspkg.LabelVertex})
