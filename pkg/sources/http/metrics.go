package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	metricspkg "github.com/ApollusEHS-OSS/mantis/pkg/metrics"
)

// httpSourceReadCount is used to indicate the number of records accepted by the http source
var httpSourceReadCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "http_source",
	Name:      "read_total",
	Help:      "Total number of records accepted by the http source",
}, []string{metricspkg.LabelPipeline, metricspkg.LabelVertex})
