package redis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	metricspkg "github.com/ApollusEHS-OSS/mantis/pkg/metrics"
)

// redisSinkWriteErrors is used to indicate the number of XADD errors
var redisSinkWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "redis_sink",
	Name:      "write_error_total",
	Help:      "Total number of XADD errors",
}, []string{metricspkg.LabelVertex, metricspkg.LabelPipeline})

// redisSinkWriteCount is used to indicate the number of summaries appended to the stream
var redisSinkWriteCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "redis_sink",
	Name:      "write_total",
	Help:      "Total number of summaries appended to the stream",
}, []string{metricspkg.LabelVertex, metricspkg.LabelPipeline})
