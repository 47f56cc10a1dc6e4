package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	metricspkg "github.com/ApollusEHS-OSS/mantis/pkg/metrics"
)

// kafkaSinkWriteErrors is used to indicate the number of summaries the producer rejected
var kafkaSinkWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "kafka_sink",
	Name:      "write_error_total",
	Help:      "Total number of summaries the kafka producer rejected",
}, []string{metricspkg.LabelVertex, metricspkg.LabelPipeline})

// kafkaSinkWriteCount is used to indicate the number of summaries produced to the topic
var kafkaSinkWriteCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "kafka_sink",
	Name:      "write_total",
	Help:      "Total number of summaries written to kafka",
}, []string{metricspkg.LabelVertex, metricspkg.LabelPipeline})
