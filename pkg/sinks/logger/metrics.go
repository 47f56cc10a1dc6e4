package logger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// logSinkWriteCount is used to indicate the number of summaries written to log sink
var logSinkWriteCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "log_sink",
	Name:      "write_total",
	Help:      "Total number of summaries written to log sink",
}, []string{"vertex", "pipeline"})

// logSinkDecodeErrors is used to indicate the number of payloads that did not decode as a summary
var logSinkDecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "log_sink",
	Name:      "decode_error_total",
	Help:      "Total number of payloads that did not decode as a summary",
}, []string{"vertex", "pipeline"})
