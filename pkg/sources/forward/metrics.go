/*
Copyright 2022 The Mantis Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package forward

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ApollusEHS-OSS/mantis/pkg/metrics"
)

var readMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "source_forwarder",
	Name:      "read_total",
	Help:      "Total number of records read from the source",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var readBytesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "source_forwarder",
	Name:      "read_bytes_total",
	Help:      "Total number of record bytes read from the source",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var readMessagesError = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "source_forwarder",
	Name:      "read_error_total",
	Help:      "Total number of source read errors",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var writeMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "source_forwarder",
	Name:      "write_total",
	Help:      "Total number of tokens written to the token buffer",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var writeBytesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "source_forwarder",
	Name:      "write_bytes_total",
	Help:      "Total number of token bytes written",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var writeMessagesError = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "source_forwarder",
	Name:      "write_error_total",
	Help:      "Total number of token buffer write errors",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

// The drop pair stays at zero under the default full-buffer strategy; only a
// job that opts into discardLatest can shed tokens here.
var dropMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "source_forwarder",
	Name:      "drop_total",
	Help:      "Total number of tokens dropped by a non retryable buffer rejection",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var dropBytesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "source_forwarder",
	Name:      "drop_bytes_total",
	Help:      "Total number of token bytes dropped",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var ackMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "source_forwarder",
	Name:      "ack_total",
	Help:      "Total number of records acknowledged back to the source",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var ackMessageError = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "source_forwarder",
	Name:      "ack_error_total",
	Help:      "Total number of source ack errors",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var transformError = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "source_forwarder",
	Name:      "transformer_error_total",
	Help:      "Total number of transform chain errors",
}, []string{metrics.LabelPipeline, metrics.LabelVertex})

// platformError counts the failures of the forwarder itself as opposed to per
// message errors.
var platformError = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "source_forwarder",
	Name:      "platform_error_total",
	Help:      "Total number of platform errors",
}, []string{metrics.LabelPipeline, metrics.LabelVertex})

var transformReadMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "source_forwarder",
	Name:      "transformer_read_total",
	Help:      "Total number of records handed to the transform chain",
}, []string{metrics.LabelPipeline, metrics.LabelVertex})

var transformWriteMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "source_forwarder",
	Name:      "transformer_write_total",
	Help:      "Total number of tokens produced by the transform chain",
}, []string{metrics.LabelPipeline, metrics.LabelVertex})

var transformProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "source_forwarder",
	Name:      "transformer_processing_time",
	Help:      "Processing time of the transform chain in microseconds",
	Buckets:   prometheus.ExponentialBucketsRange(100, 60000000*15, 10),
}, []string{metrics.LabelPipeline, metrics.LabelVertex})

var forwardAChunkProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "source_forwarder",
	Name:      "forward_chunk_processing_time",
	Help:      "Processing time of one read-transform-write-ack chunk in microseconds",
	Buckets:   prometheus.ExponentialBucketsRange(100, 60000000*20, 10),
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})
