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
	Subsystem: "sink_forwarder",
	Name:      "read_total",
	Help:      "Total number of summaries read from the summary buffer",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var readBytesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "sink_forwarder",
	Name:      "read_bytes_total",
	Help:      "Total number of summary bytes read",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var readMessagesError = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "sink_forwarder",
	Name:      "read_error_total",
	Help:      "Total number of summary buffer read errors",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var writeMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "sink_forwarder",
	Name:      "write_total",
	Help:      "Total number of summaries written to the sink",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var writeBytesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "sink_forwarder",
	Name:      "write_bytes_total",
	Help:      "Total number of summary bytes written to the sink",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var writeMessagesError = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "sink_forwarder",
	Name:      "write_error_total",
	Help:      "Total number of sink write errors",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var ackMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "sink_forwarder",
	Name:      "ack_total",
	Help:      "Total number of summaries acknowledged on the summary buffer",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

var ackMessageError = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "sink_forwarder",
	Name:      "ack_error_total",
	Help:      "Total number of summary buffer ack errors",
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})

// platformError counts the failures of the forwarder itself, a sink write
// past its backoff for example, as opposed to per message errors.
var platformError = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "sink_forwarder",
	Name:      "platform_error_total",
	Help:      "Total number of platform errors",
}, []string{metrics.LabelPipeline, metrics.LabelVertex})

var forwardAChunkProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "sink_forwarder",
	Name:      "forward_chunk_processing_time",
	Help:      "Processing time of one read-write-ack chunk in microseconds",
	Buckets:   prometheus.ExponentialBucketsRange(100, 60000000*20, 10),
}, []string{metrics.LabelPipeline, metrics.LabelVertex, "buffer"})
