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

package reduce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	metricspkg "github.com/ApollusEHS-OSS/mantis/pkg/metrics"
)

// readMessagesCount is used to indicate the number of tokens read
var readMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "counter",
	Name:      "read_total",
	Help:      "Total number of tokens read",
}, []string{metricspkg.LabelPipeline, metricspkg.LabelVertex, "buffer"})

// readMessagesError is used to indicate the number of read errors
var readMessagesError = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "counter",
	Name:      "read_error_total",
	Help:      "Total number of read errors",
}, []string{metricspkg.LabelPipeline, metricspkg.LabelVertex, "buffer"})

// ackMessagesCount is used to indicate the number of tokens acknowledged
var ackMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "counter",
	Name:      "ack_total",
	Help:      "Total number of tokens acknowledged",
}, []string{metricspkg.LabelPipeline, metricspkg.LabelVertex, "buffer"})

// ackMessageError is used to indicate the number of ack errors
var ackMessageError = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "counter",
	Name:      "ack_error_total",
	Help:      "Total number of ack errors",
}, []string{metricspkg.LabelPipeline, metricspkg.LabelVertex, "buffer"})

// tokensCountedCount is used to indicate the number of tokens counted into windows
var tokensCountedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "counter",
	Name:      "tokens_total",
	Help:      "Total number of tokens counted into windows",
}, []string{metricspkg.LabelPipeline, metricspkg.LabelVertex})

// lateDroppedCount is used to indicate the number of tokens dropped for arriving after their window closed
var lateDroppedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "counter",
	Name:      "late_dropped_total",
	Help:      "Total number of tokens dropped because their window had already closed",
}, []string{metricspkg.LabelPipeline, metricspkg.LabelVertex})

// windowsClosedCount is used to indicate the number of windows closed
var windowsClosedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "counter",
	Name:      "windows_closed_total",
	Help:      "Total number of windows closed",
}, []string{metricspkg.LabelPipeline, metricspkg.LabelVertex})

// summariesEmittedCount is used to indicate the number of summaries emitted
var summariesEmittedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "counter",
	Name:      "summaries_emitted_total",
	Help:      "Total number of window summaries emitted",
}, []string{metricspkg.LabelPipeline, metricspkg.LabelVertex, "buffer"})

// writeMessagesError is used to indicate the number of summary write retries
var writeMessagesError = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "counter",
	Name:      "write_error_total",
	Help:      "Total number of summary write failures that were retried",
}, []string{metricspkg.LabelPipeline, metricspkg.LabelVertex, "buffer"})
