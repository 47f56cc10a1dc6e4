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

package transform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	metricspkg "github.com/ApollusEHS-OSS/mantis/pkg/metrics"
)

// recordsInCount is used to indicate the number of records entering the transformer
var recordsInCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "transformer",
	Name:      "records_in_total",
	Help:      "Total number of records read from the source",
}, []string{metricspkg.LabelPipeline, metricspkg.LabelVertex})

// recordsFilteredCount is used to indicate the number of records rejected by the filter
var recordsFilteredCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "transformer",
	Name:      "records_filtered_total",
	Help:      "Total number of records rejected by the filter",
}, []string{metricspkg.LabelPipeline, metricspkg.LabelVertex})

// recordsMalformedCount is used to indicate the number of records that could not be decoded
var recordsMalformedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "transformer",
	Name:      "records_malformed_total",
	Help:      "Total number of records dropped because they could not be decoded",
}, []string{metricspkg.LabelPipeline, metricspkg.LabelVertex})

// tokensOutCount is used to indicate the number of tokens produced
var tokensOutCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "transformer",
	Name:      "tokens_out_total",
	Help:      "Total number of tokens produced",
}, []string{metricspkg.LabelPipeline, metricspkg.LabelVertex})
