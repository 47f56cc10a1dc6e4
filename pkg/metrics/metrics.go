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

// Package metrics holds the shared label keys, the worker wide metrics and
// the metrics server. The per stage counters live in a metrics.go next to
// the code they count.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelVersion  = "version"
	LabelPlatform = "platform"
	LabelPipeline = "pipeline"
	LabelVertex   = "vertex"
	LabelBuffer   = "buffer"
	LabelReason   = "reason"
	LabelPeriod   = "period"
)

// fixedLookbackSeconds are the always-exposed pending averages, besides the
// configurable default one.
var fixedLookbackSeconds = map[string]int64{"1m": 60, "5m": 300, "15m": 900}

var (
	// BuildInfo provides the worker build information including version and platform
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A metric with a constant value '1', labeled by mantis binary version and platform",
	}, []string{LabelVersion, LabelPlatform})

	// pending is the average of the lag reader Pending samples per buffer
	// over a trailing period
	pending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "vertex",
		Name:      "pending_messages",
		Help:      "Average pending messages in the last period of seconds",
	}, []string{LabelPipeline, LabelVertex, LabelPeriod, LabelBuffer})
)
