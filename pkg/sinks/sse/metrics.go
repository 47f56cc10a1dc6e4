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

package sse

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	metricspkg "github.com/ApollusEHS-OSS/mantis/pkg/metrics"
)

// sseSinkWriteCount is used to indicate the number of summaries written to the sink
var sseSinkWriteCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "sse_sink",
	Name:      "write_total",
	Help:      "Total number of summaries written to sse sink",
}, []string{metricspkg.LabelVertex, metricspkg.LabelPipeline})

// sseSinkActiveClients is used to indicate the number of subscribed clients
var sseSinkActiveClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "sse_sink",
	Name:      "active_clients",
	Help:      "Number of clients subscribed to the event stream",
}, []string{metricspkg.LabelVertex, metricspkg.LabelPipeline})

// sseSinkDroppedClients is used to indicate the number of clients disconnected for being slow
var sseSinkDroppedClients = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "sse_sink",
	Name:      "dropped_clients_total",
	Help:      "Total number of clients disconnected for not draining their events",
}, []string{metricspkg.LabelVertex, metricspkg.LabelPipeline})
