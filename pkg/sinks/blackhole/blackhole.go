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

package blackhole

import (
	"context"

	"go.uber.org/zap"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
	"github.com/ApollusEHS-OSS/mantis/pkg/metrics"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
	sinkforward "github.com/ApollusEHS-OSS/mantis/pkg/sinks/forward"
)

// Blackhole is a sink to emulate /dev/null; summaries are counted and
// dropped. It exists for benchmarks and tests.
type Blackhole struct {
	name         string
	pipelineName string
	isdf         *sinkforward.DataForward
	logger       *zap.SugaredLogger
}

type Option func(*Blackhole) error

func WithLogger(log *zap.SugaredLogger) Option {
	return func(b *Blackhole) error {
		b.logger = log
		return nil
	}
}

// NewBlackhole returns a new Blackhole sink.
func NewBlackhole(j *job.Job, fromBuffer isb.BufferReader, opts ...Option) (*Blackhole, error) {
	bh := new(Blackhole)
	bh.name = j.GetName()
	bh.pipelineName = j.GetPipelineName()
	for _, o := range opts {
		if err := o(bh); err != nil {
			return nil, err
		}
	}
	if bh.logger == nil {
		bh.logger = logging.NewLogger()
	}

	isdf, err := sinkforward.NewDataForward(bh.pipelineName, bh.name, fromBuffer, bh,
		sinkforward.WithReadBatchSize(j.GetReadBatchSize()), sinkforward.WithLogger(bh.logger))
	if err != nil {
		return nil, err
	}
	bh.isdf = isdf

	return bh, nil
}

// GetName returns the sink name.
func (b *Blackhole) GetName() string {
	return b.name
}

// Write discards the summaries after counting them.
func (b *Blackhole) Write(_ context.Context, messages []isb.Message) ([]isb.Offset, []error) {
	sinkWriteCount.With(map[string]string{metrics.LabelVertex: b.name, metrics.LabelPipeline: b.pipelineName}).Add(float64(len(messages)))

	return nil, make([]error, len(messages))
}

func (b *Blackhole) Close() error {
	return nil
}

// CloseWrite is a no-op.
func (b *Blackhole) CloseWrite() error {
	return nil
}

// Start starts the underlying forwarder.
func (b *Blackhole) Start() <-chan struct{} {
	return b.isdf.Start()
}

// Stop drains what was read and stops.
func (b *Blackhole) Stop() {
	b.isdf.Stop()
}

// ForceStop abandons the in-flight summaries and stops.
func (b *Blackhole) ForceStop() {
	b.isdf.ForceStop()
}
