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

package logger

import (
	"context"

	"go.uber.org/zap"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
	"github.com/ApollusEHS-OSS/mantis/pkg/metrics"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
	sinkforward "github.com/ApollusEHS-OSS/mantis/pkg/sinks/forward"
	"github.com/ApollusEHS-OSS/mantis/pkg/window"
)

// ToLog logs every window summary it receives; it is the default sink.
type ToLog struct {
	name         string
	pipelineName string
	isdf         *sinkforward.DataForward
	logger       *zap.SugaredLogger
}

type Option func(*ToLog) error

func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *ToLog) error {
		t.logger = log
		return nil
	}
}

// NewToLog builds the log sink for a job and hooks it up to the summary
// buffer through a sink forwarder.
func NewToLog(j *job.Job, fromBuffer isb.BufferReader, opts ...Option) (*ToLog, error) {
	toLog := &ToLog{
		name:         j.GetName(),
		pipelineName: j.GetPipelineName(),
	}
	for _, o := range opts {
		if err := o(toLog); err != nil {
			return nil, err
		}
	}
	if toLog.logger == nil {
		toLog.logger = logging.NewLogger()
	}

	isdf, err := sinkforward.NewDataForward(toLog.pipelineName, toLog.name, fromBuffer, toLog,
		sinkforward.WithReadBatchSize(j.GetReadBatchSize()), sinkforward.WithLogger(toLog.logger))
	if err != nil {
		return nil, err
	}
	toLog.isdf = isdf

	return toLog, nil
}

// GetName returns the sink name.
func (t *ToLog) GetName() string {
	return t.name
}

// Write logs one line per window summary. A payload that does not decode is
// logged raw and counted, there is no point retrying it.
func (t *ToLog) Write(_ context.Context, messages []isb.Message) ([]isb.Offset, []error) {
	for _, message := range messages {
		s, err := window.UnmarshalSummary(message.Payload)
		if err != nil {
			logSinkDecodeErrors.With(map[string]string{metrics.LabelVertex: t.name, metrics.LabelPipeline: t.pipelineName}).Inc()
			t.logger.Warnw("Summary does not decode", zap.String("window", message.ID), zap.ByteString("payload", message.Payload), zap.Error(err))
			continue
		}
		logSinkWriteCount.With(map[string]string{metrics.LabelVertex: t.name, metrics.LabelPipeline: t.pipelineName}).Inc()
		t.logger.Infow("Window summary",
			zap.String("window", message.ID),
			zap.Time("start", s.Window.Start),
			zap.Time("end", s.Window.End),
			zap.Int64("tokens", s.TotalTokens()),
			zap.Int("uniques", len(s.Counts)),
			zap.Any("counts", s.Counts))
	}
	return nil, make([]error, len(messages))
}

func (t *ToLog) Close() error {
	return nil
}

// CloseWrite is a no-op, logging has no end-of-stream to signal.
func (t *ToLog) CloseWrite() error {
	return nil
}

// Start starts the underlying forwarder.
func (t *ToLog) Start() <-chan struct{} {
	return t.isdf.Start()
}

// Stop drains what was read and stops.
func (t *ToLog) Stop() {
	t.isdf.Stop()
}

// ForceStop abandons the in-flight summaries and stops.
func (t *ToLog) ForceStop() {
	t.isdf.ForceStop()
}
