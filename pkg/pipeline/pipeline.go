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

// Package pipeline assembles one worker end to end: the source writes
// tokens to the token buffer through the transformer, the counting loop
// turns the tokens into window summaries on the summary buffer, and the
// sink drains the summaries. The buffers are in memory; a worker is one
// process.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/ApollusEHS-OSS/mantis/pkg/filter"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb/stores/simplebuffer"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
	"github.com/ApollusEHS-OSS/mantis/pkg/metrics"
	"github.com/ApollusEHS-OSS/mantis/pkg/reduce"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
	"github.com/ApollusEHS-OSS/mantis/pkg/sinks"
	"github.com/ApollusEHS-OSS/mantis/pkg/sources"
	"github.com/ApollusEHS-OSS/mantis/pkg/transform"
	"github.com/ApollusEHS-OSS/mantis/pkg/window/fixed"
)

// Pipeline wires the stages of one worker together and runs them. The
// stages own their goroutines; the pipeline only starts them, watches how
// they stop and decides what the stop means.
type Pipeline struct {
	job       *job.Job
	tokens    *simplebuffer.InMemoryBuffer
	summaries *simplebuffer.InMemoryBuffer
	source    sources.Sourcer
	readLoop  *reduce.ReadLoop
	sinker    sinks.Sinker
	unhealthy *atomic.Bool
	logger    *zap.SugaredLogger
}

// New builds the pipeline the job describes: the buffers sized from the
// job limits, the transformer with the language filter, and the source and
// sink the job asks for.
func New(j *job.Job, opts ...Option) (*Pipeline, error) {
	if j == nil {
		return nil, fmt.Errorf("nil job")
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	options := defaultOptions()
	for _, o := range opts {
		if err := o(options); err != nil {
			return nil, err
		}
	}
	logger := options.logger

	tokens := simplebuffer.NewInMemoryBuffer(fmt.Sprintf("%s-tokens", j.GetPipelineName()), j.GetBufferSize(),
		simplebuffer.WithReadTimeOut(j.GetReadTimeout()))
	summaries := simplebuffer.NewInMemoryBuffer(fmt.Sprintf("%s-summaries", j.GetPipelineName()), j.GetBufferSize(),
		simplebuffer.WithReadTimeOut(j.GetReadTimeout()))

	transformerOpts := []transform.Option{transform.WithLogger(logger)}
	if x := j.FilterExpression; x != nil && *x != "" {
		transformerOpts = append(transformerOpts, transform.WithFilterExpression(*x))
	}
	if x := j.EventTimeExpression; x != nil && *x != "" {
		format := ""
		if j.EventTimeFormat != nil {
			format = *j.EventTimeFormat
		}
		transformerOpts = append(transformerOpts, transform.WithEventTimeExpression(*x, format))
	}
	transformer, err := transform.New(j.GetPipelineName(), j.GetName(), filter.New(j.GetTargetLanguage()), transformerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create the transformer, error: %w", err)
	}

	source, err := sources.New(j, tokens, transformer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to find a sourcer, error: %w", err)
	}
	readLoop, err := reduce.NewReadLoop(j.GetPipelineName(), j.GetName(), tokens, summaries,
		fixed.NewWindower(j.GetHopDuration()), reduce.WithReadBatchSize(j.GetReadBatchSize()))
	if err != nil {
		return nil, fmt.Errorf("failed to create the counting loop, error: %w", err)
	}
	sinker, err := sinks.New(j, summaries, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to find a sinker, error: %w", err)
	}

	return &Pipeline{
		job:       j,
		tokens:    tokens,
		summaries: summaries,
		source:    source,
		readLoop:  readLoop,
		sinker:    sinker,
		unhealthy: atomic.NewBool(false),
		logger:    logger,
	}, nil
}

// Run starts every stage and blocks until the pipeline has stopped. A
// cancelled context drains the pipeline gracefully: the source stops, the
// end of stream travels down the buffers, open windows get flushed and the
// sink stops last. Run returns an error when a stage failed fatally, nil
// when the summary stream was fully drained.
func (p *Pipeline) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)

	// The counting loop is the only stage driven by a context. It derives
	// from Background, not from ctx, so a graceful drain is not cut short
	// the moment the run context ends; the cancel is reserved for the
	// fatal paths.
	rlCtx, rlCancel := context.WithCancel(logging.WithLogger(context.Background(), log))
	defer rlCancel()

	log.Infow("Start processing records",
		zap.String("pipeline", p.job.GetPipelineName()),
		zap.String("vertex", p.job.GetName()),
		zap.String("bufferTokens", p.tokens.GetName()),
		zap.String("bufferSummaries", p.summaries.GetName()))

	sourceStopped := p.source.Start()
	sinkStopped := p.sinker.Start()
	rlDone := make(chan error, 1)
	go func() {
		rlDone <- p.readLoop.Start(rlCtx)
	}()

	ms := metrics.NewMetricsServer(p.job, metrics.NewMetricsOptions(ctx,
		[]metrics.HealthChecker{p}, []isb.LagReader{p.tokens, p.summaries})...)
	if shutdown, err := ms.Start(ctx); err != nil {
		rlCancel()
		p.source.ForceStop()
		p.sinker.ForceStop()
		<-sourceStopped
		<-sinkStopped
		<-rlDone
		return fmt.Errorf("failed to start metrics server, error: %w", err)
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	// The sink forwarder is the last stage to stop on every healthy path,
	// so wait for it and nudge the upstream stages as the other events
	// come in.
	done := ctx.Done()
	rlResult := rlDone
	var rlErr error
	var sinkDied bool
	for sinkStopped != nil {
		select {
		case <-done:
			done = nil
			log.Info("SIGTERM, draining the pipeline...")
			p.source.Stop()
		case err := <-rlResult:
			rlResult = nil
			if err != nil {
				rlErr = err
				log.Errorw("Counting loop failed, shutting down the pipeline", zap.Error(err))
				p.unhealthy.Store(true)
				p.source.ForceStop()
				// the loop is dead, nothing writes summaries anymore; close
				// the stream so the sink drains what already landed, then
				// stops itself
				_ = p.summaries.CloseWrite()
			}
		case <-sinkStopped:
			// a drained sink only stops after the summary buffer was
			// closed for writes; a stop before that is the sink giving up
			if rlResult != nil && !p.summaries.IsClosed() {
				sinkDied = true
			}
			sinkStopped = nil
		}
	}

	if sinkDied {
		p.unhealthy.Store(true)
		log.Error("Sink stopped with the summary stream still open, shutting down the pipeline")
		// the counting loop may be blocked writing to the summary buffer
		// nobody drains any more
		rlCancel()
		p.source.ForceStop()
	}
	if rlResult != nil {
		if err := <-rlResult; err != nil && !sinkDied {
			rlErr = err
		}
	}
	<-sourceStopped

	if sinkDied {
		pending, _ := p.summaries.Pending(context.Background())
		return fmt.Errorf("sink stopped with the summary stream still open, %d summaries undelivered", pending)
	}
	if rlErr != nil {
		return fmt.Errorf("counting loop failed, error: %w", rlErr)
	}
	log.Info("Pipeline finished, the summary stream is drained")
	return nil
}

// IsHealthy satisfies metrics.HealthChecker. The pipeline turns unhealthy
// once a stage has failed fatally and stays so; a worker in that state has
// to be restarted.
func (p *Pipeline) IsHealthy(_ context.Context) error {
	if p.unhealthy.Load() {
		return fmt.Errorf("pipeline %q has stopped processing, a stage failed fatally", p.job.GetPipelineName())
	}
	return nil
}
