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

// Package reduce hosts the counting loop. The loop reads token messages
// from the inbound buffer, buckets them into interval windows, keeps one
// Counter per window, and emits a summary onto the outbound buffer once a
// window's end has elapsed on the wall clock. The stream has no watermarks;
// the wall clock alone decides when a window closes.
package reduce

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/metrics"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
	"github.com/ApollusEHS-OSS/mantis/pkg/window"
)

// There is no Cap on the backoff because a Cap terminates the retries once
// the duration exceeds it, and a full outbound buffer must block the loop,
// not drop the summary.
var summaryWriteBackoff = wait.Backoff{
	Steps:    math.MaxInt,
	Duration: 1 * time.Second,
	Factor:   1.5,
	Jitter:   0.1,
}

var ackBackoff = wait.Backoff{
	Steps:    10,
	Duration: 10 * time.Millisecond,
	Factor:   1.5,
	Jitter:   0.1,
}

// ReadLoop runs the counting stage between the token buffer and the
// summary buffer. All window and counter state is owned by the goroutine
// running Start; there is deliberately no other entry point that touches
// it.
type ReadLoop struct {
	pipelineName string
	vertexName   string
	fromBuffer   isb.BufferReader
	toBuffer     isb.BufferWriter
	windower     window.Windower
	counters     map[string]*Counter
	opts         *options
	log          *zap.SugaredLogger
}

// NewReadLoop returns a ReadLoop counting tokens from fromBuffer into
// windows produced by the windower, emitting summaries to toBuffer.
func NewReadLoop(pipelineName, vertexName string,
	fromBuffer isb.BufferReader,
	toBuffer isb.BufferWriter,
	windower window.Windower,
	opts ...Option) (*ReadLoop, error) {

	options := defaultOptions()
	for _, o := range opts {
		if err := o(options); err != nil {
			return nil, err
		}
	}
	return &ReadLoop{
		pipelineName: pipelineName,
		vertexName:   vertexName,
		fromBuffer:   fromBuffer,
		toBuffer:     toBuffer,
		windower:     windower,
		counters:     make(map[string]*Counter),
		opts:         options,
		log:          logging.NewLogger(),
	}, nil
}

// Start runs the loop until the token stream is drained or the context
// fails. On end of stream every tracked window is flushed, the outbound
// buffer is closed for writes, and Start returns nil. A counter lifecycle
// violation aborts the loop with the violation error.
func (rl *ReadLoop) Start(ctx context.Context) error {
	rl.log = logging.FromContext(ctx)
	rl.log.Infow("Starting the counting loop", zap.String("from", rl.fromBuffer.GetName()), zap.String("to", rl.toBuffer.GetName()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		readMessages, err := rl.fromBuffer.Read(ctx, rl.opts.readBatchSize)
		if err != nil {
			if errors.Is(err, isb.ErrClosed) && len(readMessages) == 0 {
				return rl.flush(ctx)
			}
			// a partial read still carries tokens that must be counted
			rl.log.Warnw("Failed to read from the token buffer", zap.Error(err))
			readMessagesError.With(map[string]string{metrics.LabelPipeline: rl.pipelineName, metrics.LabelVertex: rl.vertexName, "buffer": rl.fromBuffer.GetName()}).Inc()
		}
		readMessagesCount.With(map[string]string{metrics.LabelPipeline: rl.pipelineName, metrics.LabelVertex: rl.vertexName, "buffer": rl.fromBuffer.GetName()}).Add(float64(len(readMessages)))

		offsets := make([]isb.Offset, 0, len(readMessages))
		for _, m := range readMessages {
			if err := rl.processMessage(m); err != nil {
				return err
			}
			offsets = append(offsets, m.ReadOffset)
		}
		if err := rl.ackMessages(ctx, offsets); err != nil {
			return err
		}

		// a Read that timed out still advances the wall clock checks, so
		// windows close even when the stream idles
		if err := rl.closeElapsed(ctx, time.Now()); err != nil {
			return err
		}
	}
}

// processMessage counts one token. The token rides in the message key.
// Late tokens, whose window has already been closed, are dropped and
// counted in a metric; counting them would violate the immutability of an
// already emitted summary.
func (rl *ReadLoop) processMessage(m *isb.ReadMessage) error {
	iw, ok := rl.windower.AssignWindow(m.EventTime)
	if !ok {
		rl.log.Warnw("Dropping the late token", zap.Time("eventTime", m.EventTime), zap.String("window", iw.String()))
		lateDroppedCount.With(map[string]string{metrics.LabelPipeline: rl.pipelineName, metrics.LabelVertex: rl.vertexName}).Inc()
		return nil
	}

	c, ok := rl.counters[iw.Key()]
	if !ok {
		c = NewCounter(iw)
		rl.counters[iw.Key()] = c
		rl.log.Debugw("Opened window", zap.Time("windowStart", iw.Start), zap.Time("windowEnd", iw.End))
	}
	if err := c.Increment(m.Key); err != nil {
		return err
	}
	tokensCountedCount.With(map[string]string{metrics.LabelPipeline: rl.pipelineName, metrics.LabelVertex: rl.vertexName}).Inc()
	return nil
}

// ackMessages acknowledges the batch, retrying the failed offsets.
func (rl *ReadLoop) ackMessages(ctx context.Context, offsets []isb.Offset) error {
	if len(offsets) == 0 {
		return nil
	}
	var ackOffsets = offsets
	attempt := 0
	err := wait.ExponentialBackoffWithContext(ctx, ackBackoff, func(_ context.Context) (bool, error) {
		errs := rl.fromBuffer.Ack(ctx, ackOffsets)
		attempt += 1
		var failed []isb.Offset
		for i, e := range errs {
			if e != nil {
				failed = append(failed, ackOffsets[i])
			}
		}
		if len(failed) > 0 {
			rl.log.Errorw("Failed to ack tokens, retrying", zap.Int("count", len(failed)), zap.Int("attempt", attempt))
			ackMessageError.With(map[string]string{metrics.LabelPipeline: rl.pipelineName, metrics.LabelVertex: rl.vertexName, "buffer": rl.fromBuffer.GetName()}).Add(float64(len(failed)))
			ackOffsets = failed
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	ackMessagesCount.With(map[string]string{metrics.LabelPipeline: rl.pipelineName, metrics.LabelVertex: rl.vertexName, "buffer": rl.fromBuffer.GetName()}).Add(float64(len(offsets)))
	return nil
}

// closeElapsed closes and emits every window whose end has been reached.
func (rl *ReadLoop) closeElapsed(ctx context.Context, at time.Time) error {
	closed := rl.windower.CloseWindows(at)
	for _, iw := range closed {
		if err := rl.emitWindow(ctx, iw); err != nil {
			return err
		}
	}
	return nil
}

// emitWindow walks one counter through close -> emit -> discard.
func (rl *ReadLoop) emitWindow(ctx context.Context, iw *window.IntervalWindow) error {
	c, ok := rl.counters[iw.Key()]
	if !ok {
		return StateTransitionErr{Window: iw.Key(), State: StateDiscarded, Op: "close"}
	}
	if err := c.Close(); err != nil {
		return err
	}
	summary, err := c.Emit()
	if err != nil {
		return err
	}
	if err := rl.writeSummary(ctx, summary); err != nil {
		return err
	}
	if err := c.Discard(); err != nil {
		return err
	}
	delete(rl.counters, iw.Key())
	windowsClosedCount.With(map[string]string{metrics.LabelPipeline: rl.pipelineName, metrics.LabelVertex: rl.vertexName}).Inc()
	rl.log.Debugw("Closed window", zap.Time("windowStart", iw.Start), zap.Time("windowEnd", iw.End), zap.Int("distinctTokens", len(summary.Counts)))
	return nil
}

// writeSummary pushes one summary into the outbound buffer, blocking while
// the buffer is full. Backpressure here is what eventually stalls the whole
// pipeline instead of losing results.
func (rl *ReadLoop) writeSummary(ctx context.Context, summary *window.Summary) error {
	payload, err := summary.Marshal()
	if err != nil {
		return err
	}
	message := isb.Message{
		Header: isb.Header{
			MessageInfo: isb.MessageInfo{EventTime: summary.Window.End},
			ID:          summary.Window.Key(),
		},
		Body: isb.Body{Payload: payload},
	}

	attempt := 0
	writeErr := wait.ExponentialBackoffWithContext(ctx, summaryWriteBackoff, func(_ context.Context) (bool, error) {
		_, errs := rl.toBuffer.Write(ctx, []isb.Message{message})
		if err := errs[0]; err != nil {
			attempt += 1
			var bufferErr isb.BufferWriteErr
			if errors.As(err, &bufferErr) && bufferErr.IsFull() {
				rl.log.Infow("Summary buffer full, retrying", zap.String("window", summary.Window.String()), zap.Int("attempt", attempt))
				writeMessagesError.With(map[string]string{metrics.LabelPipeline: rl.pipelineName, metrics.LabelVertex: rl.vertexName, "buffer": rl.toBuffer.GetName()}).Inc()
				return false, nil
			}
			return false, err
		}
		return true, nil
	})
	if writeErr != nil {
		return writeErr
	}
	summariesEmittedCount.With(map[string]string{metrics.LabelPipeline: rl.pipelineName, metrics.LabelVertex: rl.vertexName, "buffer": rl.toBuffer.GetName()}).Inc()
	return nil
}

// flush force closes every tracked window on end of stream, emits the
// summaries, and closes the outbound buffer so the sink can drain and stop.
func (rl *ReadLoop) flush(ctx context.Context) error {
	rl.log.Infow("Token stream drained, flushing the open windows", zap.Int("windows", len(rl.counters)))
	closed := rl.windower.CloseAllWindows()
	for _, iw := range closed {
		if err := rl.emitWindow(ctx, iw); err != nil {
			return err
		}
	}
	if err := rl.toBuffer.CloseWrite(); err != nil {
		return err
	}
	rl.log.Infow("Counting loop finished", zap.String("to", rl.toBuffer.GetName()))
	return nil
}
