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

/*
Package forward does the Read (summary buffer) -> Write (sink) -> Ack loop on
the sink side of the pipeline. Sink writes are retried on a bounded backoff;
exhausting it force stops the forwarder, because from that point on the worker
can no longer honor the promise that every closed window reaches the sink.
*/
package forward

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/metrics"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
)

// DataForward reads window summaries from the summary buffer and writes them
// to the sink. When the summary buffer reports end-of-stream the forwarder
// drains it and stops itself, which is the tail end of the shutdown cascade
// started by the source.
type DataForward struct {
	ctx context.Context
	// cancelFn breaks the retry loops; the Shutdown bookkeeping decides
	// whether the in-flight batch still gets finished.
	cancelFn     context.CancelFunc
	fromBuffer   isb.BufferReader
	toSink       isb.BufferWriter
	vertexName   string
	pipelineName string
	opts         options
	Shutdown
}

// NewDataForward creates a sink data forwarder.
func NewDataForward(pipelineName, vertexName string,
	fromBuffer isb.BufferReader,
	toSink isb.BufferWriter,
	opts ...Option) (*DataForward, error) {

	options := DefaultOptions()
	for _, o := range opts {
		if err := o(options); err != nil {
			return nil, err
		}
	}
	// the forwarder owns this context; Stop cancels it, not the caller
	ctx, cancel := context.WithCancel(context.Background())

	var df = DataForward{
		ctx:          ctx,
		cancelFn:     cancel,
		fromBuffer:   fromBuffer,
		toSink:       toSink,
		vertexName:   vertexName,
		pipelineName: pipelineName,
		Shutdown: Shutdown{
			mu: new(sync.RWMutex),
		},
		opts: *options,
	}

	df.ctx = logging.WithLogger(ctx, options.logger)

	return &df, nil
}

// Start starts reading the summary buffer and forwards to the sink. Call
// Stop to stop; the returned channel is closed once everything is drained
// and released.
func (df *DataForward) Start() <-chan struct{} {
	log := logging.FromContext(df.ctx)
	stopped := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		log.Info("Starting sink forwarder...")
		defer wg.Done()
		for {
			select {
			case <-df.ctx.Done():
				ok, err := df.IsShuttingDown()
				if err != nil {
					log.Errorw("Failed to check the shutdown state", zap.Error(err))
				}
				if ok {
					log.Info("Shutting down sink forwarder...")
					return
				}
			default:
				// no stop requested yet, keep forwarding
			}
			df.forwardAChunk(df.ctx)
		}
	}()

	go func() {
		wg.Wait()
		// Clean up resources for the summary buffer reader and the sink.
		if err := df.fromBuffer.Close(); err != nil {
			log.Errorw("Failed to close summary buffer reader, shutdown anyways...", zap.Error(err))
		} else {
			log.Infow("Closed summary buffer reader", zap.String("bufferFrom", df.fromBuffer.GetName()))
		}
		if err := df.toSink.Close(); err != nil {
			log.Errorw("Failed to close sink writer, shutdown anyways...", zap.Error(err))
		} else {
			log.Infow("Closed sink writer", zap.String("sink", df.toSink.GetName()))
		}
		close(stopped)
	}()

	return stopped
}

// forwardAChunk forwards a chunk of summaries from the summary buffer to the sink. It does the
// Read -> Write -> Ack chain for a chunk of messages returned by the first Read call. A summary
// is acked only after the sink accepted it; a sink that keeps rejecting the chunk past the write
// backoff makes the forwarder force stop itself.
func (df *DataForward) forwardAChunk(ctx context.Context) {
	start := time.Now()
	readMessages, err := df.fromBuffer.Read(ctx, df.opts.readBatchSize)
	if err != nil {
		if errors.Is(err, isb.ErrClosed) && len(readMessages) == 0 {
			// end-of-stream; drain is complete because the read was empty
			df.opts.logger.Infow("Summary buffer is drained, initiating shutdown", zap.String("bufferFrom", df.fromBuffer.GetName()))
			df.Stop()
			return
		}
		df.opts.logger.Warnw("Failed to read from the summary buffer", zap.Error(err))
		readMessagesError.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": df.fromBuffer.GetName()}).Inc()
	}
	readMessagesCount.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": df.fromBuffer.GetName()}).Add(float64(len(readMessages)))

	// an empty read loops us back for the next chunk
	if len(readMessages) == 0 {
		return
	}

	var readOffsets = make([]isb.Offset, len(readMessages))
	var writeMessages = make([]isb.Message, len(readMessages))
	for idx, m := range readMessages {
		readOffsets[idx] = m.ReadOffset
		writeMessages[idx] = m.Message
		readBytesCount.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": df.fromBuffer.GetName()}).Add(float64(len(m.Payload)))
	}

	if _, err = df.writeToSink(ctx, df.toSink, writeMessages); err != nil {
		// summaries must not be lost; a sink we cannot write to even after
		// the backoff means this worker has to die and be restarted.
		df.opts.logger.Errorw("Failed to write the summaries to the sink, shutting down", zap.Error(err), zap.String("sink", df.toSink.GetName()))
		platformError.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName}).Inc()
		df.fromBuffer.NoAck(ctx, readOffsets)
		df.ForceStop()
		return
	}

	err = df.ackFromBuffer(ctx, readOffsets)
	if err != nil {
		df.opts.logger.Errorw("Failed to ack from the summary buffer", zap.Error(err))
		ackMessageError.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": df.fromBuffer.GetName()}).Add(float64(len(readOffsets)))
		return
	}
	ackMessagesCount.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": df.fromBuffer.GetName()}).Add(float64(len(readOffsets)))

	forwardAChunkProcessingTime.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": df.fromBuffer.GetName()}).Observe(float64(time.Since(start).Microseconds()))
}

// ackFromBuffer acknowledges the offsets back to the summary buffer. It blocks
// until every offset is acked or a shutdown cuts the retries short.
func (df *DataForward) ackFromBuffer(ctx context.Context, offsets []isb.Offset) error {
	var ackRetryBackOff = wait.Backoff{
		Factor:   1,
		Jitter:   0.1,
		Steps:    math.MaxInt,
		Duration: time.Millisecond * 10,
	}
	var ackOffsets = offsets
	attempt := 0

	ctxClosedErr := wait.ExponentialBackoff(ackRetryBackOff, func() (done bool, err error) {
		errs := df.fromBuffer.Ack(ctx, ackOffsets)
		attempt += 1
		summarizedErr := errorArrayToMap(errs)
		var failedOffsets []isb.Offset
		if len(summarizedErr) > 0 {
			df.opts.logger.Errorw("Failed to ack from the summary buffer, retrying", zap.Any("errors", summarizedErr), zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				// the context going away ends the retries
				return false, ctx.Err()
			default:
				// keep only the offsets that failed
				for i, offset := range ackOffsets {
					if errs[i] != nil {
						failedOffsets = append(failedOffsets, offset)
					}
				}
				ackOffsets = failedOffsets
				if ok, _ := df.IsShuttingDown(); ok {
					ackErr := fmt.Errorf("ackFromBuffer, stop requested while stuck on an internal error, %v", summarizedErr)
					return false, ackErr
				}
				return false, nil
			}
		} else {
			return true, nil
		}
	})

	if ctxClosedErr != nil {
		df.opts.logger.Errorw("Gave up acking the summaries back to the buffer", zap.Error(ctxClosedErr))
	}

	return ctxClosedErr
}

// writeToSink writes an array of summaries to the sink and retries only the failed ones. Unlike
// the writes onto the internal buffers this retry is bounded; when the backoff is exhausted the
// remaining failures are returned and the caller treats them as fatal.
func (df *DataForward) writeToSink(ctx context.Context, toSink isb.BufferWriter, messages []isb.Message) (writeOffsets []isb.Offset, err error) {
	var (
		writeCount int
		writeBytes float64
	)
	writeOffsets = make([]isb.Offset, 0, len(messages))
	attempt := 0

	err = wait.ExponentialBackoff(df.opts.retryBackoff, func() (done bool, _ error) {
		_writeOffsets, errs := toSink.Write(ctx, messages)
		// failedMessages stays nil on the happy path, the slice is only grown on rejects
		var failedMessages []isb.Message
		for idx, msg := range messages {
			if err := errs[idx]; err != nil {
				failedMessages = append(failedMessages, msg)
				writeMessagesError.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": toSink.GetName()}).Inc()
			} else {
				writeCount++
				writeBytes += float64(len(msg.Payload))
				if _writeOffsets != nil {
					writeOffsets = append(writeOffsets, _writeOffsets[idx])
				}
			}
		}

		if len(failedMessages) > 0 {
			attempt += 1
			df.opts.logger.Errorw("Retrying the summaries the sink rejected",
				zap.Any("errors", errorArrayToMap(errs)),
				zap.Int("attempt", attempt),
				zap.String(metrics.LabelPipeline, df.pipelineName),
				zap.String(metrics.LabelVertex, df.vertexName),
				zap.String("sink", toSink.GetName()),
			)
			messages = failedMessages
			// a stop request breaks a write stuck on rejects before the backoff runs out
			if ok, _ := df.IsShuttingDown(); ok {
				return false, fmt.Errorf("writeToSink, stop requested with %d summaries still failing, %v", len(failedMessages), errorArrayToMap(errs))
			}
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		if errors.Is(err, wait.ErrWaitTimeout) {
			err = fmt.Errorf("failed to write to the sink after %d attempts, %d summaries still failing", attempt, len(messages))
		}
		return writeOffsets, err
	}

	writeMessagesCount.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": toSink.GetName()}).Add(float64(writeCount))
	writeBytesCount.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": toSink.GetName()}).Add(writeBytes)
	return writeOffsets, nil
}

// errorArrayToMap folds an error slice into counts keyed by the error text.
func errorArrayToMap(errs []error) map[string]int64 {
	result := make(map[string]int64)
	for _, err := range errs {
		if err != nil {
			result[err.Error()]++
		}
	}
	return result
}
