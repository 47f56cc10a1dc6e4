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
Package forward does the Read (source) -> Transform -> Forward (token buffer) -> Ack (source)
loop on the source side of the pipeline.
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

	"github.com/ApollusEHS-OSS/mantis/pkg/forward/applier"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/metrics"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
)

// DataForward reads raw records from the source, splits them into token
// messages through the transformer and forwards those to the token buffer.
// When the source reports end-of-stream the forwarder drains it, stops
// itself and closes the token buffer for writes so the end-of-stream
// cascades to the counting loop.
type DataForward struct {
	ctx context.Context
	// cancelFn breaks the retry loops; the Shutdown bookkeeping decides
	// whether the in-flight chunk still gets finished.
	cancelFn     context.CancelFunc
	fromBuffer   isb.BufferReader
	toBuffer     isb.BufferWriter
	transformer  applier.TransformApplier
	vertexName   string
	pipelineName string
	opts         options
	Shutdown
}

// NewDataForward creates a source data forwarder.
func NewDataForward(pipelineName, vertexName string,
	fromBuffer isb.BufferReader,
	toBuffer isb.BufferWriter,
	transformer applier.TransformApplier,
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
		toBuffer:     toBuffer,
		transformer:  transformer,
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

// Start starts reading from the source and forwards to the token buffer.
// Call Stop to stop; the returned channel is closed once everything is
// drained and released.
func (df *DataForward) Start() <-chan struct{} {
	log := logging.FromContext(df.ctx)
	stopped := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		log.Info("Starting source forwarder...")
		defer wg.Done()
		for {
			select {
			case <-df.ctx.Done():
				ok, err := df.IsShuttingDown()
				if err != nil {
					log.Errorw("Failed to check the shutdown state", zap.Error(err))
				}
				if ok {
					log.Info("Shutting down source forwarder...")
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
		// the source is done for, close the token buffer for writes so the
		// counting loop downstream gets the end-of-stream and flushes the
		// open windows.
		if err := df.toBuffer.CloseWrite(); err != nil {
			log.Errorw("Failed to close the token buffer for writes", zap.Error(err))
		} else {
			log.Infow("Closed the token buffer for writes", zap.String("bufferTo", df.toBuffer.GetName()))
		}
		// Clean up resources for the source reader and the writer.
		if err := df.fromBuffer.Close(); err != nil {
			log.Errorw("Failed to close source reader, shutdown anyways...", zap.Error(err))
		} else {
			log.Infow("Closed source reader", zap.String("bufferFrom", df.fromBuffer.GetName()))
		}
		if err := df.toBuffer.Close(); err != nil {
			log.Errorw("Failed to close token buffer writer, shutdown anyways...", zap.Error(err))
		} else {
			log.Infow("Closed token buffer writer", zap.String("bufferTo", df.toBuffer.GetName()))
		}
		close(stopped)
	}()

	return stopped
}

// readTransformPair represents a read record and the token messages it was
// transformed into.
type readTransformPair struct {
	readMessage    *isb.ReadMessage
	tokenMessages  []*isb.Message
	transformError error
}

// forwardAChunk forwards a chunk of messages from the source to the token buffer. It does the
// Read -> Transform -> Forward -> Ack chain for a chunk of messages returned by the first Read call.
// It will return only if we are successfully able to ack the messages after forwarding, barring
// any platform errors. The platform errors include buffer-full, buffer-not-reachable, etc., but
// do not include errors due to record contents; those are dropped inside the transformer.
func (df *DataForward) forwardAChunk(ctx context.Context) {
	start := time.Now()
	readMessages, err := df.fromBuffer.Read(ctx, df.opts.readBatchSize)
	if err != nil {
		if errors.Is(err, isb.ErrClosed) && len(readMessages) == 0 {
			// end-of-stream; drain is complete because the read was empty
			df.opts.logger.Infow("Source is drained, initiating shutdown", zap.String("bufferFrom", df.fromBuffer.GetName()))
			df.Stop()
			return
		}
		df.opts.logger.Warnw("Failed to read from source", zap.Error(err))
		readMessagesError.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": df.fromBuffer.GetName()}).Inc()
	}
	readMessagesCount.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": df.fromBuffer.GetName()}).Add(float64(len(readMessages)))

	// an empty read loops us back for the next chunk
	if len(readMessages) == 0 {
		return
	}

	// the offsets to ack back once the whole chunk has been forwarded
	var readOffsets = make([]isb.Offset, len(readMessages))
	for idx, m := range readMessages {
		readOffsets[idx] = m.ReadOffset
	}

	// the work channel feeding the transform pool
	transformCh := make(chan *readTransformPair)
	// transformResults stores the results after transform processing for all read messages. It indexes
	// a read message to the corresponding token messages, so the batch order is preserved.
	transformResults := make([]readTransformPair, len(readMessages))

	// create a pool of transform processors
	var wg sync.WaitGroup
	for i := 0; i < df.opts.transformConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			df.concurrentApplyTransform(ctx, transformCh)
		}()
	}
	concurrentTransformStart := time.Now()

	for idx, m := range readMessages {
		readBytesCount.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": df.fromBuffer.GetName()}).Add(float64(len(m.Payload)))
		// hand the record to whichever worker is free
		transformResults[idx].readMessage = m
		transformCh <- &transformResults[idx]
	}
	close(transformCh)
	// not an unbounded wait; a worker stuck on an internal error bails out
	// once ForceStop is invoked
	wg.Wait()
	df.opts.logger.Debugw("Concurrent applyTransform completed",
		zap.Int("concurrency", df.opts.transformConcurrency),
		zap.Duration("took", time.Since(concurrentTransformStart)))

	// collect the token messages in read order.
	var writeMessages []isb.Message
	for _, result := range transformResults {
		// one transform failure fails the whole chunk; NoAck everything and
		// take the reread rather than track partial progress
		if result.transformError != nil {
			transformError.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName}).Inc()
			df.opts.logger.Errorw("Failed to apply the transform", zap.Error(result.transformError))
			df.fromBuffer.NoAck(ctx, readOffsets)
			return
		}
		for _, m := range result.tokenMessages {
			writeMessages = append(writeMessages, *m)
		}
	}

	// forward the tokens to the token buffer
	if _, err = df.writeToBuffer(ctx, df.toBuffer, writeMessages); err != nil {
		df.opts.logger.Errorw("Failed to write to the token buffer", zap.Error(err))
		df.fromBuffer.NoAck(ctx, readOffsets)
		return
	}

	// transform errors fail the whole batch, so at this point every read
	// message was fully forwarded and everything can be acked.
	err = df.ackFromBuffer(ctx, readOffsets)
	if err != nil {
		df.opts.logger.Errorw("Failed to ack from source", zap.Error(err))
		ackMessageError.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": df.fromBuffer.GetName()}).Add(float64(len(readOffsets)))
		return
	}
	ackMessagesCount.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": df.fromBuffer.GetName()}).Add(float64(len(readOffsets)))

	forwardAChunkProcessingTime.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": df.fromBuffer.GetName()}).Observe(float64(time.Since(start).Microseconds()))
}

// ackFromBuffer acknowledges the offsets back to the source. It blocks until
// every offset is acked or a shutdown cuts the retries short.
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
			df.opts.logger.Errorw("Failed to ack from source, retrying", zap.Any("errors", summarizedErr), zap.Int("attempt", attempt))
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
		df.opts.logger.Errorw("Gave up acking the records back to the source", zap.Error(ctxClosedErr))
	}

	return ctxClosedErr
}

// writeToBuffer writes the tokens to the token buffer and blocks until every
// one of them is in. A full buffer is retried without limit so backpressure
// stalls the source instead of losing tokens; only a shutdown cuts the loop.
func (df *DataForward) writeToBuffer(ctx context.Context, toBuffer isb.BufferWriter, messages []isb.Message) (writeOffsets []isb.Offset, err error) {
	var (
		totalCount int
		writeCount int
		writeBytes float64
		dropBytes  float64
	)
	totalCount = len(messages)
	writeOffsets = make([]isb.Offset, 0, totalCount)

	for {
		_writeOffsets, errs := toBuffer.Write(ctx, messages)
		// failedMessages stays nil on the happy path, the slice is only grown on rejects
		var failedMessages []isb.Message
		needRetry := false
		for idx, msg := range messages {
			if err := errs[idx]; err != nil {
				// a non retryable error means the buffer decided to drop the
				// message, a retryable one (full, internal) keeps the message
				// in the loop; tokens are only droppable by explicit strategy.
				if errors.As(err, &isb.NonRetryableBufferWriteErr{}) {
					dropBytes += float64(len(msg.Payload))
				} else {
					needRetry = true
					failedMessages = append(failedMessages, msg)
					writeMessagesError.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": toBuffer.GetName()}).Inc()
					// a stop request breaks a write stuck on an internal error
					if ok, _ := df.IsShuttingDown(); ok {
						platformError.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName}).Inc()
						return writeOffsets, fmt.Errorf("writeToBuffer, stop requested with %d tokens still unwritten, %v", len(failedMessages), errs)
					}
				}
			} else {
				writeCount++
				writeBytes += float64(len(msg.Payload))
				if _writeOffsets != nil {
					writeOffsets = append(writeOffsets, _writeOffsets[idx])
				}
			}
		}

		if needRetry {
			df.opts.logger.Errorw("Retrying the tokens the buffer rejected",
				zap.Any("errors", errorArrayToMap(errs)),
				zap.String(metrics.LabelPipeline, df.pipelineName),
				zap.String(metrics.LabelVertex, df.vertexName),
				zap.String("buffer", toBuffer.GetName()),
			)
			messages = failedMessages
			time.Sleep(df.opts.retryInterval)
		} else {
			break
		}
	}

	dropMessagesCount.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": toBuffer.GetName()}).Add(float64(totalCount - writeCount))
	dropBytesCount.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": toBuffer.GetName()}).Add(dropBytes)
	writeMessagesCount.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": toBuffer.GetName()}).Add(float64(writeCount))
	writeBytesCount.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName, "buffer": toBuffer.GetName()}).Add(writeBytes)
	return writeOffsets, nil
}

// concurrentApplyTransform is one worker of the transform pool. It drains the
// request channel, filling each pair in place.
func (df *DataForward) concurrentApplyTransform(ctx context.Context, readMessagePair <-chan *readTransformPair) {
	for pair := range readMessagePair {
		start := time.Now()
		transformReadMessagesCount.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName}).Inc()
		tokenMessages, err := df.applyTransform(ctx, pair.readMessage)
		transformWriteMessagesCount.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName}).Add(float64(len(tokenMessages)))
		pair.tokenMessages = append(pair.tokenMessages, tokenMessages...)
		pair.transformError = err
		transformProcessingTime.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName}).Observe(float64(time.Since(start).Microseconds()))
	}
}

// applyTransform applies the transform and will block if there is an internal error; it releases
// the block only on shutdown. Record-content problems are not errors, the transformer drops those
// records itself, so a returned error is always worth the retry.
func (df *DataForward) applyTransform(ctx context.Context, readMessage *isb.ReadMessage) ([]*isb.Message, error) {
	for {
		tokenMessages, err := df.transformer.ApplyTransform(ctx, readMessage)
		if err != nil {
			df.opts.logger.Errorw("Transformer.Apply error", zap.Error(err))
			time.Sleep(df.opts.retryInterval)
			// an error here is an internal fault, not bad input, so retry
			// until it clears; only a stop request ends the loop
			if ok, _ := df.IsShuttingDown(); ok {
				df.opts.logger.Errorw("Transformer.Apply, stop requested while stuck on an internal error", zap.Error(err))
				platformError.With(map[string]string{metrics.LabelVertex: df.vertexName, metrics.LabelPipeline: df.pipelineName}).Inc()
				return nil, err
			}
			continue
		} else {
			// if we do not get a time from the transformer, we set it to the time of the record it came from
			for _, m := range tokenMessages {
				if m.EventTime.IsZero() {
					m.EventTime = readMessage.EventTime
				}
			}
			return tokenMessages, nil
		}
	}
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
