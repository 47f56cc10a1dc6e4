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
Package isb defines and implements the inter-stage buffer and its communication
contract. Inter-stage communication is reading from the previous stage, processing,
forwarding to the next stage, and then acknowledging back to the previous stage that
we are done with processing.
*/

package isb

import (
	"context"
	"io"
	"math"
)

const PendingNotAvailable = int64(math.MinInt64)

// BufferFullWritingStrategy decides what a writer does when the buffer is full.
type BufferFullWritingStrategy string

const (
	// RetryUntilSuccess blocks the writer until space frees up; this is what
	// keeps the counting invariant intact under backpressure.
	RetryUntilSuccess BufferFullWritingStrategy = "retryUntilSuccess"
	// DiscardLatest drops the incoming message with a non retryable error.
	// Never used on token-carrying buffers.
	DiscardLatest BufferFullWritingStrategy = "discardLatest"
)

// BufferWriter is the write side of a buffer.
type BufferWriter interface {
	// GetName returns the buffer name.
	GetName() string
	io.Closer
	Write(context.Context, []Message) ([]Offset, []error)
	// CloseWrite marks the buffer end-of-stream. Readers drain what remains
	// and then receive ErrClosed.
	CloseWrite() error
}

// BufferReader is the read side of a buffer.
type BufferReader interface {
	// GetName returns the buffer name.
	GetName() string
	io.Closer
	// Read returns up to the given number of messages. A partial result plus
	// an error is possible and the caller must process the returned messages
	// either way; erred slots stay unread in the buffer. Once the buffer is
	// drained after CloseWrite, Read returns ErrClosed.
	Read(context.Context, int64) ([]*ReadMessage, error)
	// Ack acknowledges a batch of offsets, one error slot each.
	Ack(context.Context, []Offset) []error
	// NoAck returns a batch of offsets unacknowledged so the messages are
	// read again.
	NoAck(context.Context, []Offset)
	// Pending returns the count of messages written but not yet read.
	Pending(context.Context) (int64, error)
}

// LagReader wraps the Pending and GetName methods; the metrics server uses it
// to expose the pending message count of each buffer.
type LagReader interface {
	GetName() string
	// Pending returns the pending messages number.
	Pending(context.Context) (int64, error)
}

// BufferReader can be used as LagReader.
var _ LagReader = (BufferReader)(nil)

// Offset names the position of a read message so it can be acked back.
type Offset interface {
	// String returns the offset identifier.
	String() string
	// Sequence returns a sequence id usable as an index into the buffer.
	Sequence() (int64, error)
	// AckIt acks this one offset. Readers whose ack needs more than the
	// identifier put that work here and call it from Ack.
	AckIt() error
	// NoAck releases the offset without acking so the message is reprocessed.
	NoAck() error
}
