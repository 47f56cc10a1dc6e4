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
Package simplebuffer is the in memory ring buffer that connects the pipeline
stages. Writers block (or discard, per strategy) when the ring is full, which
is how backpressure propagates to the source. The locking implementation is
very coarse.
*/

package simplebuffer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
)

// InMemoryBuffer implements the isb reader and writer contracts over a ring.
type InMemoryBuffer struct {
	name     string
	size     int64
	buffer   []elem
	writeIdx int64
	readIdx  int64
	closed   *atomic.Bool
	pending  *atomic.Int64
	options  *options
	rwlock   *sync.RWMutex
}

var _ isb.BufferReader = (*InMemoryBuffer)(nil)
var _ isb.BufferWriter = (*InMemoryBuffer)(nil)

// elem is one ring slot. dirty marks a written slot, pending a slot read but
// not yet acknowledged.
type elem struct {
	header  []byte
	body    []byte
	dirty   bool
	ack     bool
	pending bool
}

// NewInMemoryBuffer builds an in memory ring of the given size.
func NewInMemoryBuffer(name string, size int64, opts ...Option) *InMemoryBuffer {
	bufferOptions := &options{
		readTimeOut:           time.Second,
		onFullWritingStrategy: isb.RetryUntilSuccess,
	}

	for _, o := range opts {
		_ = o(bufferOptions)
	}

	sb := &InMemoryBuffer{
		name:     name,
		size:     size,
		buffer:   make([]elem, size),
		writeIdx: int64(0),
		readIdx:  int64(0),
		closed:   atomic.NewBool(false),
		pending:  atomic.NewInt64(0),
		rwlock:   new(sync.RWMutex),
		options:  bufferOptions,
	}
	return sb
}

func (b *InMemoryBuffer) String() string {
	b.rwlock.RLock()
	defer b.rwlock.RUnlock()
	return fmt.Sprintf("%s size:%d readIdx:%d writeIdx:%d", b.name, b.size, b.readIdx, b.writeIdx)
}

// GetName returns the buffer name.
func (b *InMemoryBuffer) GetName() string {
	return b.name
}

// Pending returns the number of written but not yet acknowledged messages.
func (b *InMemoryBuffer) Pending(_ context.Context) (int64, error) {
	return b.pending.Load(), nil
}

// Close is a no-op, there is nothing to release.
func (b *InMemoryBuffer) Close() error {
	return nil
}

// CloseWrite marks end-of-stream; readers drain what is left and then get
// isb.ErrClosed.
func (b *InMemoryBuffer) CloseWrite() error {
	b.closed.Store(true)
	return nil
}

// IsClosed returns whether the buffer was closed for writes.
func (b *InMemoryBuffer) IsClosed() bool {
	return b.closed.Load()
}

// IsFull reports a ring with no free slot under the write index.
func (b *InMemoryBuffer) IsFull() bool {
	b.rwlock.RLock()
	defer b.rwlock.RUnlock()
	return b.buffer[b.writeIdx].dirty
}

// IsEmpty returns whether the queue has nothing left to read.
func (b *InMemoryBuffer) IsEmpty() bool {
	b.rwlock.RLock()
	defer b.rwlock.RUnlock()
	return b.buffer[b.readIdx].pending || !b.buffer[b.readIdx].dirty
}

func (b *InMemoryBuffer) Write(_ context.Context, messages []isb.Message) ([]isb.Offset, []error) {
	var errs = make([]error, len(messages))
	writeOffsets := make([]isb.Offset, len(messages))
	for idx, message := range messages {
		if b.closed.Load() {
			errs[idx] = isb.BufferWriteErr{Name: b.name, InternalErr: true, Message: "write on closed buffer"}
			continue
		}
		if b.IsFull() {
			switch b.options.onFullWritingStrategy {
			case isb.DiscardLatest:
				errs[idx] = isb.NonRetryableBufferWriteErr{Name: b.name, Message: isb.BufferFullMessage}
			default:
				errs[idx] = isb.BufferWriteErr{Name: b.name, Full: true, Message: isb.BufferFullMessage}
			}
			continue
		}

		header, err1 := message.Header.MarshalBinary()
		body, err2 := message.Body.MarshalBinary()
		if err1 != nil || err2 != nil {
			errs[idx] = isb.MessageWriteErr{Name: b.name, Header: message.Header, Body: message.Body, Message: fmt.Sprintf("header:(%s) body:(%s)", err1, err2)}
			continue
		}

		b.rwlock.Lock()
		currentIdx := b.writeIdx
		b.buffer[currentIdx].header = header
		b.buffer[currentIdx].body = body
		b.buffer[currentIdx].dirty = true
		b.buffer[currentIdx].ack = false
		b.writeIdx = (currentIdx + 1) % b.size
		writeOffsets[idx] = isb.SimpleIntOffset(func() int64 { return currentIdx })
		b.rwlock.Unlock()
		b.pending.Inc()
	}
	return writeOffsets, errs
}

func (b *InMemoryBuffer) blockIfEmpty(ctx context.Context) error {
	for {
		if !b.IsEmpty() {
			return nil
		}
		if b.closed.Load() && b.IsEmpty() {
			return isb.ErrClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func (b *InMemoryBuffer) Read(ctx context.Context, count int64) ([]*isb.ReadMessage, error) {
	var readMessages = make([]*isb.ReadMessage, 0, count)
	cctx, cancel := context.WithTimeout(ctx, b.options.readTimeOut)
	defer cancel()
	for i := int64(0); i < count; i++ {
		// park until a slot is readable or the read timeout fires
		if err := b.blockIfEmpty(cctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return readMessages, nil
			}
			if errors.Is(err, isb.ErrClosed) {
				if len(readMessages) > 0 {
					// let the next Read report end-of-stream
					return readMessages, nil
				}
				return nil, isb.ErrClosed
			}
			return readMessages, isb.BufferReadErr{Name: b.name, Empty: true, Message: err.Error()}
		}

		header, body, currentIdx := b.pop()
		msg, err := buildMessage(header, body)
		if err != nil {
			return readMessages, isb.MessageReadErr{
				Name:    b.name,
				Header:  header,
				Body:    body,
				Message: err.Error(),
			}
		}

		readMessage := isb.ReadMessage{Message: msg, ReadOffset: isb.SimpleIntOffset(func() int64 { return currentIdx })}
		readMessages = append(readMessages, &readMessage)
	}

	return readMessages, nil
}

// pop marks the slot under readIdx pending and advances the read index.
func (b *InMemoryBuffer) pop() (header []byte, body []byte, idx int64) {
	b.rwlock.Lock()
	defer b.rwlock.Unlock()
	idx = b.readIdx
	b.buffer[idx].pending = true
	b.readIdx = (idx + 1) % b.size
	return b.buffer[idx].header, b.buffer[idx].body, idx
}

func buildMessage(header []byte, body []byte) (isb.Message, error) {
	var msg isb.Message
	if err := msg.Header.UnmarshalBinary(header); err != nil {
		return msg, err
	}
	err := msg.Body.UnmarshalBinary(body)
	return msg, err
}

// Ack acknowledges the given offsets, freeing the ring slots.
func (b *InMemoryBuffer) Ack(_ context.Context, offsets []isb.Offset) []error {
	errs := make([]error, len(offsets))
	for index, offset := range offsets {
		seq, err := offset.Sequence()
		if err != nil {
			errs[index] = isb.MessageAckErr{Name: b.name, Message: err.Error(), Offset: offset}
			continue
		}
		if seq >= b.size {
			errs[index] = isb.MessageAckErr{
				Name:    b.name,
				Message: fmt.Sprintf("given index (%d) >= size of the buffer (%d)", seq, b.size),
				Offset:  offset,
			}
			continue
		}

		b.rwlock.Lock()
		b.buffer[seq].ack = true
		b.buffer[seq].pending = false
		b.buffer[seq].dirty = false
		b.rwlock.Unlock()
		b.pending.Dec()
	}

	return errs
}

func (b *InMemoryBuffer) NoAck(_ context.Context, _ []isb.Offset) {}

// GetMessages returns the first num slots of the ring decoded, for tests.
func (b *InMemoryBuffer) GetMessages(num int) []*isb.Message {
	b.rwlock.RLock()
	defer b.rwlock.RUnlock()
	var msgs = make([]*isb.Message, 0, num)
	for i := 0; i < num && i < len(b.buffer); i++ {
		msg, _ := buildMessage(b.buffer[i].header, b.buffer[i].body)
		msgs = append(msgs, &msg)
	}
	return msgs
}
