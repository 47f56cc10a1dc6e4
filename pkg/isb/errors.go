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

package isb

import (
	"errors"
	"fmt"
)

// BufferFullMessage is the message carried by the write errors a full buffer
// hands out.
const BufferFullMessage = "Buffer full!"

// ErrClosed is returned by Read once the buffer was CloseWrite'd and fully
// drained. It is the end-of-stream signal between stages.
var ErrClosed = errors.New("buffer closed")

// MessageWriteErr is returned when a message cannot be serialized into the
// buffer.
type MessageWriteErr struct {
	Name    string
	Header  Header
	Body    Body
	Message string
}

func (e MessageWriteErr) Error() string {
	return fmt.Sprintf("%s: %s, header: %#v body: %#v", e.Name, e.Message, e.Header, e.Body)
}

// BufferWriteErr is returned when a write to the buffer fails; Full marks the
// retryable out-of-space case.
type BufferWriteErr struct {
	Name        string
	Full        bool
	InternalErr bool
	Message     string
}

func (e BufferWriteErr) Error() string {
	return fmt.Sprintf("%s: %s full=%t internal=%t", e.Name, e.Message, e.Full, e.InternalErr)
}

// IsFull returns true when the write failed on a full buffer.
func (e BufferWriteErr) IsFull() bool {
	return e.Full
}

// IsInternalErr returns true when the write failed inside the buffer itself.
func (e BufferWriteErr) IsInternalErr() bool {
	return e.InternalErr
}

// NonRetryableBufferWriteErr indicates a write rejected under the
// DiscardLatest strategy; retrying will not help.
type NonRetryableBufferWriteErr struct {
	Name    string
	Message string
}

func (e NonRetryableBufferWriteErr) Error() string {
	return fmt.Sprintf("%s: %s, not retryable", e.Name, e.Message)
}

// MessageAckErr is returned when an offset cannot be acknowledged.
type MessageAckErr struct {
	Name    string
	Offset  Offset
	Message string
}

func (e MessageAckErr) Error() string {
	return fmt.Sprintf("%s: ack failed, %s", e.Name, e.Message)
}

// BufferReadErr is returned when a read from the buffer fails.
type BufferReadErr struct {
	Name        string
	Empty       bool
	InternalErr bool
	Message     string
}

func (e BufferReadErr) Error() string {
	return fmt.Sprintf("%s: %s empty=%t internal=%t", e.Name, e.Message, e.Empty, e.InternalErr)
}

// IsEmpty returns true when the read came up against an empty buffer.
func (e BufferReadErr) IsEmpty() bool {
	return e.Empty
}

// IsInternalErr returns true when the read failed inside the buffer itself.
func (e BufferReadErr) IsInternalErr() bool {
	return e.InternalErr
}

// MessageReadErr is returned when a stored message cannot be rebuilt from its
// bytes.
type MessageReadErr struct {
	Name    string
	Header  []byte
	Body    []byte
	Message string
}

func (e MessageReadErr) Error() string {
	return fmt.Sprintf("%s: %s, header: %q body: %q", e.Name, e.Message, e.Header, e.Body)
}
