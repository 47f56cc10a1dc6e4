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
	"time"
)

// MessageInfo carries the temporal information of the payload.
type MessageInfo struct {
	// EventTime is the time the payload is attributed to; for tokens this is
	// the arrival time of the record they were split from, which decides the
	// window they are counted in.
	EventTime time.Time
	// IsLate indicates the message maps to a window that has already been
	// closed. Assignment happens at read time in the reduce loop.
	IsLate bool
}

// Header identifies the message and places it in time.
type Header struct {
	MessageInfo
	// ID is unique within the stream; usually populated from the source offset.
	ID string
	// Key carries the token for token messages; summaries leave it empty and
	// carry everything in the payload.
	Key string
}

// Body carries the payload bytes.
type Body struct {
	Payload []byte
}

// Message is what the buffers move between the stages.
type Message struct {
	Header
	Body
}

// ReadMessage pairs a message with the offset it was read at.
type ReadMessage struct {
	Message
	ReadOffset Offset
}

// ToReadMessage attaches a read offset to the message.
func (m *Message) ToReadMessage(ot Offset) *ReadMessage {
	return &ReadMessage{Message: *m, ReadOffset: ot}
}
