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

package forward

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ApollusEHS-OSS/mantis/pkg/filter"
	"github.com/ApollusEHS-OSS/mantis/pkg/forward/applier"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb/stores/simplebuffer"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb/testutils"
	"github.com/ApollusEHS-OSS/mantis/pkg/transform"
)

const (
	testPipelineName = "testPipeline"
	testVertexName   = "testVertex"
)

var testStartTime = time.Unix(1636470000, 0).UTC()

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func recordMessage(id, lang, text string, eventTime time.Time) isb.Message {
	payload, _ := json.Marshal(testutils.RecordForTest{Lang: lang, Text: text})
	return isb.Message{
		Header: isb.Header{
			MessageInfo: isb.MessageInfo{EventTime: eventTime},
			ID:          id,
		},
		Body: isb.Body{Payload: payload},
	}
}

// drainTokens reads the token buffer until it reports end-of-stream, acking
// every batch on the way.
func drainTokens(ctx context.Context, t *testing.T, buf *simplebuffer.InMemoryBuffer) []*isb.ReadMessage {
	t.Helper()
	var out []*isb.ReadMessage
	for {
		select {
		case <-ctx.Done():
			t.Fatal("timed out draining the token buffer")
		default:
		}
		msgs, err := buf.Read(ctx, 10)
		if len(msgs) > 0 {
			offsets := make([]isb.Offset, len(msgs))
			for i, m := range msgs {
				offsets[i] = m.ReadOffset
			}
			for _, ackErr := range buf.Ack(ctx, offsets) {
				assert.NoError(t, ackErr)
			}
			out = append(out, msgs...)
		}
		if err != nil {
			require.True(t, errors.Is(err, isb.ErrClosed), "expected end-of-stream, got %v", err)
			return out
		}
	}
}

// TestDataForwardEndOfStream writes a few records, closes the source and
// verifies the tokens come out in order and the end-of-stream cascades to
// the token buffer once the source is drained.
func TestDataForwardEndOfStream(t *testing.T) {
	fromStep := simplebuffer.NewInMemoryBuffer("from", 32, simplebuffer.WithReadTimeOut(10*time.Millisecond))
	tokens := simplebuffer.NewInMemoryBuffer("tokens", 64, simplebuffer.WithReadTimeOut(10*time.Millisecond))

	transformer, err := transform.New(testPipelineName, testVertexName, filter.New("en"))
	assert.NoError(t, err)

	f, err := NewDataForward(testPipelineName, testVertexName, fromStep, tokens, transformer, WithReadBatchSize(4))
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	writeMessages := []isb.Message{
		recordMessage("0", "en", "The Cat sat", testStartTime.Add(time.Second)),
		recordMessage("1", "en", "the dog", testStartTime.Add(3*time.Second)),
		recordMessage("2", "fr", "le chat", testStartTime.Add(4*time.Second)),
	}
	_, errs := fromStep.Write(ctx, writeMessages)
	assert.Equal(t, make([]error, len(writeMessages)), errs)
	assert.NoError(t, fromStep.CloseWrite())

	stopped := f.Start()

	readMessages := drainTokens(ctx, t, tokens)
	var keys []string
	for _, m := range readMessages {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"the", "cat", "sat", "the", "dog"}, keys)

	// tokens carry the arrival time of the record they were split from
	for _, m := range readMessages[:3] {
		assert.Equal(t, testStartTime.Add(time.Second), m.EventTime)
	}
	for _, m := range readMessages[3:] {
		assert.Equal(t, testStartTime.Add(3*time.Second), m.EventTime)
	}

	<-stopped
	assert.True(t, tokens.IsClosed())
}

// TestDataForwardStop stops the forwarder while the source is still open and
// verifies the shutdown releases everything.
func TestDataForwardStop(t *testing.T) {
	fromStep := simplebuffer.NewInMemoryBuffer("from", 32, simplebuffer.WithReadTimeOut(10*time.Millisecond))
	tokens := simplebuffer.NewInMemoryBuffer("tokens", 64, simplebuffer.WithReadTimeOut(10*time.Millisecond))

	transformer, err := transform.New(testPipelineName, testVertexName, filter.New("en"))
	assert.NoError(t, err)

	f, err := NewDataForward(testPipelineName, testVertexName, fromStep, tokens, transformer, WithReadBatchSize(2))
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	writeMessages := []isb.Message{
		recordMessage("0", "en", "stop me", testStartTime),
	}
	_, errs := fromStep.Write(ctx, writeMessages)
	assert.Equal(t, make([]error, len(writeMessages)), errs)

	stopped := f.Start()

	// the two tokens must be forwarded before we ask for the shutdown
	var got []*isb.ReadMessage
	for len(got) < 2 {
		select {
		case <-ctx.Done():
			t.Fatal("timed out waiting for the tokens")
		default:
		}
		msgs, err := tokens.Read(ctx, 2)
		assert.NoError(t, err)
		got = append(got, msgs...)
	}

	f.Stop()
	<-stopped
	assert.True(t, tokens.IsClosed())
}

// TestDataForwardTransformError makes sure a forwarder stuck on a failing
// transformer can still be shut down and forwards nothing.
func TestDataForwardTransformError(t *testing.T) {
	fromStep := simplebuffer.NewInMemoryBuffer("from", 32, simplebuffer.WithReadTimeOut(10*time.Millisecond))
	tokens := simplebuffer.NewInMemoryBuffer("tokens", 64, simplebuffer.WithReadTimeOut(10*time.Millisecond))

	errApplier := applier.ApplyTransformFunc(func(_ context.Context, _ *isb.ReadMessage) ([]*isb.Message, error) {
		return nil, fmt.Errorf("transform error")
	})

	f, err := NewDataForward(testPipelineName, testVertexName, fromStep, tokens, errApplier, WithReadBatchSize(2))
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	writeMessages := []isb.Message{
		recordMessage("0", "en", "never forwarded", testStartTime),
	}
	_, errs := fromStep.Write(ctx, writeMessages)
	assert.Equal(t, make([]error, len(writeMessages)), errs)

	stopped := f.Start()
	// give the forwarder a chance to get stuck in the transform retry loop
	time.Sleep(50 * time.Millisecond)
	f.Stop()
	<-stopped

	assert.True(t, tokens.IsClosed())
	msgs, err := tokens.Read(ctx, 10)
	assert.Empty(t, msgs)
	assert.True(t, errors.Is(err, isb.ErrClosed))
}
