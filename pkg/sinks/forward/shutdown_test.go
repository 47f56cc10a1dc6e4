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
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb/stores/simplebuffer"
)

func TestShutDown(t *testing.T) {
	tests := []struct {
		name      string
		batchSize int64
	}{
		{
			name:      "batch_forward",
			batchSize: 1,
		},
		{
			name:      "batch_forward",
			batchSize: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name+"_stop", func(t *testing.T) {
			fromStep := simplebuffer.NewInMemoryBuffer("summaries", 2*tt.batchSize, simplebuffer.WithReadTimeOut(10*time.Millisecond))
			toSink := simplebuffer.NewInMemoryBuffer("sink", 2*tt.batchSize, simplebuffer.WithReadTimeOut(10*time.Millisecond))

			f, err := NewDataForward(testPipelineName, testVertexName, fromStep, toSink, WithReadBatchSize(tt.batchSize))
			assert.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
			defer cancel()

			writeMessages := make([]isb.Message, 0, tt.batchSize)
			for i := int64(0); i < tt.batchSize; i++ {
				writeMessages = append(writeMessages, summaryMessage(t, testStartTime.Add(time.Duration(i)*10*time.Second), map[string]int64{"the": 1}))
			}
			_, errs := fromStep.Write(ctx, writeMessages)
			assert.Equal(t, make([]error, len(writeMessages)), errs)

			stopped := f.Start()
			f.Stop()
			ok, err := f.IsShuttingDown()
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Contains(t, f.String(), "stopped:true")
			<-stopped
		})
		t.Run(tt.name+"_forceStop", func(t *testing.T) {
			fromStep := simplebuffer.NewInMemoryBuffer("summaries", 8*tt.batchSize, simplebuffer.WithReadTimeOut(10*time.Millisecond))
			// a sink buffer the size of one batch; the second chunk wedges the
			// forwarder inside the write retry loop
			toSink := simplebuffer.NewInMemoryBuffer("sink", tt.batchSize, simplebuffer.WithReadTimeOut(10*time.Millisecond))

			f, err := NewDataForward(testPipelineName, testVertexName, fromStep, toSink,
				WithReadBatchSize(tt.batchSize),
				WithRetryBackoff(wait.Backoff{Steps: math.MaxInt, Duration: time.Millisecond, Factor: 1, Jitter: 0.1}))
			assert.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
			defer cancel()

			writeMessages := make([]isb.Message, 0, 4*tt.batchSize)
			for i := int64(0); i < 4*tt.batchSize; i++ {
				writeMessages = append(writeMessages, summaryMessage(t, testStartTime.Add(time.Duration(i)*10*time.Second), map[string]int64{"the": 1}))
			}
			_, errs := fromStep.Write(ctx, writeMessages)
			assert.Equal(t, make([]error, len(writeMessages)), errs)

			stopped := f.Start()
			f.Stop()
			ok, err := f.IsShuttingDown()
			assert.NoError(t, err)
			assert.True(t, ok)
			time.Sleep(1 * time.Millisecond)
			f.ForceStop()
			ok, err = f.IsShuttingDown()
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Contains(t, f.String(), "forced:true")
			<-stopped
		})
	}
}
