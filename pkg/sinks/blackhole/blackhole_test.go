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

package blackhole

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb/stores/simplebuffer"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb/testutils"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
)

var (
	testStartTime = time.Unix(1636470000, 0).UTC()
)

func TestBlackhole_Start(t *testing.T) {
	fromStep := simplebuffer.NewInMemoryBuffer("from", 25)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	var counts []map[string]int64
	for i := 0; i < 20; i++ {
		counts = append(counts, map[string]int64{"the": 2, "cat": 1})
	}
	writeMessages := testutils.BuildTestSummaryMessages(counts, testStartTime, 10*time.Second)

	s, err := NewBlackhole(&job.Job{Name: "sinks.blackhole", PipelineName: "testPipeline"}, fromStep)
	assert.NoError(t, err)

	stopped := s.Start()
	// write some data
	_, errs := fromStep.Write(ctx, writeMessages[0:5])
	assert.Equal(t, make([]error, 5), errs)

	// write some data
	_, errs = fromStep.Write(ctx, writeMessages[5:20])
	assert.Equal(t, make([]error, 15), errs)

	s.Stop()

	<-stopped
}

// TestBlackhole_EndOfStream verifies a closed and drained summary buffer
// stops the sink without an explicit Stop.
func TestBlackhole_EndOfStream(t *testing.T) {
	fromStep := simplebuffer.NewInMemoryBuffer("from", 25, simplebuffer.WithReadTimeOut(10*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	writeMessages := testutils.BuildTestSummaryMessages([]map[string]int64{
		{"the": 2, "cat": 1, "sat": 1},
		{"dog": 1},
	}, testStartTime, 10*time.Second)

	s, err := NewBlackhole(&job.Job{Name: "sinks.blackhole", PipelineName: "testPipeline"}, fromStep)
	assert.NoError(t, err)

	_, errs := fromStep.Write(ctx, writeMessages)
	assert.Equal(t, make([]error, 2), errs)
	assert.NoError(t, fromStep.CloseWrite())

	stopped := s.Start()

	select {
	case <-stopped:
	case <-ctx.Done():
		t.Fatal("timed out waiting for the sink to drain and stop")
	}
}
