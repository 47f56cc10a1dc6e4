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

package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"k8s.io/utils/ptr"

	"github.com/ApollusEHS-OSS/mantis/pkg/forward/applier"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb/stores/simplebuffer"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testJob(gen *job.GeneratorSource) *job.Job {
	return &job.Job{
		Name:         "testVertex",
		PipelineName: "testPipeline",
		Source:       &job.Source{Generator: gen},
		Limits:       &job.Limits{ReadTimeout: ptr.To(10 * time.Millisecond)},
	}
}

func TestRead(t *testing.T) {
	dest := simplebuffer.NewInMemoryBuffer("writer", 20, simplebuffer.WithReadTimeOut(10*time.Second))
	j := testJob(&job.GeneratorSource{RPU: ptr.To[int64](5), Interval: ptr.To(time.Millisecond)})

	mgen, err := NewMemGen(j, dest, applier.Identity)
	require.NoError(t, err)
	stop := mgen.Start()

	msgs, err := dest.Read(context.Background(), 5)
	assert.NoError(t, err)
	assert.Equal(t, 5, len(msgs))

	mgen.Stop()
	<-stop
}

// TestStop makes sure a generator stuck on a full destination can still be
// shut down and that everything written before the stop is readable.
func TestStop(t *testing.T) {
	ctx := context.Background()
	dest := simplebuffer.NewInMemoryBuffer("writer", 10, simplebuffer.WithReadTimeOut(10*time.Millisecond))
	j := testJob(&job.GeneratorSource{RPU: ptr.To[int64](50), Interval: ptr.To(time.Millisecond)})

	mgen, err := NewMemGen(j, dest, applier.Identity)
	require.NoError(t, err)
	stop := mgen.Start()

	deadline := time.Now().Add(5 * time.Second)
	for !dest.IsFull() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the destination to fill up")
		}
		time.Sleep(time.Millisecond)
	}

	mgen.Stop()

	// reader should still see all the messages forwarded before the stop
	msgsread := 0
	for {
		select {
		case <-stop:
			assert.Greater(t, msgsread, 0)
			return
		default:
			msgs, _ := dest.Read(ctx, 1)
			if len(msgs) > 0 {
				_ = dest.Ack(ctx, []isb.Offset{msgs[0].ReadOffset})
				msgsread++
			}
		}
	}
}

// TestCount verifies that a capped generator closes the stream after the
// configured number of records and the end-of-stream reaches the
// destination buffer.
func TestCount(t *testing.T) {
	dest := simplebuffer.NewInMemoryBuffer("writer", 64, simplebuffer.WithReadTimeOut(10*time.Millisecond))
	j := testJob(&job.GeneratorSource{RPU: ptr.To[int64](10), Interval: ptr.To(time.Millisecond), Count: ptr.To[int64](25)})

	mgen, err := NewMemGen(j, dest, applier.Identity)
	require.NoError(t, err)
	stopped := mgen.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	total := 0
	for {
		select {
		case <-ctx.Done():
			t.Fatal("timed out draining the destination")
		default:
		}
		msgs, err := dest.Read(ctx, 10)
		if len(msgs) > 0 {
			offsets := make([]isb.Offset, len(msgs))
			for i, m := range msgs {
				offsets[i] = m.ReadOffset
			}
			_ = dest.Ack(ctx, offsets)
			total += len(msgs)
		}
		if err != nil {
			require.True(t, errors.Is(err, isb.ErrClosed))
			break
		}
	}
	assert.Equal(t, 25, total)

	<-stopped
	assert.True(t, dest.IsClosed())
}

// TestLanguageMix verifies records cycle through the configured languages.
func TestLanguageMix(t *testing.T) {
	dest := simplebuffer.NewInMemoryBuffer("writer", 20, simplebuffer.WithReadTimeOut(10*time.Second))
	j := testJob(&job.GeneratorSource{
		RPU:       ptr.To[int64](4),
		Interval:  ptr.To(time.Millisecond),
		Count:     ptr.To[int64](4),
		Languages: []string{"en", "fr"},
	})

	mgen, err := NewMemGen(j, dest, applier.Identity)
	require.NoError(t, err)
	stopped := mgen.Start()

	msgs, err := dest.Read(context.Background(), 4)
	assert.NoError(t, err)
	require.Equal(t, 4, len(msgs))

	var langs []string
	for _, m := range msgs {
		var r record
		assert.NoError(t, json.Unmarshal(m.Payload, &r))
		assert.NotEmpty(t, r.Text)
		assert.Equal(t, r.Lang, m.Key)
		langs = append(langs, r.Lang)
	}
	assert.Equal(t, []string{"en", "fr", "en", "fr"}, langs)

	<-stopped
}
