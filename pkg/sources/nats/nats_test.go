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

package nats

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natstestserver "github.com/nats-io/nats-server/v2/test"
	natslib "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"github.com/ApollusEHS-OSS/mantis/pkg/forward/applier"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb/stores/simplebuffer"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
)

func runNatsServer(t *testing.T) *server.Server {
	t.Helper()
	opts := natstestserver.DefaultTestOptions
	opts.Port = -1 // random port
	return natstestserver.RunServer(&opts)
}

func TestWithBufferSize(t *testing.T) {
	n := &natsSource{
		bufferSize: 10,
	}
	opt := WithBufferSize(100)
	assert.NoError(t, opt(n))
	assert.Equal(t, 100, n.bufferSize)
}

func TestWithReadTimeout(t *testing.T) {
	n := &natsSource{
		readTimeout: 4 * time.Second,
	}
	opt := WithReadTimeout(5 * time.Second)
	assert.NoError(t, opt(n))
	assert.Equal(t, 5*time.Second, n.readTimeout)
}

func TestNatsSource(t *testing.T) {
	s := runNatsServer(t)
	defer func() {
		s.Shutdown()
		s.WaitForShutdown()
	}()

	j := &job.Job{
		Name:         "test-v",
		PipelineName: "test-pl",
		Source: &job.Source{Nats: &job.NatsSource{
			URL:     s.ClientURL(),
			Subject: "records",
			Queue:   "workers",
		}},
		Limits: &job.Limits{ReadTimeout: ptr.To(10 * time.Millisecond)},
	}
	dest := simplebuffer.NewInMemoryBuffer("test", 100, simplebuffer.WithReadTimeOut(10*time.Millisecond))
	ns, err := New(j, dest, applier.Identity)
	require.NoError(t, err)
	assert.Equal(t, "test-v", ns.GetName())
	stopped := ns.Start()

	nc, err := natslib.Connect(s.ClientURL())
	require.NoError(t, err)
	defer nc.Close()
	require.NoError(t, nc.Publish("records", []byte(`{"lang":"en","text":"hello"}`)))
	require.NoError(t, nc.Publish("records", []byte(`{"lang":"en","text":"world"}`)))
	require.NoError(t, nc.Flush())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got []string
	for len(got) < 2 {
		select {
		case <-ctx.Done():
			t.Fatal("timed out waiting for the records")
		default:
		}
		msgs, rerr := dest.Read(ctx, 2)
		assert.NoError(t, rerr)
		for _, m := range msgs {
			_ = dest.Ack(ctx, []isb.Offset{m.ReadOffset})
			got = append(got, string(m.Payload))
		}
	}
	assert.Equal(t, []string{`{"lang":"en","text":"hello"}`, `{"lang":"en","text":"world"}`}, got)

	ns.Stop()
	<-stopped
	assert.True(t, dest.IsClosed())
}
