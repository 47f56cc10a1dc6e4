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

package metrics

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
)

func testMetricsJob(port int32) *job.Job {
	return &job.Job{
		Name:         "test-vertex",
		PipelineName: "test-pipeline",
		MetricsPort:  ptr.To(port),
	}
}

func waitForServer(t *testing.T, port int32) {
	t.Helper()
	client := &http.Client{Timeout: time.Second}
	defer client.CloseIdleConnections()
	for i := 0; i < 100; i++ {
		resp, err := client.Get(fmt.Sprintf("http://localhost:%d/livez", port))
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusNoContent {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("metrics server did not come up")
}

func Test_StartMetricsServer(t *testing.T) {
	const port = int32(18977)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ms := NewMetricsServer(testMetricsJob(port))
	s, err := ms.Start(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, s)
	waitForServer(t, port)
	e := httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  fmt.Sprintf("http://localhost:%d", port),
		Reporter: httpexpect.NewRequireReporter(t),
		Client:   &http.Client{Timeout: time.Second},
	})
	e.GET("/livez").Expect().Status(204)
	e.GET("/readyz").Expect().Status(204)
	e.GET("/metrics").Expect().Status(200).Body().Contains("go_info")
	err = s(context.TODO())
	assert.NoError(t, err)
}

func Test_MetricsServer_ReadyzFailure(t *testing.T) {
	const port = int32(18978)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ms := NewMetricsServer(testMetricsJob(port), WithHealthCheckExecutor(func() error {
		return fmt.Errorf("sink unreachable")
	}))
	s, err := ms.Start(ctx)
	assert.NoError(t, err)
	waitForServer(t, port)
	e := httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  fmt.Sprintf("http://localhost:%d", port),
		Reporter: httpexpect.NewRequireReporter(t),
		Client:   &http.Client{Timeout: time.Second},
	})
	e.GET("/readyz").Expect().Status(500).Body().Contains("sink unreachable")
	err = s(context.TODO())
	assert.NoError(t, err)
}

func Test_MetricsServer_WithLagReaders(t *testing.T) {
	mockReader := &mockLagReader{name: "test-reader"}
	ms := NewMetricsServer(testMetricsJob(0), WithLagReaders(map[string]isb.LagReader{
		"test-reader": mockReader,
	}))
	assert.Equal(t, 1, len(ms.lagReaders))
	assert.Equal(t, mockReader, ms.lagReaders["test-reader"])
	assert.NotNil(t, ms.pendingInfo["test-reader"])
}

func Test_MetricsServer_WithRefreshInterval(t *testing.T) {
	interval := 10 * time.Second
	ms := NewMetricsServer(testMetricsJob(0), WithRefreshInterval(interval))
	assert.Equal(t, interval, ms.refreshInterval)
}

func Test_MetricsServer_WithLookbackSeconds(t *testing.T) {
	seconds := int64(300)
	ms := NewMetricsServer(testMetricsJob(0), WithLookbackSeconds(seconds))
	assert.Equal(t, seconds, ms.lookbackSeconds)
}

func Test_MetricsServer_WithHealthCheckExecutor(t *testing.T) {
	executed := false
	executor := func() error {
		executed = true
		return nil
	}
	ms := NewMetricsServer(testMetricsJob(0), WithHealthCheckExecutor(executor))
	assert.Equal(t, 1, len(ms.healthCheckExecutors))
	err := ms.healthCheckExecutors[0]()
	assert.NoError(t, err)
	assert.True(t, executed)
}

func Test_MetricsServer_NewMetricsOptions(t *testing.T) {
	healthChecker := &mockHealthChecker{}
	reader := &mockLagReader{name: "test-reader"}
	opts := NewMetricsOptions(context.Background(), []HealthChecker{healthChecker}, []isb.LagReader{reader})
	assert.Equal(t, 2, len(opts))
	m := NewMetricsServer(testMetricsJob(0), opts...)
	assert.Equal(t, DefaultLookbackSeconds, m.lookbackSeconds)
	assert.Equal(t, 1, len(m.lagReaders))
	assert.Equal(t, reader, m.lagReaders["test-reader"])
	assert.Equal(t, 1, len(m.healthCheckExecutors))
}

func Test_MetricsServer_NewMetricsOptionsHealthCheckDisabled(t *testing.T) {
	t.Setenv("MANTIS_HEALTH_CHECK_DISABLED", "true")
	opts := NewMetricsOptions(context.Background(), []HealthChecker{&mockHealthChecker{}}, nil)
	m := NewMetricsServer(testMetricsJob(0), opts...)
	assert.Equal(t, 0, len(m.healthCheckExecutors))
}

type mockLagReader struct {
	name string
}

func (m *mockLagReader) GetName() string {
	return m.name
}

func (m *mockLagReader) Pending(ctx context.Context) (int64, error) {
	return 200, nil
}

type mockHealthChecker struct{}

func (m *mockHealthChecker) IsHealthy(ctx context.Context) error {
	return nil
}

func Test_MetricsServer_BuildAndExposePendingMetrics(t *testing.T) {
	const port = int32(18979)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mockReader := &mockLagReader{name: "test-reader"}
	ms := NewMetricsServer(testMetricsJob(port), WithLagReaders(map[string]isb.LagReader{"test-reader": mockReader}), WithRefreshInterval(10*time.Millisecond))
	ms.lagCheckingInterval = 10 * time.Millisecond

	shutdown, err := ms.Start(ctx)
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()
	waitForServer(t, port)

	// give the sampler and the gauge refresher a few ticks
	time.Sleep(100 * time.Millisecond)

	assert.NotEmpty(t, ms.pendingInfo["test-reader"].Items())
	g, err := pending.GetMetricWithLabelValues("test-pipeline", "test-vertex", "1m", "test-reader")
	assert.NoError(t, err)
	m := &dto.Metric{}
	err = g.Write(m)
	assert.NoError(t, err)
	assert.Equal(t, float64(200), *m.GetGauge().Value)

	// scrape the endpoint the way an operator would
	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/metrics", port))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	textParser := expfmt.TextParser{}
	families, err := textParser.TextToMetricFamilies(resp.Body)
	require.NoError(t, err)
	family, ok := families["vertex_pending_messages"]
	require.True(t, ok)
	found := false
	for _, metric := range family.GetMetric() {
		labels := map[string]string{}
		for _, l := range metric.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		if labels[LabelPeriod] == "1m" && labels[LabelBuffer] == "test-reader" {
			assert.Equal(t, float64(200), metric.GetGauge().GetValue())
			found = true
		}
	}
	assert.True(t, found, "vertex_pending_messages for the 1m period not scraped")
}

func TestMetricsServer_CalculatePending(t *testing.T) {
	mockReader := &mockLagReader{name: "test-reader"}
	ms := NewMetricsServer(testMetricsJob(0), WithLagReaders(map[string]isb.LagReader{"test-reader": mockReader}))

	// nothing sampled yet
	pending := ms.calculatePending(60, "test-reader")
	assert.Equal(t, isb.PendingNotAvailable, pending)

	// samples at 120s, 30s and 40s ago
	now := time.Now().Unix()
	ms.pendingInfo["test-reader"].Append(timestampedPending{pending: 30, timestamp: now - 120})
	ms.pendingInfo["test-reader"].Append(timestampedPending{pending: 10, timestamp: now - 30})
	ms.pendingInfo["test-reader"].Append(timestampedPending{pending: 20, timestamp: now - 40})

	pending = ms.calculatePending(200, "test-reader")
	assert.Equal(t, int64(20), pending)

	pending = ms.calculatePending(60, "test-reader")
	assert.Equal(t, int64(15), pending)

	// a window too short to cover any sample
	pending = ms.calculatePending(10, "test-reader")
	assert.Equal(t, isb.PendingNotAvailable, pending)
}
