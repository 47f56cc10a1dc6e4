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
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
	sharedqueue "github.com/ApollusEHS-OSS/mantis/pkg/shared/queue"
	sharedutil "github.com/ApollusEHS-OSS/mantis/pkg/shared/util"
)

// DefaultLookbackSeconds is the default lookback for the pending average.
const DefaultLookbackSeconds int64 = 120

// timestampedPending is a pending count with the second it was sampled at.
type timestampedPending struct {
	pending   int64
	timestamp int64
}

// metricsServer serves /metrics plus the liveness and readiness probes of
// one worker.
type metricsServer struct {
	pipelineName string
	vertexName   string
	port         int32
	lagReaders   map[string]isb.LagReader
	// lookbackSeconds is the look back seconds for the default pending average
	lookbackSeconds     int64
	lagCheckingInterval time.Duration
	refreshInterval     time.Duration
	// pendingInfo keeps the recent pending samples per buffer
	pendingInfo map[string]*sharedqueue.OverflowQueue[timestampedPending]
	// healthCheckExecutors back the readiness probe
	healthCheckExecutors []func() error
}

type Option func(*metricsServer)

// WithLagReaders registers the buffers whose pending counts get sampled.
func WithLagReaders(r map[string]isb.LagReader) Option {
	return func(m *metricsServer) {
		m.lagReaders = r
	}
}

// WithRefreshInterval sets how often the pending gauges are recomputed.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *metricsServer) {
		m.refreshInterval = d
	}
}

// WithLookbackSeconds sets the window the pending average is taken over.
func WithLookbackSeconds(seconds int64) Option {
	return func(m *metricsServer) {
		m.lookbackSeconds = seconds
	}
}

// WithHealthCheckExecutor appends a check run on every readiness probe.
func WithHealthCheckExecutor(f func() error) Option {
	return func(m *metricsServer) {
		m.healthCheckExecutors = append(m.healthCheckExecutors, f)
	}
}

// NewMetricsOptions assembles the option list for a worker out of its
// health checkers and lag readers.
func NewMetricsOptions(ctx context.Context, healthCheckers []HealthChecker, readers []isb.LagReader) []Option {
	metricsOpts := make([]Option, 0)

	if !sharedutil.LookupEnvBoolOr("MANTIS_HEALTH_CHECK_DISABLED", false) {
		for _, hc := range healthCheckers {
			metricsOpts = append(metricsOpts, WithHealthCheckExecutor(func() error {
				cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
				defer cancel()
				return hc.IsHealthy(cctx)
			}))
		}
	}

	lagReaders := make(map[string]isb.LagReader)
	for _, reader := range readers {
		lagReaders[reader.GetName()] = reader
	}
	if len(lagReaders) > 0 {
		metricsOpts = append(metricsOpts, WithLagReaders(lagReaders))
	}
	return metricsOpts
}

// NewMetricsServer builds a metrics server for a job; Start brings it up.
func NewMetricsServer(j *job.Job, opts ...Option) *metricsServer {
	m := new(metricsServer)
	m.pipelineName = j.GetPipelineName()
	m.vertexName = j.GetName()
	m.port = j.GetMetricsPort()
	m.refreshInterval = 5 * time.Second     // Default refresh interval
	m.lagCheckingInterval = 3 * time.Second // Default lag checking interval
	m.lookbackSeconds = DefaultLookbackSeconds
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.pendingInfo = make(map[string]*sharedqueue.OverflowQueue[timestampedPending])
	for name := range m.lagReaders {
		m.pendingInfo[name] = sharedqueue.New[timestampedPending](1800)
	}
	return m
}

// buildupPendingInfo samples Pending per buffer on the lag checking cadence.
func (ms *metricsServer) buildupPendingInfo(ctx context.Context) {
	if len(ms.lagReaders) == 0 {
		return
	}
	log := logging.FromContext(ctx)
	ticker := time.NewTicker(ms.lagCheckingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, lagReader := range ms.lagReaders {
				if p, err := lagReader.Pending(ctx); err != nil {
					log.Errorw("Failed to get pending messages", zap.String("buffer", name), zap.Error(err))
				} else if p != isb.PendingNotAvailable {
					ms.pendingInfo[name].Append(timestampedPending{pending: p, timestamp: time.Now().Unix()})
				}
			}
		}
	}
}

// exposePendingMetrics refreshes the pending gauges per lookback period.
func (ms *metricsServer) exposePendingMetrics(ctx context.Context) {
	if len(ms.lagReaders) == 0 {
		return
	}
	lookbackSecondsMap := map[string]int64{"default": ms.lookbackSeconds}
	for k, v := range fixedLookbackSeconds {
		lookbackSecondsMap[k] = v
	}
	ticker := time.NewTicker(ms.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name := range ms.lagReaders {
				for n, i := range lookbackSecondsMap {
					if p := ms.calculatePending(i, name); p != isb.PendingNotAvailable {
						pending.WithLabelValues(ms.pipelineName, ms.vertexName, n, name).Set(float64(p))
					}
				}
			}
		}
	}
}

// calculatePending averages the samples taken within the lookback window.
func (ms *metricsServer) calculatePending(lookbackSeconds int64, name string) int64 {
	result := isb.PendingNotAvailable
	items := ms.pendingInfo[name].Items()
	total := int64(0)
	num := int64(0)
	now := time.Now().Unix()
	for _, i := range items {
		if now-i.timestamp < lookbackSeconds {
			total += i.pending
			num++
		}
	}
	if num > 0 {
		result = total / num
	}
	return result
}

// Start brings the server up and returns its shutdown function.
func (ms *metricsServer) Start(ctx context.Context) (func(ctx context.Context) error, error) {
	log := logging.FromContext(ctx)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		for _, ex := range ms.healthCheckExecutors {
			if err := ex(); err != nil {
				log.Errorw("Failed to execute health check", zap.Error(err))
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	pprofEnabled := sharedutil.LookupEnvBoolOr("MANTIS_DEBUG", false) || sharedutil.LookupEnvBoolOr("MANTIS_PPROF", false)
	if pprofEnabled {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		log.Info("Leaving the pprof endpoints off")
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", ms.port),
		Handler: mux,
	}

	if len(ms.lagReaders) > 0 {
		go ms.buildupPendingInfo(ctx)
		go ms.exposePendingMetrics(ctx)
	}

	go func() {
		log.Info("Starting metrics server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("Failed to listen-and-serve on the metrics server", zap.Error(err))
		}
		log.Info("The metrics server exited")
	}()
	return httpServer.Shutdown, nil
}
