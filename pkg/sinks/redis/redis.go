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

package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
	metricspkg "github.com/ApollusEHS-OSS/mantis/pkg/metrics"
	redisclient "github.com/ApollusEHS-OSS/mantis/pkg/shared/clients/redis"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
	sinkforward "github.com/ApollusEHS-OSS/mantis/pkg/sinks/forward"
)

// RedisSink appends every window summary to a redis stream with XADD. The
// connection is configured through the MANTIS_REDIS_* environment variables,
// the job file only names the stream.
type RedisSink struct {
	name         string
	pipelineName string
	stream       string
	maxLen       *int64
	client       *redisclient.RedisClient
	isdf         *sinkforward.DataForward
	logger       *zap.SugaredLogger
}

type Option func(sink *RedisSink) error

func WithLogger(log *zap.SugaredLogger) Option {
	return func(rs *RedisSink) error {
		rs.logger = log
		return nil
	}
}

// WithRedisClient overrides the env configured client.
func WithRedisClient(c *redisclient.RedisClient) Option {
	return func(rs *RedisSink) error {
		rs.client = c
		return nil
	}
}

// NewRedisSink returns RedisSink type.
func NewRedisSink(j *job.Job, fromBuffer isb.BufferReader, opts ...Option) (*RedisSink, error) {
	redisSpec := j.Sink.Redis
	rs := new(RedisSink)
	rs.name = j.GetName()
	rs.pipelineName = j.GetPipelineName()
	rs.stream = redisSpec.Stream
	rs.maxLen = redisSpec.MaxLen

	for _, o := range opts {
		if err := o(rs); err != nil {
			return nil, err
		}
	}
	if rs.logger == nil {
		rs.logger = logging.NewLogger()
	}
	if rs.client == nil {
		rs.client = redisclient.NewEnvRedisClient()
	}
	rs.logger = rs.logger.With("sinkType", "redis").With("stream", rs.stream)

	isdf, err := sinkforward.NewDataForward(rs.pipelineName, rs.name, fromBuffer, rs,
		sinkforward.WithReadBatchSize(j.GetReadBatchSize()), sinkforward.WithLogger(rs.logger))
	if err != nil {
		return nil, err
	}
	rs.isdf = isdf

	return rs, nil
}

// GetName returns the sink name.
func (rs *RedisSink) GetName() string {
	return rs.name
}

// Write XADDs one entry per summary and reports the failed ones back, the
// forwarder retries just those.
func (rs *RedisSink) Write(_ context.Context, messages []isb.Message) ([]isb.Offset, []error) {
	errs := make([]error, len(messages))
	for idx, msg := range messages {
		args := &redis.XAddArgs{
			Stream: rs.stream,
			Values: map[string]interface{}{"window": msg.ID, "summary": msg.Payload},
		}
		if x := rs.maxLen; x != nil {
			args.MaxLen = *x
			args.Approx = true
		}
		if err := rs.client.Client.XAdd(redisclient.RedisContext, args).Err(); err != nil {
			redisSinkWriteErrors.With(map[string]string{metricspkg.LabelVertex: rs.name, metricspkg.LabelPipeline: rs.pipelineName}).Inc()
			rs.logger.Errorw("XAdd failed", zap.Error(err))
			errs[idx] = err
			continue
		}
		redisSinkWriteCount.With(map[string]string{metricspkg.LabelVertex: rs.name, metricspkg.LabelPipeline: rs.pipelineName}).Inc()
	}
	return nil, errs
}

func (rs *RedisSink) Close() error {
	return rs.client.Client.Close()
}

// CloseWrite is a no-op, a stream has no end-of-stream marker to set.
func (rs *RedisSink) CloseWrite() error {
	return nil
}

// Start starts the sink.
func (rs *RedisSink) Start() <-chan struct{} {
	return rs.isdf.Start()
}

// Stop drains what was read and stops.
func (rs *RedisSink) Stop() {
	rs.isdf.Stop()
}

// ForceStop abandons the in-flight summaries and stops.
func (rs *RedisSink) ForceStop() {
	rs.isdf.ForceStop()
}
