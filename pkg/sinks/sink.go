package sinks

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
	blackholesink "github.com/ApollusEHS-OSS/mantis/pkg/sinks/blackhole"
	kafkasink "github.com/ApollusEHS-OSS/mantis/pkg/sinks/kafka"
	logsink "github.com/ApollusEHS-OSS/mantis/pkg/sinks/logger"
	redissink "github.com/ApollusEHS-OSS/mantis/pkg/sinks/redis"
	ssesink "github.com/ApollusEHS-OSS/mantis/pkg/sinks/sse"
)

// New builds the sink the job asks for, reading the summaries from
// fromBuffer; it takes in the logger from the parent.
func New(j *job.Job, fromBuffer isb.BufferReader, logger *zap.SugaredLogger) (Sinker, error) {
	sink := j.Sink
	if sink == nil {
		return nil, fmt.Errorf("invalid sink spec")
	}
	if x := sink.Log; x != nil {
		return logsink.NewToLog(j, fromBuffer, logsink.WithLogger(logger))
	} else if x := sink.Blackhole; x != nil {
		return blackholesink.NewBlackhole(j, fromBuffer, blackholesink.WithLogger(logger))
	} else if x := sink.Kafka; x != nil {
		return kafkasink.NewToKafka(j, fromBuffer, kafkasink.WithLogger(logger))
	} else if x := sink.Redis; x != nil {
		return redissink.NewRedisSink(j, fromBuffer, redissink.WithLogger(logger))
	} else if x := sink.SSE; x != nil {
		return ssesink.NewToSSE(j, fromBuffer, ssesink.WithLogger(logger))
	}
	return nil, fmt.Errorf("invalid sink spec")
}
