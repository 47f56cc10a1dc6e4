package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb/stores/simplebuffer"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb/testutils"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
	redisclient "github.com/ApollusEHS-OSS/mantis/pkg/shared/clients/redis"
)

var testStartTime = time.Unix(1636470000, 0).UTC()

// unreachableClient never connects; the dial fails immediately.
func unreachableClient() *redisclient.RedisClient {
	return redisclient.NewRedisClient(&goredis.UniversalOptions{Addrs: []string{"localhost:0"}})
}

func testRedisJob() *job.Job {
	maxLen := int64(1000)
	return &job.Job{
		Name:         "sinks.redis",
		PipelineName: "testPipeline",
		Sink:         &job.Sink{Redis: &job.RedisSink{Stream: "summaries", MaxLen: &maxLen}},
	}
}

func TestNewRedisSink(t *testing.T) {
	fromStep := simplebuffer.NewInMemoryBuffer("from", 25)
	s, err := NewRedisSink(testRedisJob(), fromStep, WithRedisClient(unreachableClient()))
	assert.NoError(t, err)
	assert.Equal(t, "sinks.redis", s.GetName())
	assert.Equal(t, "summaries", s.stream)
	assert.NotNil(t, s.maxLen)
}

// every failed XADD is reported back on its own index
func TestRedisSink_WriteFailure(t *testing.T) {
	fromStep := simplebuffer.NewInMemoryBuffer("from", 25)
	s, err := NewRedisSink(testRedisJob(), fromStep, WithRedisClient(unreachableClient()))
	assert.NoError(t, err)

	msgs := testutils.BuildTestSummaryMessages([]map[string]int64{
		{"the": 2, "cat": 1, "sat": 1},
		{"dog": 1},
	}, testStartTime, 10*time.Second)

	_, errs := s.Write(context.Background(), msgs)
	assert.Len(t, errs, 2)
	for _, err := range errs {
		assert.NotNil(t, err)
	}
}

func TestRedisSink_StartStop(t *testing.T) {
	fromStep := simplebuffer.NewInMemoryBuffer("from", 25, simplebuffer.WithReadTimeOut(10*time.Millisecond))
	s, err := NewRedisSink(testRedisJob(), fromStep, WithRedisClient(unreachableClient()))
	assert.NoError(t, err)

	stopped := s.Start()
	s.Stop()
	<-stopped
}
