package redis

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestNewEnvRedisClient_Standalone(t *testing.T) {
	t.Setenv(EnvRedisURL, "localhost:6379")
	client := NewEnvRedisClient()
	assert.NotNil(t, client.Client)
	// a single address makes a plain client
	_, ok := client.Client.(*redis.Client)
	assert.True(t, ok)
}

func TestNewEnvRedisClient_Cluster(t *testing.T) {
	t.Setenv(EnvRedisURL, "localhost:6379,localhost:6380")
	client := NewEnvRedisClient()
	assert.NotNil(t, client.Client)
	_, ok := client.Client.(*redis.ClusterClient)
	assert.True(t, ok)
}

func TestNewEnvRedisClient_Sentinel(t *testing.T) {
	t.Setenv(EnvRedisSentinelMaster, "mymaster")
	t.Setenv(EnvRedisSentinelURL, "localhost:26379")
	t.Setenv(EnvRedisSentinelPassword, "sentinel-pass")
	client := NewEnvRedisClient()
	assert.NotNil(t, client.Client)
}
