package redis

import (
	"context"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Environment variables the redis connection is configured through; the
// job file only names the stream.
const (
	EnvRedisURL              = "MANTIS_REDIS_URL"
	EnvRedisUser             = "MANTIS_REDIS_USER"
	EnvRedisPassword         = "MANTIS_REDIS_PASSWORD"
	EnvRedisSentinelMaster   = "MANTIS_REDIS_SENTINEL_MASTER"
	EnvRedisSentinelURL      = "MANTIS_REDIS_SENTINEL_URL"
	EnvRedisSentinelPassword = "MANTIS_REDIS_SENTINEL_PASSWORD"
)

// RedisContext is used to pass the context specifically for REDIS operations.
// A cancelled context during SIGTERM or Ctrl-C that is propagated down will throw a context cancelled error because redis uses context to obtain connection from the connection pool.
// All redis operations will use the below no-op context.Background() to try to process in-flight messages that we have received prior to the cancellation of the context.
var RedisContext = context.Background()

// RedisClient datatype to hold redis client attributes.
type RedisClient struct {
	Client redis.UniversalClient
}

// NewRedisClient returns a new Redis Client.
func NewRedisClient(options *redis.UniversalOptions) *RedisClient {
	client := new(RedisClient)
	client.Client = redis.NewUniversalClient(options)
	return client
}

// NewEnvRedisClient returns a new Redis Client configured entirely from the
// MANTIS_REDIS_* environment variables. With a sentinel master name set the
// urls are taken as sentinel addresses, otherwise as the redis addresses
// themselves.
func NewEnvRedisClient() *RedisClient {
	opts := &redis.UniversalOptions{
		Username:   os.Getenv(EnvRedisUser),
		Password:   os.Getenv(EnvRedisPassword),
		MasterName: os.Getenv(EnvRedisSentinelMaster),
	}
	if opts.MasterName != "" {
		urls := os.Getenv(EnvRedisSentinelURL)
		if urls != "" {
			opts.Addrs = strings.Split(urls, ",")
		}
		opts.SentinelPassword = os.Getenv(EnvRedisSentinelPassword)
	} else {
		urls := os.Getenv(EnvRedisURL)
		if urls != "" {
			opts.Addrs = strings.Split(urls, ",")
		}
	}
	return NewRedisClient(opts)
}
