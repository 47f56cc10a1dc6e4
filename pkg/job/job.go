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

// Package job holds the configuration of a counting worker: where the records
// come from, how they are filtered and windowed, and where the per-window
// summaries go.
package job

import (
	"fmt"
	"time"
)

const (
	DefaultName             = "worker"
	DefaultPipelineName     = "pipeline"
	DefaultHopDuration      = 10 * time.Second
	DefaultTargetLanguage   = "en"
	DefaultReadBatchSize    = int64(64)
	DefaultBufferSize       = int64(1024)
	DefaultReadTimeout      = time.Second
	DefaultMetricsPort      = int32(2469)
	DefaultHTTPPort         = int32(8080)
	DefaultSSEPort          = int32(8081)
	DefaultGeneratorRPU     = int64(5)
	DefaultGeneratorTick    = time.Second
	DefaultKafkaConcurrency = uint32(10)
)

// Job is the full configuration of one worker instance.
type Job struct {
	// Name of the worker, used as the vertex label on logs and metrics.
	Name string `json:"name,omitempty" mapstructure:"name"`
	// PipelineName groups workers belonging to the same logical pipeline.
	PipelineName string `json:"pipelineName,omitempty" mapstructure:"pipeline_name"`
	// HopDuration is the window hop; every window spans
	// [k*hop, (k+1)*hop) for an integral k. Defaults to 10s.
	HopDuration *time.Duration `json:"hopDuration,omitempty" mapstructure:"hop_duration"`
	// TargetLanguage admits only records whose language tag equals it,
	// compared case insensitively. Defaults to "en".
	TargetLanguage *string `json:"targetLanguage,omitempty" mapstructure:"target_language"`
	// FilterExpression is an optional expression-language predicate evaluated
	// against the raw record payload before the language filter,
	// e.g. `int(json(payload).followers) > 100`.
	FilterExpression *string `json:"filterExpression,omitempty" mapstructure:"filter_expression"`
	// EventTimeExpression optionally extracts the event time from the payload
	// instead of using the arrival time stamped by the source.
	EventTimeExpression *string `json:"eventTimeExpression,omitempty" mapstructure:"event_time_expression"`
	// EventTimeFormat is the layout for the extracted time string; when empty
	// the format is guessed.
	EventTimeFormat *string `json:"eventTimeFormat,omitempty" mapstructure:"event_time_format"`
	// Source of the raw records. Defaults to the sample generator.
	Source *Source `json:"source,omitempty" mapstructure:"source"`
	// Sink consuming the window summaries. Defaults to the log sink.
	Sink   *Sink   `json:"sink,omitempty" mapstructure:"sink"`
	Limits *Limits `json:"limits,omitempty" mapstructure:"limits"`
	// MetricsPort is where /metrics, /livez and /readyz are served.
	MetricsPort *int32 `json:"metricsPort,omitempty" mapstructure:"metrics_port"`
}

// Source wraps the supported source kinds; exactly one may be set.
type Source struct {
	Generator *GeneratorSource `json:"generator,omitempty" mapstructure:"generator"`
	HTTP      *HTTPSource      `json:"http,omitempty" mapstructure:"http"`
	Nats      *NatsSource      `json:"nats,omitempty" mapstructure:"nats"`
}

// GeneratorSource emits canned multilingual phrase records, mainly for demos
// and tests.
type GeneratorSource struct {
	// RPU is the number of records emitted per tick.
	RPU *int64 `json:"rpu,omitempty" mapstructure:"rpu"`
	// Interval between two ticks.
	Interval *time.Duration `json:"interval,omitempty" mapstructure:"interval"`
	// Count caps the total number of emitted records; once reached the source
	// reports end-of-stream. Zero or negative means unbounded.
	Count *int64 `json:"count,omitempty" mapstructure:"count"`
	// Languages to draw the sample phrases from. Defaults to an
	// English-heavy mix.
	Languages []string `json:"languages,omitempty" mapstructure:"languages"`
}

// HTTPSource accepts records pushed over plain HTTP.
type HTTPSource struct {
	Port *int32 `json:"port,omitempty" mapstructure:"port"`
	// TokenEnv names an environment variable holding the bearer token
	// clients must present. Empty disables authorization.
	TokenEnv *string `json:"tokenEnv,omitempty" mapstructure:"token_env"`
}

// NatsSource subscribes to a NATS subject through a queue group.
type NatsSource struct {
	// URL to connect to the NATS cluster, multiple urls separated by comma.
	URL string `json:"url" mapstructure:"url"`
	// Subject onto which the records are published.
	Subject string `json:"subject" mapstructure:"subject"`
	// Queue is the queue subscription group.
	Queue string `json:"queue" mapstructure:"queue"`
	// TokenEnv names an environment variable holding the auth token.
	TokenEnv *string `json:"tokenEnv,omitempty" mapstructure:"token_env"`
}

// Sink wraps the supported sink kinds; exactly one may be set.
type Sink struct {
	Log       *LogSink       `json:"log,omitempty" mapstructure:"log"`
	Blackhole *BlackholeSink `json:"blackhole,omitempty" mapstructure:"blackhole"`
	Kafka     *KafkaSink     `json:"kafka,omitempty" mapstructure:"kafka"`
	Redis     *RedisSink     `json:"redis,omitempty" mapstructure:"redis"`
	SSE       *SSESink       `json:"sse,omitempty" mapstructure:"sse"`
}

// LogSink prints every summary through the structured logger.
type LogSink struct {
}

// BlackholeSink drops every summary after counting it; used for
// benchmarking and tests.
type BlackholeSink struct {
}

// KafkaSink produces one message per window summary onto a topic.
type KafkaSink struct {
	Brokers []string `json:"brokers" mapstructure:"brokers"`
	Topic   string   `json:"topic" mapstructure:"topic"`
	// SetKey sets the Kafka key to the window key of the summary, so all
	// summaries of one window hash to the same partition. When false
	// (default) records are sent randomly to one of the available
	// partitions.
	SetKey bool `json:"setKey,omitempty" mapstructure:"set_key"`
	// TLS connection to the brokers.
	TLS *TLS `json:"tls,omitempty" mapstructure:"tls"`
	// Config is a YAML snippet overriding sarama defaults,
	// e.g. `producer:\n  compression: 2`.
	Config *string `json:"config,omitempty" mapstructure:"config"`
	SASL   *SASL   `json:"sasl,omitempty" mapstructure:"sasl"`
	// Concurrency is the number of producer workers draining one write
	// batch. Defaults to 10.
	Concurrency *uint32 `json:"concurrency,omitempty" mapstructure:"concurrency"`
}

// TLS settings for a broker connection; the PEM files are read from disk.
type TLS struct {
	// InsecureSkipVerify disables the server certificate check.
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" mapstructure:"insecure_skip_verify"`
	// CACertPath points at the PEM encoded CA certificate.
	CACertPath string `json:"caCertPath,omitempty" mapstructure:"ca_cert_path"`
	// CertPath and KeyPath point at the PEM encoded client certificate and
	// key; both or neither must be set.
	CertPath string `json:"certPath,omitempty" mapstructure:"cert_path"`
	KeyPath  string `json:"keyPath,omitempty" mapstructure:"key_path"`
}

// SASL describes SASL authentication for the Kafka sink; credentials are
// taken from the named environment variables.
type SASL struct {
	// Mechanism is one of PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512.
	Mechanism   string `json:"mechanism" mapstructure:"mechanism"`
	UserEnv     string `json:"userEnv" mapstructure:"user_env"`
	PasswordEnv string `json:"passwordEnv" mapstructure:"password_env"`
}

// RedisSink appends every summary to a Redis stream with XADD. The
// connection is configured through MANTIS_REDIS_* environment variables.
type RedisSink struct {
	Stream string `json:"stream" mapstructure:"stream"`
	// MaxLen approximately caps the stream length.
	MaxLen *int64 `json:"maxLen,omitempty" mapstructure:"max_len"`
}

// SSESink streams the summaries to connected clients as server-sent events.
type SSESink struct {
	Port           *int32   `json:"port,omitempty" mapstructure:"port"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty" mapstructure:"allowed_origins"`
}

// Limits bound the buffering between the stages.
type Limits struct {
	// ReadBatchSize is the max chunk size of one buffer read.
	ReadBatchSize *int64 `json:"readBatchSize,omitempty" mapstructure:"read_batch_size"`
	// BufferSize is the capacity of the token and summary buffers.
	BufferSize *int64 `json:"bufferSize,omitempty" mapstructure:"buffer_size"`
	// ReadTimeout bounds how long an empty buffer read blocks; it is also the
	// cadence at which elapsed windows get closed.
	ReadTimeout *time.Duration `json:"readTimeout,omitempty" mapstructure:"read_timeout"`
}

func (j Job) GetName() string {
	if j.Name != "" {
		return j.Name
	}
	return DefaultName
}

func (j Job) GetPipelineName() string {
	if j.PipelineName != "" {
		return j.PipelineName
	}
	return DefaultPipelineName
}

func (j Job) GetHopDuration() time.Duration {
	if j.HopDuration != nil && *j.HopDuration > 0 {
		return *j.HopDuration
	}
	return DefaultHopDuration
}

func (j Job) GetTargetLanguage() string {
	if j.TargetLanguage != nil && *j.TargetLanguage != "" {
		return *j.TargetLanguage
	}
	return DefaultTargetLanguage
}

func (j Job) GetReadBatchSize() int64 {
	if j.Limits != nil && j.Limits.ReadBatchSize != nil && *j.Limits.ReadBatchSize > 0 {
		return *j.Limits.ReadBatchSize
	}
	return DefaultReadBatchSize
}

func (j Job) GetBufferSize() int64 {
	if j.Limits != nil && j.Limits.BufferSize != nil && *j.Limits.BufferSize > 0 {
		return *j.Limits.BufferSize
	}
	return DefaultBufferSize
}

func (j Job) GetReadTimeout() time.Duration {
	if j.Limits != nil && j.Limits.ReadTimeout != nil && *j.Limits.ReadTimeout > 0 {
		return *j.Limits.ReadTimeout
	}
	return DefaultReadTimeout
}

func (j Job) GetMetricsPort() int32 {
	if j.MetricsPort != nil && *j.MetricsPort > 0 {
		return *j.MetricsPort
	}
	return DefaultMetricsPort
}

func (g GeneratorSource) GetRPU() int64 {
	if g.RPU != nil && *g.RPU > 0 {
		return *g.RPU
	}
	return DefaultGeneratorRPU
}

func (g GeneratorSource) GetInterval() time.Duration {
	if g.Interval != nil && *g.Interval > 0 {
		return *g.Interval
	}
	return DefaultGeneratorTick
}

func (g GeneratorSource) GetCount() int64 {
	if g.Count != nil && *g.Count > 0 {
		return *g.Count
	}
	return -1
}

func (h HTTPSource) GetPort() int32 {
	if h.Port != nil && *h.Port > 0 {
		return *h.Port
	}
	return DefaultHTTPPort
}

func (k KafkaSink) GetConcurrency() uint32 {
	if k.Concurrency != nil && *k.Concurrency > 0 {
		return *k.Concurrency
	}
	return DefaultKafkaConcurrency
}

func (s SSESink) GetPort() int32 {
	if s.Port != nil && *s.Port > 0 {
		return *s.Port
	}
	return DefaultSSEPort
}

// Validate checks the one-of constraints and the per-kind required fields,
// and fills in the generator source and the log sink when source or sink is
// left unset.
func (j *Job) Validate() error {
	if j.HopDuration != nil && *j.HopDuration <= 0 {
		return fmt.Errorf("invalid hop duration %s, must be positive", j.HopDuration)
	}
	if j.Source == nil {
		j.Source = &Source{Generator: &GeneratorSource{}}
	}
	if j.Sink == nil {
		j.Sink = &Sink{Log: &LogSink{}}
	}
	if err := j.Source.validate(); err != nil {
		return err
	}
	return j.Sink.validate()
}

func (s *Source) validate() error {
	n := 0
	if s.Generator != nil {
		n++
	}
	if s.HTTP != nil {
		n++
	}
	if x := s.Nats; x != nil {
		n++
		if x.URL == "" {
			return fmt.Errorf(`invalid nats source, "url" is not specified`)
		}
		if x.Subject == "" {
			return fmt.Errorf(`invalid nats source, "subject" is not specified`)
		}
		if x.Queue == "" {
			return fmt.Errorf(`invalid nats source, "queue" is not specified`)
		}
	}
	if n == 0 {
		return fmt.Errorf("no source kind specified")
	}
	if n > 1 {
		return fmt.Errorf("only one source kind may be specified")
	}
	return nil
}

func (s *Sink) validate() error {
	n := 0
	if s.Log != nil {
		n++
	}
	if s.Blackhole != nil {
		n++
	}
	if x := s.Kafka; x != nil {
		n++
		if len(x.Brokers) == 0 {
			return fmt.Errorf(`invalid kafka sink, "brokers" is not specified`)
		}
		if x.Topic == "" {
			return fmt.Errorf(`invalid kafka sink, "topic" is not specified`)
		}
	}
	if x := s.Redis; x != nil {
		n++
		if x.Stream == "" {
			return fmt.Errorf(`invalid redis sink, "stream" is not specified`)
		}
	}
	if s.SSE != nil {
		n++
	}
	if n == 0 {
		return fmt.Errorf("no sink kind specified")
	}
	if n > 1 {
		return fmt.Errorf("only one sink kind may be specified")
	}
	return nil
}
