package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
	"github.com/ApollusEHS-OSS/mantis/pkg/metrics"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/util"
	sinkforward "github.com/ApollusEHS-OSS/mantis/pkg/sinks/forward"
)

// ToKafka produces the window summaries onto a kafka topic.
type ToKafka struct {
	name         string
	pipelineName string
	producer     sarama.SyncProducer
	topic        string
	setKey       bool
	isdf         *sinkforward.DataForward
	log          *zap.SugaredLogger
	concurrency  uint32
}

type Option func(*ToKafka) error

func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *ToKafka) error {
		t.log = log
		return nil
	}
}

// NewToKafka builds the kafka sink for a job and hooks it up to the summary
// buffer through a sink forwarder.
func NewToKafka(j *job.Job, fromBuffer isb.BufferReader, opts ...Option) (*ToKafka, error) {
	kafkaSink := j.Sink.Kafka
	toKafka := &ToKafka{
		name:         j.GetName(),
		pipelineName: j.GetPipelineName(),
		topic:        kafkaSink.Topic,
		setKey:       kafkaSink.SetKey,
		concurrency:  kafkaSink.GetConcurrency(),
	}
	for _, o := range opts {
		if err := o(toKafka); err != nil {
			return nil, err
		}
	}
	if toKafka.log == nil {
		toKafka.log = logging.NewLogger()
	}
	toKafka.log = toKafka.log.With("sinkType", "kafka").With("topic", kafkaSink.Topic)

	isdf, err := sinkforward.NewDataForward(toKafka.pipelineName, toKafka.name, fromBuffer, toKafka,
		sinkforward.WithReadBatchSize(j.GetReadBatchSize()), sinkforward.WithLogger(toKafka.log))
	if err != nil {
		return nil, err
	}
	toKafka.isdf = isdf

	var yamlConfig string
	if kafkaSink.Config != nil {
		yamlConfig = *kafkaSink.Config
	}
	config, err := util.GetSaramaConfigFromYAMLString(yamlConfig)
	if err != nil {
		return nil, err
	}
	if t := kafkaSink.TLS; t != nil {
		config.Net.TLS.Enable = true
		if c, err := util.GetTLSConfig(t); err != nil {
			return nil, err
		} else {
			config.Net.TLS.Config = c
		}
	}
	if s := kafkaSink.SASL; s != nil {
		if err := util.UpdateSASLConfig(config, s); err != nil {
			return nil, err
		}
	}
	producer, err := sarama.NewSyncProducer(kafkaSink.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create the kafka producer, %w", err)
	}
	toKafka.producer = producer
	return toKafka, nil
}

// GetName returns the sink name.
func (tk *ToKafka) GetName() string {
	return tk.name
}

// Write produces the summaries, a pool of workers wide. The error slice keeps
// the caller's ordering so the forwarder can retry only the failed ones.
func (tk *ToKafka) Write(_ context.Context, messages []isb.Message) ([]isb.Offset, []error) {
	errs := make([]error, len(messages))
	idxCh := make(chan int)
	wg := new(sync.WaitGroup)

	for i := uint32(0); i < tk.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range idxCh {
				msg := &sarama.ProducerMessage{
					Topic: tk.topic,
					Value: sarama.ByteEncoder(messages[idx].Payload),
				}
				if tk.setKey {
					// all summaries of one window hash to the same partition
					msg.Key = sarama.StringEncoder(messages[idx].ID)
				}
				_, _, err := tk.producer.SendMessage(msg)
				if err != nil {
					kafkaSinkWriteErrors.With(map[string]string{metrics.LabelVertex: tk.name, metrics.LabelPipeline: tk.pipelineName}).Inc()
					tk.log.Errorw("Failed to produce the summary", zap.Error(err), zap.String("id", messages[idx].ID))
				} else {
					kafkaSinkWriteCount.With(map[string]string{metrics.LabelVertex: tk.name, metrics.LabelPipeline: tk.pipelineName}).Inc()
				}
				errs[idx] = err
			}
		}()
	}
	for idx := range messages {
		idxCh <- idx
	}
	close(idxCh)
	wg.Wait()
	return nil, errs
}

func (tk *ToKafka) Close() error {
	tk.log.Info("Closing the kafka producer...")
	return tk.producer.Close()
}

// CloseWrite is a no-op, the producer has no end-of-stream to signal.
func (tk *ToKafka) CloseWrite() error {
	return nil
}

// Start starts the underlying forwarder.
func (tk *ToKafka) Start() <-chan struct{} {
	return tk.isdf.Start()
}

// Stop drains what was read and stops.
func (tk *ToKafka) Stop() {
	tk.isdf.Stop()
	tk.log.Info("Stopped the sink forwarder")
}

// ForceStop abandons the in-flight summaries and stops.
func (tk *ToKafka) ForceStop() {
	tk.isdf.ForceStop()
	tk.log.Info("Force stopped the sink forwarder")
}
