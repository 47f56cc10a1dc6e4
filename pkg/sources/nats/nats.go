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

// Package nats implements a source subscribing to a nats subject. Records
// are stamped with their arrival time; several workers may share the load
// through a queue group.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	natslib "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/ApollusEHS-OSS/mantis/pkg/forward/applier"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
	"github.com/ApollusEHS-OSS/mantis/pkg/metrics"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
	sharedutil "github.com/ApollusEHS-OSS/mantis/pkg/shared/util"
	sourceforward "github.com/ApollusEHS-OSS/mantis/pkg/sources/forward"
)

type natsSource struct {
	vertexName   string
	pipelineName string
	natsConn     *natslib.Conn
	sub          *natslib.Subscription
	bufferSize   int
	messages     chan *isb.ReadMessage
	readTimeout  time.Duration

	// srvCtx releases subscription callbacks blocked on a full message
	// channel during shutdown.
	srvCtx    context.Context
	cancelSrv context.CancelFunc

	forwarder *sourceforward.DataForward
	logger    *zap.SugaredLogger
}

type Option func(*natsSource) error

// WithLogger replaces the default logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *natsSource) error {
		o.logger = l
		return nil
	}
}

// WithBufferSize sizes the channel holding records until the forwarder reads them.
func WithBufferSize(s int) Option {
	return func(o *natsSource) error {
		o.bufferSize = s
		return nil
	}
}

// WithReadTimeout caps how long one Read waits for records to arrive.
func WithReadTimeout(t time.Duration) Option {
	return func(o *natsSource) error {
		o.readTimeout = t
		return nil
	}
}

// New connects to the nats server, queue-subscribes to the configured
// subject and creates the forwarder moving the records to the token buffer.
func New(j *job.Job, toBuffer isb.BufferWriter, transformer applier.TransformApplier, opts ...Option) (*natsSource, error) {
	source := j.Source.Nats
	srvCtx, cancel := context.WithCancel(context.Background())
	n := &natsSource{
		vertexName:   j.GetName(),
		pipelineName: j.GetPipelineName(),
		bufferSize:   1000,
		readTimeout:  j.GetReadTimeout(),
		srvCtx:       srvCtx,
		cancelSrv:    cancel,
		logger:       logging.NewLogger(),
	}
	for _, o := range opts {
		if err := o(n); err != nil {
			cancel()
			return nil, err
		}
	}
	n.messages = make(chan *isb.ReadMessage, n.bufferSize)

	opt := []natslib.Option{
		natslib.MaxReconnects(-1),
		natslib.ReconnectWait(3 * time.Second),
		natslib.DisconnectErrHandler(func(c *natslib.Conn, err error) {
			n.logger.Errorw("Lost the nats connection", zap.Error(err))
		}),
		natslib.ReconnectHandler(func(c *natslib.Conn) {
			n.logger.Info("The nats connection is back")
		}),
	}
	if source.TokenEnv != nil {
		if token := sharedutil.LookupEnvStringOr(*source.TokenEnv, ""); token != "" {
			opt = append(opt, natslib.Token(token))
		}
	}

	n.logger.Info("Connecting to the nats server...")
	conn, err := natslib.Connect(source.URL, opt...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to the nats server, %w", err)
	}
	n.natsConn = conn

	sub, err := n.natsConn.QueueSubscribe(source.Subject, source.Queue, func(msg *natslib.Msg) {
		id := uuid.New().String()
		m := &isb.ReadMessage{
			Message: isb.Message{
				Header: isb.Header{
					MessageInfo: isb.MessageInfo{EventTime: time.Now()},
					ID:          id,
				},
				Body: isb.Body{
					Payload: msg.Data,
				},
			},
			ReadOffset: isb.SimpleStringOffset(func() string { return id }),
		}
		select {
		case n.messages <- m:
		case <-n.srvCtx.Done():
			// shutting down, the record is dropped with the subscription
		}
	})
	if err != nil {
		cancel()
		n.natsConn.Close()
		return nil, fmt.Errorf("failed to subscribe to the nats subject, %w", err)
	}
	n.sub = sub

	forwarder, err := sourceforward.NewDataForward(n.pipelineName, n.vertexName, n, toBuffer, transformer,
		sourceforward.WithReadBatchSize(j.GetReadBatchSize()), sourceforward.WithLogger(n.logger))
	if err != nil {
		cancel()
		_ = sub.Unsubscribe()
		n.natsConn.Close()
		return nil, err
	}
	n.forwarder = forwarder
	return n, nil
}

func (ns *natsSource) GetName() string {
	return ns.vertexName
}

func (ns *natsSource) Read(_ context.Context, count int64) ([]*isb.ReadMessage, error) {
	var msgs []*isb.ReadMessage
	timeout := time.After(ns.readTimeout)
loop:
	for i := int64(0); i < count; i++ {
		select {
		case m := <-ns.messages:
			natsSourceReadCount.With(map[string]string{metrics.LabelPipeline: ns.pipelineName, metrics.LabelVertex: ns.vertexName}).Inc()
			msgs = append(msgs, m)
		case <-timeout:
			ns.logger.Debugw("Read timed out with a partial batch", zap.Duration("waited", ns.readTimeout), zap.Int("read", len(msgs)))
			break loop
		}
	}
	ns.logger.Debugf("Read %d records", len(msgs))
	return msgs, nil
}

// Pending returns the number of received but not yet read records.
func (ns *natsSource) Pending(_ context.Context) (int64, error) {
	return int64(len(ns.messages)), nil
}

// Ack is a no-op, core nats has no acknowledgement.
func (ns *natsSource) Ack(_ context.Context, offsets []isb.Offset) []error {
	return make([]error, len(offsets))
}

// NoAck is a no-op.
func (ns *natsSource) NoAck(_ context.Context, _ []isb.Offset) {}

func (ns *natsSource) Close() error {
	ns.logger.Info("Shutting down the nats source...")
	ns.cancelSrv()
	if err := ns.sub.Unsubscribe(); err != nil {
		ns.logger.Errorw("Failed to drop the nats subscription", zap.Error(err))
	}
	ns.natsConn.Close()
	ns.logger.Info("The nats source is down")
	return nil
}

// Start starts the forwarder; the returned channel closes once the
// forwarder has fully stopped and the subscription is torn down.
func (ns *natsSource) Start() <-chan struct{} {
	return ns.forwarder.Start()
}

// Stop initiates a graceful shutdown; records already read keep flowing
// downstream, the rest stay with the nats server.
func (ns *natsSource) Stop() {
	ns.forwarder.Stop()
}

func (ns *natsSource) ForceStop() {
	ns.forwarder.ForceStop()
}
