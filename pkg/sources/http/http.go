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

// Package http implements a push source. Records are POSTed to the worker,
// stamped with their arrival time and buffered in a channel until the
// forwarder picks them up.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ApollusEHS-OSS/mantis/pkg/forward/applier"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
	"github.com/ApollusEHS-OSS/mantis/pkg/metrics"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
	sharedutil "github.com/ApollusEHS-OSS/mantis/pkg/shared/util"
	sourceforward "github.com/ApollusEHS-OSS/mantis/pkg/sources/forward"
)

const (
	// KeyMetaID forces the record ID instead of the generated uuid.
	KeyMetaID = "X-Mantis-Id"
	// KeyMetaEventTime overrides the arrival time, epoch millis.
	KeyMetaEventTime = "X-Mantis-Event-Time"
)

type httpSource struct {
	vertexName   string
	pipelineName string
	ready        bool
	readTimeout  time.Duration
	bufferSize   int
	messages     chan *isb.ReadMessage

	// srvCtx releases handlers blocked on a full message channel during
	// shutdown, before the channel is closed.
	srvCtx    context.Context
	cancelSrv context.CancelFunc
	shutdown  func(context.Context) error

	forwarder *sourceforward.DataForward
	logger    *zap.SugaredLogger
}

type Option func(*httpSource) error

// WithReadTimeout caps how long one Read waits for records to arrive.
func WithReadTimeout(t time.Duration) Option {
	return func(o *httpSource) error {
		o.readTimeout = t
		return nil
	}
}

func WithBufferSize(s int) Option {
	return func(o *httpSource) error {
		o.bufferSize = s
		return nil
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *httpSource) error {
		o.logger = l
		return nil
	}
}

// New creates an http source; the server starts listening right away, but
// records are forwarded only after Start.
func New(j *job.Job, toBuffer isb.BufferWriter, transformer applier.TransformApplier, opts ...Option) (*httpSource, error) {
	cfg := j.Source.HTTP
	srvCtx, cancel := context.WithCancel(context.Background())
	h := &httpSource{
		vertexName:   j.GetName(),
		pipelineName: j.GetPipelineName(),
		ready:        false,
		bufferSize:   1000,
		readTimeout:  j.GetReadTimeout(),
		srvCtx:       srvCtx,
		cancelSrv:    cancel,
		logger:       logging.NewLogger(),
	}
	for _, o := range opts {
		if err := o(h); err != nil {
			cancel()
			return nil, err
		}
	}
	h.messages = make(chan *isb.ReadMessage, h.bufferSize)

	auth := ""
	if cfg.TokenEnv != nil {
		auth = sharedutil.LookupEnvStringOr(*cfg.TokenEnv, "")
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !h.ready {
			http.Error(w, "source not ready yet", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/vertices/"+h.vertexName+"/messages", func(w http.ResponseWriter, r *http.Request) {
		if auth != "" && r.Header.Get("Authorization") != "Bearer "+auth {
			http.Error(w, "missing or wrong bearer token", http.StatusForbidden)
			return
		}
		if !h.ready {
			http.Error(w, "source not ready yet", http.StatusServiceUnavailable)
			return
		}
		msg, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		id := r.Header.Get(KeyMetaID)
		if id == "" {
			id = uuid.New().String()
		}
		eventTime := time.Now()
		if x := r.Header.Get(KeyMetaEventTime); x != "" {
			i, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			eventTime = time.UnixMilli(i)
		}

		m := &isb.ReadMessage{
			Message: isb.Message{
				Header: isb.Header{
					MessageInfo: isb.MessageInfo{EventTime: eventTime},
					ID:          id,
				},
				Body: isb.Body{
					Payload: msg,
				},
			},
			ReadOffset: isb.SimpleStringOffset(func() string { return id }),
		}
		select {
		case h.messages <- m:
			w.WriteHeader(http.StatusNoContent)
		case <-h.srvCtx.Done():
			http.Error(w, "http source is shutting down", http.StatusServiceUnavailable)
		}
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.GetPort()),
		Handler: mux,
	}
	go func() {
		h.logger.Info("Starting the http source server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Fatalw("Failed to listen-and-serve on http source server", zap.Error(err))
		}
		h.logger.Info("The http source server exited")
	}()
	h.shutdown = server.Shutdown

	forwarder, err := sourceforward.NewDataForward(h.pipelineName, h.vertexName, h, toBuffer, transformer,
		sourceforward.WithReadBatchSize(j.GetReadBatchSize()), sourceforward.WithLogger(h.logger))
	if err != nil {
		cancel()
		_ = server.Shutdown(context.Background())
		return nil, err
	}
	h.forwarder = forwarder
	return h, nil
}

// GetName returns the name of the source vertex.
func (h *httpSource) GetName() string {
	return h.vertexName
}

func (h *httpSource) Read(_ context.Context, count int64) ([]*isb.ReadMessage, error) {
	var msgs []*isb.ReadMessage
	timeout := time.After(h.readTimeout)
loop:
	for i := int64(0); i < count; i++ {
		select {
		case m, ok := <-h.messages:
			if !ok {
				if len(msgs) == 0 {
					return nil, isb.ErrClosed
				}
				// let the next Read report end-of-stream
				break loop
			}
			httpSourceReadCount.With(map[string]string{metrics.LabelPipeline: h.pipelineName, metrics.LabelVertex: h.vertexName}).Inc()
			msgs = append(msgs, m)
		case <-timeout:
			h.logger.Debugw("Read timed out with a partial batch", zap.Duration("waited", h.readTimeout), zap.Int("read", len(msgs)))
			break loop
		}
	}
	h.logger.Debugf("Read %d records", len(msgs))
	return msgs, nil
}

// Ack is a no-op, a pushed record is owned by the worker once accepted.
func (h *httpSource) Ack(_ context.Context, offsets []isb.Offset) []error {
	return make([]error, len(offsets))
}

// NoAck is a no-op.
func (h *httpSource) NoAck(_ context.Context, _ []isb.Offset) {}

// Pending returns the number of accepted but not yet read records.
func (h *httpSource) Pending(_ context.Context) (int64, error) {
	return int64(len(h.messages)), nil
}

func (h *httpSource) Close() error {
	h.logger.Info("Shutting down the http source server...")
	h.cancelSrv()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.shutdown(ctx); err != nil {
		return err
	}
	// the server is drained, nothing can be sending anymore
	close(h.messages)
	h.logger.Info("The http source server is down")
	return nil
}

// Start marks the source ready and starts the forwarder; the returned
// channel closes once the forwarder has fully stopped and the server is
// shut down.
func (h *httpSource) Start() <-chan struct{} {
	h.ready = true
	return h.forwarder.Start()
}

// Stop stops accepting records and initiates a graceful shutdown of the
// forwarder; everything already accepted still flows downstream.
func (h *httpSource) Stop() {
	h.ready = false
	h.forwarder.Stop()
}

func (h *httpSource) ForceStop() {
	h.ready = false
	h.forwarder.ForceStop()
}
