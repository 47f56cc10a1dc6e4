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

// Package sse implements a sink that streams the window summaries to
// connected clients as server-sent events. Client subscriptions are
// best-effort; a client that stops draining its events is disconnected so
// it can never hold up the pipeline.
package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
	"github.com/ApollusEHS-OSS/mantis/pkg/metrics"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
	sinkforward "github.com/ApollusEHS-OSS/mantis/pkg/sinks/forward"
)

// ToSSE is a sink which fans the summaries out to subscribed http clients.
type ToSSE struct {
	name             string
	pipelineName     string
	clientBufferSize int

	// lock guards clients; Write owns closing a client channel, the
	// handler only ever receives on it.
	lock    sync.RWMutex
	clients map[chan []byte]struct{}

	shutdown func(context.Context) error
	isdf     *sinkforward.DataForward
	logger   *zap.SugaredLogger
}

type Option func(*ToSSE) error

func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *ToSSE) error {
		t.logger = log
		return nil
	}
}

// WithClientBufferSize sets how many events may queue up per client before
// the client is considered too slow.
func WithClientBufferSize(s int) Option {
	return func(t *ToSSE) error {
		t.clientBufferSize = s
		return nil
	}
}

// NewToSSE returns a new ToSSE sink; the server starts listening right
// away, but summaries flow only after Start.
func NewToSSE(j *job.Job, fromBuffer isb.BufferReader, opts ...Option) (*ToSSE, error) {
	cfg := j.Sink.SSE
	t := &ToSSE{
		name:             j.GetName(),
		pipelineName:     j.GetPipelineName(),
		clientBufferSize: 16,
		clients:          make(map[chan []byte]struct{}),
	}
	for _, o := range opts {
		if err := o(t); err != nil {
			return nil, err
		}
	}
	if t.logger == nil {
		t.logger = logging.NewLogger()
	}
	t.logger = t.logger.With("sinkType", "sse")

	router := gin.New()
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{SkipPaths: []string{"/livez"}}))
	allowedOrigins := make([]string, 0)
	for _, o := range cfg.AllowedOrigins {
		s := strings.TrimSpace(o)
		s = strings.TrimRight(s, "/") // Remove trailing slash if any
		if len(s) > 0 {
			allowedOrigins = append(allowedOrigins, s)
		}
	}
	if len(allowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     allowedOrigins,
			AllowMethods:     []string{"GET"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
			AllowCredentials: true,
		}))
	}
	router.GET("/livez", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	router.GET("/events", t.handleEvents)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.GetPort()),
		Handler: router,
	}
	go func() {
		t.logger.Info("Starting sse sink server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Fatalw("Failed to listen-and-serve on sse sink server", zap.Error(err))
		}
		t.logger.Info("Shutdown sse sink server")
	}()
	t.shutdown = server.Shutdown

	isdf, err := sinkforward.NewDataForward(t.pipelineName, t.name, fromBuffer, t,
		sinkforward.WithReadBatchSize(j.GetReadBatchSize()), sinkforward.WithLogger(t.logger))
	if err != nil {
		_ = server.Shutdown(context.Background())
		return nil, err
	}
	t.isdf = isdf

	return t, nil
}

// GetName returns the sink name.
func (t *ToSSE) GetName() string {
	return t.name
}

// Write fans each summary out to every subscribed client. Delivery is
// best-effort; a client whose event buffer is full gets disconnected
// instead of blocking the forwarder, the summaries keep flowing to the
// remaining clients.
func (t *ToSSE) Write(_ context.Context, messages []isb.Message) ([]isb.Offset, []error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	for _, message := range messages {
		sseSinkWriteCount.With(map[string]string{metrics.LabelVertex: t.name, metrics.LabelPipeline: t.pipelineName}).Inc()
		for ch := range t.clients {
			select {
			case ch <- message.Payload:
			default:
				close(ch)
				delete(t.clients, ch)
				sseSinkActiveClients.With(map[string]string{metrics.LabelVertex: t.name, metrics.LabelPipeline: t.pipelineName}).Dec()
				sseSinkDroppedClients.With(map[string]string{metrics.LabelVertex: t.name, metrics.LabelPipeline: t.pipelineName}).Inc()
				t.logger.Warnw("Dropped a client which is not draining its events", zap.String("window", message.ID))
			}
		}
	}
	return nil, make([]error, len(messages))
}

func (t *ToSSE) handleEvents(c *gin.Context) {
	ch := t.register()
	defer t.unregister(ch)
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	// send the headers right away, the client is subscribed before the
	// first summary arrives
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("summary", string(e))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (t *ToSSE) register() chan []byte {
	t.lock.Lock()
	defer t.lock.Unlock()
	ch := make(chan []byte, t.clientBufferSize)
	t.clients[ch] = struct{}{}
	sseSinkActiveClients.With(map[string]string{metrics.LabelVertex: t.name, metrics.LabelPipeline: t.pipelineName}).Inc()
	return ch
}

func (t *ToSSE) unregister(ch chan []byte) {
	t.lock.Lock()
	defer t.lock.Unlock()
	// Write may have disconnected the client already
	if _, ok := t.clients[ch]; ok {
		delete(t.clients, ch)
		sseSinkActiveClients.With(map[string]string{metrics.LabelVertex: t.name, metrics.LabelPipeline: t.pipelineName}).Dec()
	}
}

// closeClients ends every open event stream.
func (t *ToSSE) closeClients() {
	t.lock.Lock()
	defer t.lock.Unlock()
	for ch := range t.clients {
		close(ch)
		delete(t.clients, ch)
		sseSinkActiveClients.With(map[string]string{metrics.LabelVertex: t.name, metrics.LabelPipeline: t.pipelineName}).Dec()
	}
}

// Close disconnects the clients and shuts the server down.
func (t *ToSSE) Close() error {
	t.logger.Info("Shutting down sse sink server...")
	t.closeClients()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := t.shutdown(ctx); err != nil {
		return err
	}
	t.logger.Info("SSE sink server shutdown")
	return nil
}

// CloseWrite is a no-op, an event stream has no end-of-stream marker.
func (t *ToSSE) CloseWrite() error {
	return nil
}

// Start starts streaming the summaries.
func (t *ToSSE) Start() <-chan struct{} {
	return t.isdf.Start()
}

// Stop stops streaming
func (t *ToSSE) Stop() {
	t.isdf.Stop()
}

// ForceStop stops streaming
func (t *ToSSE) ForceStop() {
	t.isdf.ForceStop()
}
