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

// Package generator contains a self-ticking record source. Every tick it
// writes a batch of canned records into an in-memory channel, cycling
// through the configured languages, which makes it the demo and test
// source of the worker; no external system is required to watch windows
// fill up and close.
package generator

import (
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ApollusEHS-OSS/mantis/pkg/forward/applier"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
	"github.com/ApollusEHS-OSS/mantis/pkg/metrics"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
	sourceforward "github.com/ApollusEHS-OSS/mantis/pkg/sources/forward"
)

// phrases are the canned texts emitted per language. Unknown languages get
// a synthesized text so the stream never stalls on configuration.
var phrases = map[string][]string{
	"en": {
		"the cat sat on the mat",
		"the quick brown fox jumps over the lazy dog",
		"to be or not to be",
		"all the world is a stage",
	},
	"fr": {
		"le chat dort sur le tapis",
		"la plume de ma tante est sur le bureau",
		"rien ne sert de courir il faut partir a point",
	},
	"de": {
		"der apfel faellt nicht weit vom stamm",
		"die katze schlaeft auf der matte",
	},
	"es": {
		"el gato duerme en la alfombra",
		"mas vale tarde que nunca",
	},
}

type record struct {
	Lang string `json:"lang"`
	Text string `json:"text"`
}

type memGen struct {
	vertexName   string
	pipelineName string
	// rpu is the number of records generated per tick
	rpu int64
	// interval is the tick at which a batch of records is generated
	interval time.Duration
	// count caps the total number of generated records; a negative count
	// keeps the stream open forever
	count int64
	// languages are cycled through record by record
	languages []string
	// records is the stream of generated but not yet read records; closing
	// it is how the generator signals end-of-stream
	records     chan *isb.ReadMessage
	readTimeout time.Duration

	// genCtx cancels the generating goroutine on Stop/Close
	genCtx    context.Context
	cancelgen context.CancelFunc

	forwarder *sourceforward.DataForward
	logger    *zap.SugaredLogger
}

type Option func(*memGen) error

// WithReadTimeout sets how long a Read waits for records before returning
// what it has.
func WithReadTimeout(t time.Duration) Option {
	return func(o *memGen) error {
		o.readTimeout = t
		return nil
	}
}

// WithBufferSize sets the capacity of the internal record channel.
func WithBufferSize(s int) Option {
	return func(o *memGen) error {
		o.records = make(chan *isb.ReadMessage, s)
		return nil
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *memGen) error {
		o.logger = l
		return nil
	}
}

// NewMemGen creates a generator source and the forwarder that moves its
// records to the token buffer through the transformer.
func NewMemGen(j *job.Job, toBuffer isb.BufferWriter, transformer applier.TransformApplier, opts ...Option) (*memGen, error) {
	g := j.Source.Generator
	genCtx, cancel := context.WithCancel(context.Background())
	mg := &memGen{
		vertexName:   j.GetName(),
		pipelineName: j.GetPipelineName(),
		rpu:          g.GetRPU(),
		interval:     g.GetInterval(),
		count:        g.GetCount(),
		languages:    g.Languages,
		records:      make(chan *isb.ReadMessage, 1000),
		readTimeout:  j.GetReadTimeout(),
		genCtx:       genCtx,
		cancelgen:    cancel,
		logger:       logging.NewLogger(),
	}
	if len(mg.languages) == 0 {
		mg.languages = []string{job.DefaultTargetLanguage}
	}
	for _, o := range opts {
		if err := o(mg); err != nil {
			cancel()
			return nil, err
		}
	}

	forwarder, err := sourceforward.NewDataForward(mg.pipelineName, mg.vertexName, mg, toBuffer, transformer,
		sourceforward.WithReadBatchSize(j.GetReadBatchSize()), sourceforward.WithLogger(mg.logger))
	if err != nil {
		cancel()
		return nil, err
	}
	mg.forwarder = forwarder
	return mg, nil
}

// GetName returns the name of the source vertex.
func (mg *memGen) GetName() string {
	return mg.vertexName
}

func (mg *memGen) Read(_ context.Context, count int64) ([]*isb.ReadMessage, error) {
	var msgs []*isb.ReadMessage
	timeout := time.After(mg.readTimeout)
loop:
	for i := int64(0); i < count; i++ {
		select {
		case m, ok := <-mg.records:
			if !ok {
				if len(msgs) == 0 {
					return nil, isb.ErrClosed
				}
				// let the next Read report end-of-stream
				break loop
			}
			generatorSourceReadCount.With(map[string]string{metrics.LabelPipeline: mg.pipelineName, metrics.LabelVertex: mg.vertexName}).Inc()
			msgs = append(msgs, m)
		case <-timeout:
			mg.logger.Debugw("Timed out waiting for messages to read.", zap.Duration("waited", mg.readTimeout), zap.Int("read", len(msgs)))
			break loop
		}
	}
	mg.logger.Debugf("Read %d messages.", len(msgs))
	return msgs, nil
}

// Ack is a no-op, generated records need no acknowledgement.
func (mg *memGen) Ack(_ context.Context, offsets []isb.Offset) []error {
	return make([]error, len(offsets))
}

// NoAck is a no-op.
func (mg *memGen) NoAck(_ context.Context, _ []isb.Offset) {}

// Pending returns the number of generated records waiting to be read.
func (mg *memGen) Pending(_ context.Context) (int64, error) {
	return int64(len(mg.records)), nil
}

func (mg *memGen) Close() error {
	mg.cancelgen()
	return nil
}

// Start kicks off the generating goroutine and the forwarder. The returned
// channel closes once the forwarder has fully stopped.
func (mg *memGen) Start() <-chan struct{} {
	mg.generate()
	return mg.forwarder.Start()
}

// Stop stops generating and initiates a graceful shutdown of the forwarder;
// records already read keep flowing downstream.
func (mg *memGen) Stop() {
	mg.cancelgen()
	mg.forwarder.Stop()
}

func (mg *memGen) ForceStop() {
	mg.cancelgen()
	mg.forwarder.ForceStop()
}

// generate emits rpu records every tick until the count cap is reached or
// the generator is stopped, then closes the record channel so the readers
// see end-of-stream.
func (mg *memGen) generate() {
	go func() {
		defer close(mg.records)
		ticker := time.NewTicker(mg.interval)
		defer ticker.Stop()
		var seq int64
		for {
			select {
			case <-mg.genCtx.Done():
				return
			case <-ticker.C:
				generatorSourceTickCount.With(map[string]string{metrics.LabelPipeline: mg.pipelineName, metrics.LabelVertex: mg.vertexName}).Inc()
				for i := int64(0); i < mg.rpu; i++ {
					if mg.count >= 0 && seq >= mg.count {
						mg.logger.Infow("Generated the configured number of records, closing the stream", zap.Int64("count", mg.count))
						return
					}
					select {
					case mg.records <- mg.newRecord(seq):
						seq++
					case <-mg.genCtx.Done():
						return
					}
				}
			}
		}
	}()
}

// newRecord builds one record; the offset is the sequence number and the
// event time is the generation time.
func (mg *memGen) newRecord(seq int64) *isb.ReadMessage {
	lang := mg.languages[seq%int64(len(mg.languages))]
	var text string
	if list, ok := phrases[lang]; ok {
		text = list[seq%int64(len(list))]
	} else {
		text = "sample text " + strconv.FormatInt(seq, 10)
	}
	payload, _ := json.Marshal(record{Lang: lang, Text: text})
	id := strconv.FormatInt(seq, 10)
	return &isb.ReadMessage{
		Message: isb.Message{
			Header: isb.Header{
				MessageInfo: isb.MessageInfo{EventTime: time.Now()},
				ID:          id,
				Key:         lang,
			},
			Body: isb.Body{Payload: payload},
		},
		ReadOffset: isb.SimpleStringOffset(func() string { return id }),
	}
}
