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

// Package transform turns raw source records into token messages. A record
// passes the language filter, its text body is tokenized, and one message
// per token is handed back to the forwarder with the token as the key.
package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"go.uber.org/zap"

	"github.com/ApollusEHS-OSS/mantis/pkg/filter"
	"github.com/ApollusEHS-OSS/mantis/pkg/forward/applier"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/metrics"
	"github.com/ApollusEHS-OSS/mantis/pkg/record"
	sharedexpr "github.com/ApollusEHS-OSS/mantis/pkg/shared/expr"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
	"github.com/ApollusEHS-OSS/mantis/pkg/tokenize"
)

// Transformer implements the applier invoked by the source forwarder.
// Records that fail decoding or filtering are dropped, never retried; a
// record already read cannot become admissible later.
type Transformer struct {
	pipelineName string
	vertexName   string
	filter       *filter.Filter
	// filterExpr, when set, is evaluated against the raw payload before
	// the language filter. e.g. `int(json(payload).user.followers) > 100`
	filterExpr string
	// eventTimeExpr, when set, extracts the event time from the payload
	// instead of using the arrival time stamped by the source.
	eventTimeExpr string
	// eventTimeFormat is the layout for parsing the extracted time string.
	// When empty the string is parsed by guessing the format.
	eventTimeFormat string
	logger          *zap.SugaredLogger
}

var _ applier.TransformApplier = (*Transformer)(nil)

// New returns a Transformer admitting records in the filter's target
// language.
func New(pipelineName, vertexName string, f *filter.Filter, opts ...Option) (*Transformer, error) {
	t := &Transformer{
		pipelineName: pipelineName,
		vertexName:   vertexName,
		filter:       f,
	}
	for _, o := range opts {
		if err := o(t); err != nil {
			return nil, err
		}
	}
	if t.logger == nil {
		t.logger = logging.NewLogger()
	}
	return t, nil
}

// ApplyTransform maps one raw record onto its token messages. The returned
// messages carry the token as both key and payload, and the event time of
// the record. Dropped records return an empty slice; an error is returned
// only on internal failures worth retrying.
func (t *Transformer) ApplyTransform(_ context.Context, msg *isb.ReadMessage) ([]*isb.Message, error) {
	labels := map[string]string{metrics.LabelPipeline: t.pipelineName, metrics.LabelVertex: t.vertexName}
	recordsInCount.With(labels).Inc()

	if t.filterExpr != "" {
		keep, err := sharedexpr.EvalBool(t.filterExpr, msg.Payload)
		if err != nil {
			// an undecidable record can never become decidable, drop it
			t.logger.Errorw("Failed to evaluate the filter expression, dropping the record", zap.Error(err))
			recordsMalformedCount.With(labels).Inc()
			return []*isb.Message{}, nil
		}
		if !keep {
			recordsFilteredCount.With(labels).Inc()
			return []*isb.Message{}, nil
		}
	}

	r, err := record.Parse(msg.Payload)
	if err != nil {
		t.logger.Debugw("Dropping malformed record", zap.Error(err))
		recordsMalformedCount.With(labels).Inc()
		return []*isb.Message{}, nil
	}

	if !t.filter.Accept(r) {
		recordsFilteredCount.With(labels).Inc()
		return []*isb.Message{}, nil
	}

	eventTime := msg.EventTime
	if t.eventTimeExpr != "" {
		// on extraction failure the arrival time stays in effect
		if et, err := t.extractEventTime(msg.Payload); err != nil {
			t.logger.Warnw("Failed to extract event time, keeping the arrival time", zap.Error(err))
		} else {
			eventTime = et
		}
	}

	text, _ := r.Text()
	tokens := tokenize.Split(text)
	messages := make([]*isb.Message, 0, len(tokens))
	for idx, token := range tokens {
		messages = append(messages, &isb.Message{
			Header: isb.Header{
				MessageInfo: isb.MessageInfo{EventTime: eventTime},
				ID:          fmt.Sprintf("%s-%d", msg.ReadOffset.String(), idx),
				Key:         token,
			},
			Body: isb.Body{Payload: []byte(token)},
		})
	}
	tokensOutCount.With(labels).Add(float64(len(messages)))
	return messages, nil
}

func (t *Transformer) extractEventTime(payload []byte) (time.Time, error) {
	timeStr, err := sharedexpr.EvalStr(t.eventTimeExpr, payload)
	if err != nil {
		return time.Time{}, err
	}
	if t.eventTimeFormat != "" {
		return time.Parse(t.eventTimeFormat, timeStr)
	}
	return dateparse.ParseStrict(timeStr)
}
