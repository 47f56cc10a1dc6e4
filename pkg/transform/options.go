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

package transform

import (
	"fmt"

	"go.uber.org/zap"
)

type Option func(*Transformer) error

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(t *Transformer) error {
		t.logger = l
		return nil
	}
}

// WithFilterExpression adds a payload expression evaluated before the
// language filter. Records for which it yields false are dropped.
func WithFilterExpression(expression string) Option {
	return func(t *Transformer) error {
		if expression == "" {
			return fmt.Errorf("filter expression cannot be empty")
		}
		t.filterExpr = expression
		return nil
	}
}

// WithEventTimeExpression extracts the event time from the payload with the
// given expression. format is the time layout of the extracted string; when
// empty the layout is guessed.
func WithEventTimeExpression(expression, format string) Option {
	return func(t *Transformer) error {
		if expression == "" {
			return fmt.Errorf("event time expression cannot be empty")
		}
		t.eventTimeExpr = expression
		t.eventTimeFormat = format
		return nil
	}
}
