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

package forward

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
)

// options tune the source forwarder.
type options struct {
	// readBatchSize caps how many records one chunk reads
	readBatchSize int64
	// transformConcurrency sizes the transform worker pool
	transformConcurrency int
	// retryInterval is the pause between write and transform retries
	retryInterval time.Duration
	logger        *zap.SugaredLogger
}

type Option func(*options) error

func DefaultOptions() *options {
	return &options{
		readBatchSize:        64,
		transformConcurrency: 64,
		retryInterval:        time.Millisecond,
		logger:               logging.NewLogger(),
	}
}

// WithRetryInterval sets the pause between retries.
func WithRetryInterval(f time.Duration) Option {
	return func(o *options) error {
		o.retryInterval = f
		return nil
	}
}

// WithReadBatchSize caps how many records one chunk reads.
func WithReadBatchSize(f int64) Option {
	return func(o *options) error {
		if f <= 0 {
			return fmt.Errorf("invalid read batch size %d", f)
		}
		o.readBatchSize = f
		return nil
	}
}

// WithTransformConcurrency sizes the transform worker pool.
func WithTransformConcurrency(f int) Option {
	return func(o *options) error {
		if f <= 0 {
			return fmt.Errorf("invalid transform concurrency %d", f)
		}
		o.transformConcurrency = f
		return nil
	}
}

// WithLogger replaces the default logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) error {
		o.logger = l
		return nil
	}
}
