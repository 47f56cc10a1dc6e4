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

package simplebuffer

import (
	"time"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
)

type options struct {
	// readTimeOut caps how long a Read waits on an empty buffer
	readTimeOut time.Duration
	// onFullWritingStrategy decides what a write on a full buffer does
	onFullWritingStrategy isb.BufferFullWritingStrategy
}

type Option func(options *options) error

// WithReadTimeOut sets how long a Read waits on an empty buffer before
// returning whatever it has.
func WithReadTimeOut(timeout time.Duration) Option {
	return func(o *options) error {
		o.readTimeOut = timeout
		return nil
	}
}

// WithOnFullWritingStrategy sets what a write on a full buffer does, return a
// retryable full error or discard the message outright.
func WithOnFullWritingStrategy(s isb.BufferFullWritingStrategy) Option {
	return func(o *options) error {
		o.onFullWritingStrategy = s
		return nil
	}
}
