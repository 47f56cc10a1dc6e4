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

package reduce

import "fmt"

type options struct {
	// readBatchSize is the maximum number of tokens taken per loop turn
	readBatchSize int64
}

type Option func(*options) error

func defaultOptions() *options {
	return &options{
		readBatchSize: 64,
	}
}

// WithReadBatchSize sets the read batch size.
func WithReadBatchSize(size int64) Option {
	return func(o *options) error {
		if size < 1 {
			return fmt.Errorf("read batch size must be at least 1")
		}
		o.readBatchSize = size
		return nil
	}
}
