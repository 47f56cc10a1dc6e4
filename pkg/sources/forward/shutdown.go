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
	"sync"
	"time"
)

// Shutdown records how the forwarder was asked to stop. A graceful stop lets
// the records already read from the source finish the transform and write
// path; a forced one abandons them.
type Shutdown struct {
	stopped     bool
	forced      bool
	requestedAt time.Time
	requests    int
	mu          *sync.RWMutex
}

// IsShuttingDown returns true once any stop has been requested.
func (df *DataForward) IsShuttingDown() (bool, error) {
	df.Shutdown.mu.RLock()
	defer df.Shutdown.mu.RUnlock()

	return df.Shutdown.forced || df.Shutdown.stopped, nil
}

func (s *Shutdown) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("stopped:%t forced:%t requests:%d requestedAt:%s",
		s.stopped, s.forced, s.requests, s.requestedAt)
}

// Stop initiates a graceful shutdown. Records already read are still
// transformed, written downstream and acked back to the source.
func (df *DataForward) Stop() {
	df.Shutdown.mu.Lock()
	defer df.Shutdown.mu.Unlock()
	if df.Shutdown.requestedAt.IsZero() {
		df.Shutdown.requestedAt = time.Now()
	}
	df.Shutdown.stopped = true
	df.Shutdown.requests++
	df.cancelFn()
}

// ForceStop abandons the in-flight records and stops as fast as possible.
func (df *DataForward) ForceStop() {
	// a forced stop is still a stop
	df.Stop()
	df.Shutdown.mu.Lock()
	defer df.Shutdown.mu.Unlock()
	df.Shutdown.forced = true
}
