package forward

import (
	"fmt"
	"sync"
	"time"
)

// Shutdown records how the forwarder was asked to stop. A graceful stop lets
// the summary batch already read finish its write and ack; a forced one
// abandons it.
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

// Stop initiates a graceful shutdown. The summaries already read are still
// written to the sink and acked.
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

// ForceStop abandons the in-flight summaries and stops as fast as possible.
func (df *DataForward) ForceStop() {
	// a forced stop is still a stop
	df.Stop()
	df.Shutdown.mu.Lock()
	defer df.Shutdown.mu.Unlock()
	df.Shutdown.forced = true
}
