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

import (
	"fmt"

	"github.com/ApollusEHS-OSS/mantis/pkg/window"
)

// CounterState is the lifecycle state of a Counter. The only legal path is
// open -> closed -> emitted -> discarded.
type CounterState int

const (
	StateOpen CounterState = iota
	StateClosed
	StateEmitted
	StateDiscarded
)

func (s CounterState) String() string {
	switch s {
	case StateOpen:
		return "Open"
	case StateClosed:
		return "Closed"
	case StateEmitted:
		return "Emitted"
	case StateDiscarded:
		return "Discarded"
	default:
		return "Unknown"
	}
}

// StateTransitionErr reports a counter lifecycle violation: an operation
// applied in a state that does not allow it. It signals a bug in the
// counting loop, callers treat it as fatal.
type StateTransitionErr struct {
	Window string
	State  CounterState
	Op     string
}

func (e StateTransitionErr) Error() string {
	return fmt.Sprintf("counter for window %s cannot %s in state %s", e.Window, e.Op, e.State)
}

// Counter accumulates exact token counts for one interval window. It is
// owned by the counting loop goroutine and does no locking of its own.
type Counter struct {
	window *window.IntervalWindow
	counts map[string]int64
	state  CounterState
}

// NewCounter returns an open counter for the given window.
func NewCounter(iw *window.IntervalWindow) *Counter {
	return &Counter{
		window: iw,
		counts: make(map[string]int64),
		state:  StateOpen,
	}
}

// Window returns the interval window the counter belongs to.
func (c *Counter) Window() *window.IntervalWindow {
	return c.window
}

// State returns the current lifecycle state.
func (c *Counter) State() CounterState {
	return c.state
}

// Increment records one occurrence of the token. Only an open counter
// accepts increments.
func (c *Counter) Increment(token string) error {
	if c.state != StateOpen {
		return StateTransitionErr{Window: c.window.Key(), State: c.state, Op: "increment"}
	}
	c.counts[token]++
	return nil
}

// Close seals the counter against further increments.
func (c *Counter) Close() error {
	if c.state != StateOpen {
		return StateTransitionErr{Window: c.window.Key(), State: c.state, Op: "close"}
	}
	c.state = StateClosed
	return nil
}

// Emit returns the summary of a closed counter. A counter emits exactly
// once; the returned summary owns a copy of the counts.
func (c *Counter) Emit() (*window.Summary, error) {
	if c.state != StateClosed {
		return nil, StateTransitionErr{Window: c.window.Key(), State: c.state, Op: "emit"}
	}
	counts := make(map[string]int64, len(c.counts))
	for token, n := range c.counts {
		counts[token] = n
	}
	c.state = StateEmitted
	return &window.Summary{Window: *c.window, Counts: counts}, nil
}

// Discard releases an emitted counter.
func (c *Counter) Discard() error {
	if c.state != StateEmitted {
		return StateTransitionErr{Window: c.window.Key(), State: c.state, Op: "discard"}
	}
	c.counts = nil
	c.state = StateDiscarded
	return nil
}
