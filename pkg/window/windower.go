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

// Package window defines interval windows and the windower contract used by
// the counting loop to bucket tokens by arrival time.
package window

import (
	"fmt"
	"time"
)

// IntervalWindow is a half-open interval [Start, End). An event time t
// belongs to the window iff Start <= t < End.
type IntervalWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// StartTime returns the inclusive start of the window.
func (iw *IntervalWindow) StartTime() time.Time {
	return iw.Start
}

// EndTime returns the exclusive end of the window.
func (iw *IntervalWindow) EndTime() time.Time {
	return iw.End
}

// Contains returns whether t falls inside the window.
func (iw *IntervalWindow) Contains(t time.Time) bool {
	return !t.Before(iw.Start) && t.Before(iw.End)
}

// Key returns a stable identifier for the window, unique per interval.
func (iw *IntervalWindow) Key() string {
	return fmt.Sprintf("%d-%d", iw.Start.UnixMilli(), iw.End.UnixMilli())
}

func (iw *IntervalWindow) String() string {
	return fmt.Sprintf("[%s, %s)", iw.Start.Format(time.RFC3339), iw.End.Format(time.RFC3339))
}

// Windower tracks the set of windows that are still accepting tokens.
// Implementations do their own locking; the counting loop is the only caller.
type Windower interface {
	// AssignWindow returns the tracked window for the given event time,
	// creating and tracking it if it does not exist yet. ok is false when
	// the window the event time falls into has already been closed, which
	// makes the event late.
	AssignWindow(eventTime time.Time) (iw *IntervalWindow, ok bool)
	// CloseWindows removes and returns, in start-time order, every tracked
	// window whose end is not after at.
	CloseWindows(at time.Time) []*IntervalWindow
	// CloseAllWindows removes and returns every tracked window regardless
	// of the clock. It is used to flush on end of stream.
	CloseAllWindows() []*IntervalWindow
	// OldestWindowEndTime returns the end time of the oldest tracked
	// window, or the zero time when nothing is tracked.
	OldestWindowEndTime() time.Time
}
