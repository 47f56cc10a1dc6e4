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

// Package fixed implements hopping windows of a fixed length. Windows are
// aligned to the epoch, so the window for an event time t is
// [t - t mod length, t - t mod length + length). Hopping windows never
// overlap and every event time belongs to exactly one window.
package fixed

import (
	"container/list"
	"sync"
	"time"

	"github.com/ApollusEHS-OSS/mantis/pkg/window"
)

// Fixed tracks the currently open windows. The entries are kept in
// ascending order of start time, the earliest window at the front of the
// list. Because arrival times are close to monotonic, an assignment almost
// always lands on the window at the back, so the amortized cost of the
// list walk is close to O(1).
type Fixed struct {
	// Length is the temporal length of a window.
	Length time.Duration
	// entries is the list of open windows, earliest at the front.
	entries *list.List
	// closedMark is the largest end time among the windows closed so far.
	// An assignment into a window ending at or before this mark is late.
	closedMark time.Time
	lock       sync.RWMutex
}

var _ window.Windower = (*Fixed)(nil)

// NewWindower returns a windower producing aligned windows of the given
// length.
func NewWindower(length time.Duration) *Fixed {
	return &Fixed{
		Length:  length,
		entries: list.New(),
	}
}

// AssignWindow maps an event time onto its window and tracks the window if
// it is new. ok is false when the window has already been closed.
func (f *Fixed) AssignWindow(eventTime time.Time) (*window.IntervalWindow, bool) {
	// Truncate floors the event time to a multiple of the length, which
	// keeps the assignment left inclusive and right exclusive: an event
	// exactly on a boundary falls into the window starting there.
	start := eventTime.Truncate(f.Length)
	iw := &window.IntervalWindow{Start: start, End: start.Add(f.Length)}

	f.lock.Lock()
	defer f.lock.Unlock()

	if !iw.End.After(f.closedMark) {
		return iw, false
	}
	return f.insert(iw), true
}

// insert returns the tracked window equal to iw, adding iw to the entries
// when no equal window is tracked yet. Callers must hold the write lock.
func (f *Fixed) insert(iw *window.IntervalWindow) *window.IntervalWindow {
	if f.entries.Len() == 0 {
		f.entries.PushFront(iw)
		return iw
	}

	earliest := f.entries.Front().Value.(*window.IntervalWindow)
	recent := f.entries.Back().Value.(*window.IntervalWindow)

	if !earliest.Start.Before(iw.End) {
		// earlier than everything tracked
		f.entries.PushFront(iw)
		return iw
	}
	if !recent.End.After(iw.Start) {
		// later than everything tracked
		f.entries.PushBack(iw)
		return iw
	}

	// somewhere in between; windows are aligned and equal length, so an
	// overlapping entry is the same interval
	for e := f.entries.Back(); e != nil; e = e.Prev() {
		win := e.Value.(*window.IntervalWindow)
		if win.Start.Equal(iw.Start) {
			return win
		}
		if win.Start.Before(iw.Start) {
			f.entries.InsertAfter(iw, e)
			return iw
		}
	}
	f.entries.PushFront(iw)
	return iw
}

// CloseWindows removes and returns every tracked window whose end has been
// reached at the given time. A window [s, e) closes once at >= e, since no
// on-time event can belong to it anymore.
func (f *Fixed) CloseWindows(at time.Time) []*window.IntervalWindow {
	f.lock.Lock()
	defer f.lock.Unlock()

	closed := make([]*window.IntervalWindow, 0)
	for e := f.entries.Front(); e != nil; {
		win := e.Value.(*window.IntervalWindow)
		if win.End.After(at) {
			// entries are ordered, nothing further can be closed
			break
		}
		next := e.Next()
		f.entries.Remove(e)
		f.markClosed(win)
		closed = append(closed, win)
		e = next
	}
	return closed
}

// CloseAllWindows removes and returns every tracked window. Used to flush
// open windows when the stream ends.
func (f *Fixed) CloseAllWindows() []*window.IntervalWindow {
	f.lock.Lock()
	defer f.lock.Unlock()

	closed := make([]*window.IntervalWindow, 0, f.entries.Len())
	for e := f.entries.Front(); e != nil; {
		win := e.Value.(*window.IntervalWindow)
		next := e.Next()
		f.entries.Remove(e)
		f.markClosed(win)
		closed = append(closed, win)
		e = next
	}
	return closed
}

// OldestWindowEndTime returns the end time of the oldest tracked window,
// or the zero time when nothing is tracked.
func (f *Fixed) OldestWindowEndTime() time.Time {
	f.lock.RLock()
	defer f.lock.RUnlock()

	if e := f.entries.Front(); e != nil {
		return e.Value.(*window.IntervalWindow).End
	}
	return time.Time{}
}

func (f *Fixed) markClosed(iw *window.IntervalWindow) {
	if iw.End.After(f.closedMark) {
		f.closedMark = iw.End
	}
}
