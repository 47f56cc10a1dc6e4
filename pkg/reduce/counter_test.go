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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ApollusEHS-OSS/mantis/pkg/window"
)

func testWindow() *window.IntervalWindow {
	start := time.UnixMilli(0)
	return &window.IntervalWindow{Start: start, End: start.Add(10 * time.Second)}
}

func TestCounter_Lifecycle(t *testing.T) {
	c := NewCounter(testWindow())
	assert.Equal(t, StateOpen, c.State())

	assert.NoError(t, c.Increment("the"))
	assert.NoError(t, c.Increment("cat"))
	assert.NoError(t, c.Increment("the"))

	assert.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.State())

	summary, err := c.Emit()
	assert.NoError(t, err)
	assert.Equal(t, StateEmitted, c.State())
	assert.Equal(t, map[string]int64{"the": 2, "cat": 1}, summary.Counts)
	assert.Equal(t, int64(3), summary.TotalTokens())

	assert.NoError(t, c.Discard())
	assert.Equal(t, StateDiscarded, c.State())
}

func TestCounter_IncrementAfterClose(t *testing.T) {
	c := NewCounter(testWindow())
	assert.NoError(t, c.Increment("the"))
	assert.NoError(t, c.Close())

	err := c.Increment("cat")
	assert.Error(t, err)
	var stErr StateTransitionErr
	assert.ErrorAs(t, err, &stErr)
	assert.Equal(t, StateClosed, stErr.State)
	assert.Equal(t, "increment", stErr.Op)
}

func TestCounter_EmitTwice(t *testing.T) {
	c := NewCounter(testWindow())
	assert.NoError(t, c.Close())

	_, err := c.Emit()
	assert.NoError(t, err)
	_, err = c.Emit()
	assert.Error(t, err)
	var stErr StateTransitionErr
	assert.ErrorAs(t, err, &stErr)
	assert.Equal(t, StateEmitted, stErr.State)
}

func TestCounter_IllegalTransitions(t *testing.T) {
	c := NewCounter(testWindow())

	// emit before close
	_, err := c.Emit()
	assert.Error(t, err)

	// discard before emit
	assert.Error(t, c.Discard())

	// double close
	assert.NoError(t, c.Close())
	assert.Error(t, c.Close())
}

func TestCounter_EmitCopiesCounts(t *testing.T) {
	c := NewCounter(testWindow())
	assert.NoError(t, c.Increment("the"))
	assert.NoError(t, c.Close())

	summary, err := c.Emit()
	assert.NoError(t, err)

	// mutating the emitted summary must not reach back into the counter
	summary.Counts["the"] = 100
	assert.NoError(t, c.Discard())
	assert.Equal(t, int64(100), summary.Counts["the"])
}

func TestStateTransitionErr_Message(t *testing.T) {
	err := StateTransitionErr{Window: "0-10000", State: StateEmitted, Op: "increment"}
	assert.Contains(t, err.Error(), "0-10000")
	assert.Contains(t, err.Error(), "increment")
	assert.Contains(t, err.Error(), "Emitted")
}
