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

package window

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Summary is the immutable result emitted for a closed window. Counts maps
// each token seen inside the window to the exact number of its occurrences.
type Summary struct {
	Window IntervalWindow   `json:"window"`
	Counts map[string]int64 `json:"counts"`
}

// TotalTokens returns the number of token occurrences in the window.
func (s *Summary) TotalTokens() int64 {
	var n int64
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// Marshal encodes the summary as JSON for the downstream buffer.
func (s *Summary) Marshal() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode window summary, %w", err)
	}
	return b, nil
}

// UnmarshalSummary decodes a summary emitted by the counting loop.
func UnmarshalSummary(payload []byte) (*Summary, error) {
	var s Summary
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("failed to decode window summary, %w", err)
	}
	return &s, nil
}
