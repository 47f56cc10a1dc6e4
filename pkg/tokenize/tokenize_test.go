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

package tokenize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"mixed case", "The Cat sat", []string{"the", "cat", "sat"}},
		{"repeated spaces", "the  dog", []string{"the", "dog"}},
		{"leading and trailing spaces", "  the cat ", []string{"the", "cat"}},
		{"embedded whitespace removed", "the\tcat sat\n", []string{"thecat", "sat"}},
		{"empty text", "", []string{}},
		{"only whitespace", " \t \n ", []string{}},
		{"single token", "Mantis", []string{"mantis"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.text))
		})
	}
}

func TestSplit_Stable(t *testing.T) {
	// Splitting the same text twice yields the same tokens.
	first := Split("To be OR not to be")
	second := Split("To be OR not to be")
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"to", "be", "or", "not", "to", "be"}, first)
}
