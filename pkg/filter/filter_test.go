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

package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ApollusEHS-OSS/mantis/pkg/record"
)

func TestFilter_Accept(t *testing.T) {
	f := New("en")
	assert.Equal(t, "en", f.TargetLanguage())

	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"matching language", `{"lang":"en","text":"the cat sat"}`, true},
		{"case insensitive match", `{"lang":"EN","text":"the cat sat"}`, true},
		{"other language", `{"lang":"fr","text":"le chat"}`, false},
		{"missing lang", `{"text":"the cat sat"}`, false},
		{"missing text", `{"lang":"en"}`, false},
		{"mistyped lang", `{"lang":7,"text":"the cat sat"}`, false},
		{"mistyped text", `{"lang":"en","text":42}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := record.Parse([]byte(tt.payload))
			assert.NoError(t, err)
			assert.Equal(t, tt.want, f.Accept(r))
		})
	}
}

func TestFilter_TargetCaseInsensitive(t *testing.T) {
	f := New("EN")
	r, err := record.Parse([]byte(`{"lang":"en","text":"the cat sat"}`))
	assert.NoError(t, err)
	assert.True(t, f.Accept(r))
}
