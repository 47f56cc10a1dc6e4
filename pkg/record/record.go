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

// Package record decodes the raw event payloads flowing in from a source.
package record

import (
	"fmt"

	"github.com/goccy/go-json"
)

const (
	langField = "lang"
	textField = "text"
)

// Record is a single decoded source event. Upstream payloads are free-form
// JSON objects; accessors report field presence explicitly instead of
// guessing at zero values.
type Record map[string]interface{}

// Parse decodes a raw JSON payload into a Record.
func Parse(payload []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("failed to decode record payload, %w", err)
	}
	return r, nil
}

// Lang returns the language tag of the record. ok is false when the field
// is absent or not a string.
func (r Record) Lang() (string, bool) {
	return r.stringField(langField)
}

// Text returns the text body of the record. ok is false when the field
// is absent or not a string.
func (r Record) Text() (string, bool) {
	return r.stringField(textField)
}

func (r Record) stringField(name string) (string, bool) {
	v, ok := r[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
