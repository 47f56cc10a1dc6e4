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

// Package filter decides which records enter the counting pipeline.
package filter

import (
	"strings"

	"github.com/ApollusEHS-OSS/mantis/pkg/record"
)

// Filter admits records whose language tag matches a target language.
type Filter struct {
	targetLanguage string
}

// New returns a Filter for the given target language.
func New(targetLanguage string) *Filter {
	return &Filter{targetLanguage: targetLanguage}
}

// TargetLanguage returns the language the filter admits.
func (f *Filter) TargetLanguage() string {
	return f.targetLanguage
}

// Accept returns true only when the record carries a language tag equal to
// the target (compared case-insensitively) and a text body. A record missing
// either field is rejected without an error.
func (f *Filter) Accept(r record.Record) bool {
	lang, ok := r.Lang()
	if !ok || !strings.EqualFold(lang, f.targetLanguage) {
		return false
	}
	_, ok = r.Text()
	return ok
}
