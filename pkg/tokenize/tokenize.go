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

// Package tokenize splits text bodies into the tokens the pipeline counts.
package tokenize

import (
	"strings"
	"unicode"
)

// Split breaks a text body into lowercase tokens. The text is split on
// single spaces, any whitespace left inside a piece is removed, and pieces
// that end up empty are dropped. Split has no state; the same text always
// yields the same tokens.
func Split(text string) []string {
	pieces := strings.Split(text, " ")
	tokens := make([]string, 0, len(pieces))
	for _, p := range pieces {
		p = strings.Map(dropSpace, p)
		if p == "" {
			continue
		}
		tokens = append(tokens, strings.ToLower(p))
	}
	return tokens
}

func dropSpace(r rune) rune {
	if unicode.IsSpace(r) {
		return -1
	}
	return r
}
