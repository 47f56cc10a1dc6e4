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

package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLookupEnvStringOr(t *testing.T) {
	assert.Equal(t, "default", LookupEnvStringOr("FAKE_ENV_42", "default"))
	t.Setenv("FAKE_ENV_42", "hello")
	assert.Equal(t, "hello", LookupEnvStringOr("FAKE_ENV_42", "default"))
}

func TestLookupEnvIntOr(t *testing.T) {
	assert.Equal(t, 5, LookupEnvIntOr("FAKE_INT_ENV", 5))
	t.Setenv("FAKE_INT_ENV", "10")
	assert.Equal(t, 10, LookupEnvIntOr("FAKE_INT_ENV", 5))
	t.Setenv("FAKE_INT_ENV", "not-a-number")
	assert.Panics(t, func() { LookupEnvIntOr("FAKE_INT_ENV", 5) })
}

func TestLookupEnvBoolOr(t *testing.T) {
	assert.False(t, LookupEnvBoolOr("FAKE_BOOL_ENV", false))
	t.Setenv("FAKE_BOOL_ENV", "true")
	assert.True(t, LookupEnvBoolOr("FAKE_BOOL_ENV", false))
}

func TestLookupEnvDurationOr(t *testing.T) {
	assert.Equal(t, 10*time.Second, LookupEnvDurationOr("FAKE_DUR_ENV", 10*time.Second))
	t.Setenv("FAKE_DUR_ENV", "250ms")
	assert.Equal(t, 250*time.Millisecond, LookupEnvDurationOr("FAKE_DUR_ENV", 10*time.Second))
	t.Setenv("FAKE_DUR_ENV", "bogus")
	assert.Panics(t, func() { LookupEnvDurationOr("FAKE_DUR_ENV", 10*time.Second) })
}
