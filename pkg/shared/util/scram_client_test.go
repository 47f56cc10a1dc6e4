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

	"github.com/stretchr/testify/assert"
)

func TestXDGSCRAMClient(t *testing.T) {
	client := &XDGSCRAMClient{HashGeneratorFcn: SHA256}
	err := client.Begin("user", "password", "")
	assert.NoError(t, err)

	// the first step of the conversation is the client-first message
	first, err := client.Step("")
	assert.NoError(t, err)
	assert.Contains(t, first, "n=user")
	assert.False(t, client.Done())
}
