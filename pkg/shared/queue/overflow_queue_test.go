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

package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverflowQueue(t *testing.T) {
	q := New[int](3)
	assert.Equal(t, 0, q.Length())

	q.Append(1)
	q.Append(2)
	q.Append(3)
	assert.Equal(t, []int{1, 2, 3}, q.Items())

	// oldest element overflows
	q.Append(4)
	assert.Equal(t, 3, q.Length())
	assert.Equal(t, []int{2, 3, 4}, q.Items())
}

func TestOverflowQueueConcurrent(t *testing.T) {
	q := New[int](100)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.Append(n*50 + j)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, q.Length())
}
