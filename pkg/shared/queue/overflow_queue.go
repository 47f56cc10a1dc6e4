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

import "sync"

// OverflowQueue is a thread safe queue with a max size; appending to a full
// queue evicts the oldest element.
type OverflowQueue[T any] struct {
	mu       sync.RWMutex
	elements []T
	maxSize  int
}

func New[T any](size int) *OverflowQueue[T] {
	return &OverflowQueue[T]{
		elements: make([]T, 0, size),
		maxSize:  size,
	}
}

// Append adds an element to the queue.
func (q *OverflowQueue[T]) Append(value T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.elements) >= q.maxSize {
		q.elements = q.elements[1:]
	}
	q.elements = append(q.elements, value)
}

// Items returns a copy of the elements in the queue, oldest first.
func (q *OverflowQueue[T]) Items() []T {
	q.mu.RLock()
	defer q.mu.RUnlock()
	r := make([]T, len(q.elements))
	copy(r, q.elements)
	return r
}

// Length returns the current length of the queue.
func (q *OverflowQueue[T]) Length() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.elements)
}
