// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import "math/rand/v2"

// ShuffledCopy returns a pseudo-randomly permuted copy of items, leaving
// the input slice untouched. Used to turn a DNS alias's ordered set of
// candidate endpoints into a fair retry order.
func ShuffledCopy[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// RoundRobinSlice cycles through a fixed set of items one at a time,
// wrapping around, without reshuffling.
type RoundRobinSlice[T any] struct {
	items []T
	next  int
}

func NewRoundRobinSlice[T any](items []T) *RoundRobinSlice[T] {
	return &RoundRobinSlice[T]{items: items}
}

// Next returns the next item in rotation. Panics if the slice is empty.
func (r *RoundRobinSlice[T]) Next() T {
	v := r.items[r.next]
	r.next = (r.next + 1) % len(r.items)
	return v
}

// Len returns the number of items being cycled through.
func (r *RoundRobinSlice[T]) Len() int {
	return len(r.items)
}
