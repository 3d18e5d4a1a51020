/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func flatten(segments [][]int) []int {
	var out []int
	for _, s := range segments {
		out = append(out, s...)
	}
	return out
}

func TestBatchSize(t *testing.T) {
	assert.Equal(t, 2, BatchSize(5, 1000))
	assert.Equal(t, 0, BatchSize(5, 399))
	assert.Equal(t, 1, BatchSize(5, 400))
	assert.Equal(t, 0, BatchSize(0, 1000))
	assert.Equal(t, 0, BatchSize(5, 0))
}

func TestSegmentSize(t *testing.T) {
	t.Run("five fields by a thousand records", func(t *testing.T) {
		assert.Equal(t, 2, SegmentSize(5, 1000, MaxBoundParameters))
	})

	t.Run("clamped to the parameter ceiling", func(t *testing.T) {
		// 50 params x 10000 records gives a batch size of 250 records,
		// which would bind 12500 parameters.
		size := SegmentSize(50, 10000, MaxBoundParameters)
		assert.Equal(t, 40, size)
		assert.LessOrEqual(t, size*50, MaxBoundParameters)
	})

	t.Run("wide records", func(t *testing.T) {
		assert.Equal(t, 1, SegmentSize(3000, 2, MaxBoundParameters))
	})

	t.Run("lower ceiling", func(t *testing.T) {
		assert.Equal(t, 10, SegmentSize(10, 1000, 100))
	})

	t.Run("ceiling above the backend maximum", func(t *testing.T) {
		assert.Equal(t, SegmentSize(5, 1000, MaxBoundParameters), SegmentSize(5, 1000, 5000))
	})

	t.Run("small input is not split", func(t *testing.T) {
		assert.Equal(t, 0, SegmentSize(5, 10, MaxBoundParameters))
	})
}

func TestSlice(t *testing.T) {
	t.Run("completeness", func(t *testing.T) {
		for _, tc := range []struct{ n, size int }{
			{0, 0}, {1, 0}, {7, 0}, {7, 3}, {9, 3}, {10, 3}, {3, 5}, {1000, 2}, {1001, 7},
		} {
			records := seq(tc.n)
			segments := Slice(records, tc.size)
			flat := flatten(segments)
			if tc.n == 0 {
				assert.Empty(t, flat)
				continue
			}
			assert.Equal(t, records, flat, "n=%d size=%d", tc.n, tc.size)
		}
	})

	t.Run("bound", func(t *testing.T) {
		for _, s := range Slice(seq(1001), 7) {
			assert.LessOrEqual(t, len(s), 7)
			assert.NotEmpty(t, s)
		}
	})

	t.Run("zero segment size keeps one segment", func(t *testing.T) {
		segments := Slice(seq(50), 0)
		require.Len(t, segments, 1)
		assert.Len(t, segments[0], 50)
	})

	t.Run("leading remainder", func(t *testing.T) {
		segments := Slice(seq(10), 3)
		require.Len(t, segments, 4)
		assert.Equal(t, []int{0}, segments[0])
		assert.Equal(t, []int{1, 2, 3}, segments[1])
		assert.Equal(t, []int{7, 8, 9}, segments[3])
	})

	t.Run("segments share the input", func(t *testing.T) {
		records := seq(6)
		segments := Slice(records, 2)
		segments[1][0] = 42
		assert.Equal(t, 42, records[2])
	})

	t.Run("five fields by a thousand records", func(t *testing.T) {
		segments := Slice(seq(1000), SegmentSize(5, 1000, MaxBoundParameters))
		assert.Len(t, segments, 500)
		for _, s := range segments {
			assert.Len(t, s, 2)
			assert.Equal(t, 10, len(s)*5)
		}
	})
}

func TestChunk(t *testing.T) {
	assert.Nil(t, Chunk([]int{}, 3))

	chunks := Chunk(seq(7), 3)
	require.Len(t, chunks, 3)
	assert.Equal(t, []int{6}, chunks[2])
	assert.Equal(t, seq(7), flatten(chunks))

	assert.Len(t, Chunk(seq(4500), MaxBoundParameters), 3)
	assert.Len(t, Chunk(seq(4), 0), 1)
}
