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

// Package batch partitions bulk inputs so that no generated statement binds
// more parameters than the backend accepts.
package batch

// MaxBoundParameters is the largest number of bound parameters a single
// statement may carry.
const MaxBoundParameters = 2000

// BatchSize returns fieldCount*recordCount/MaxBoundParameters. Zero means the
// input fits in one statement.
func BatchSize(fieldCount, recordCount int) int {
	return batchSize(fieldCount, recordCount, MaxBoundParameters)
}

func batchSize(fieldCount, recordCount, max int) int {
	if fieldCount <= 0 || recordCount <= 0 || max <= 0 {
		return 0
	}
	return fieldCount * recordCount / max
}

// SegmentSize returns the number of records per statement for a bulk call of
// recordCount records binding paramsPerRecord parameters each. The result
// never lets a split segment exceed max parameters; zero means no split.
func SegmentSize(paramsPerRecord, recordCount, max int) int {
	if max <= 0 || max > MaxBoundParameters {
		max = MaxBoundParameters
	}
	size := batchSize(paramsPerRecord, recordCount, max)
	if size == 0 {
		return 0
	}
	limit := max / paramsPerRecord
	if limit < 1 {
		limit = 1
	}
	if size > limit {
		size = limit
	}
	return size
}

// Slice splits records into segments of segmentSize. A shorter leading
// segment holds the remainder. Segments share the backing array of records.
func Slice[T any](records []T, segmentSize int) [][]T {
	if segmentSize <= 0 || len(records) <= segmentSize {
		return [][]T{records}
	}
	rem := len(records) % segmentSize
	out := make([][]T, 0, len(records)/segmentSize+1)
	if rem > 0 {
		out = append(out, records[:rem:rem])
	}
	for i := rem; i < len(records); i += segmentSize {
		out = append(out, records[i:i+segmentSize:i+segmentSize])
	}
	return out
}

// Chunk splits items into consecutive chunks of at most size items.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) <= size {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for len(items) > size {
		out = append(out, items[:size:size])
		items = items[size:]
	}
	return append(out, items)
}
