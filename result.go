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

package rowkit

// Status tells whether a write changed the database.
type Status int

const (
	NotApplied Status = iota
	Applied
)

func (s Status) String() string {
	if s == Applied {
		return "applied"
	}
	return "not_applied"
}

// Result is the outcome of a write.
type Result struct {
	Status       Status
	RowsAffected int64
}

func resultOf(rows int64) Result {
	if rows > 0 {
		return Result{Status: Applied, RowsAffected: rows}
	}
	return Result{Status: NotApplied, RowsAffected: rows}
}

// Applied reports whether at least one row was written.
func (r Result) Applied() bool { return r.Status == Applied }
