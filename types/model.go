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

package types

import "time"

// AuditModel carries the audit columns shared by every persisted record.
// Records keyed by several of their own columns embed it directly.
type AuditModel struct {
	// Active reports whether the record is active.
	Active bool
	// CreatedBy is the user who created the record.
	CreatedBy string
	// CreatedTime is when the record was created.
	CreatedTime time.Time
	// ModifiedBy is the user who last updated the record.
	ModifiedBy string
	// ModifiedTime is when the record was last updated, nil until then.
	ModifiedTime *time.Time
}

// Model is the base of records identified by a database generated integer
// key. The key is stored in the Id column and never written by INSERT or
// UPDATE statements.
type Model struct {
	ID int64 `db:"Id"`
	AuditModel
}

// Stamp fills the creation audit columns.
func (m *AuditModel) Stamp(user string, now time.Time) {
	m.Active = true
	m.CreatedBy = user
	m.CreatedTime = now
}

// Touch fills the modification audit columns.
func (m *AuditModel) Touch(user string, now time.Time) {
	m.ModifiedBy = user
	m.ModifiedTime = &now
}
