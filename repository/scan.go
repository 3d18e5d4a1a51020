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

package repository

import (
	"database/sql"
	"reflect"

	"github.com/tomoncle/rowkit/metadata"
)

// newRowScanner maps the result columns onto table fields once per result
// set. Columns without a field are read and dropped.
func newRowScanner(tbl *metadata.Table, rows *sql.Rows) (func(rv reflect.Value) error, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	fields := make([]*metadata.Field, len(columns))
	for i, c := range columns {
		if f, ok := tbl.Field(c); ok {
			fields[i] = f
		}
	}

	return func(rv reflect.Value) error {
		dest := make([]any, len(columns))
		holders := make([]reflect.Value, len(columns))
		for i, f := range fields {
			if f == nil {
				dest[i] = new(any)
				continue
			}
			// scanning into **F lets database/sql store NULL as nil and
			// convert everything else into a fresh F
			holders[i] = reflect.New(reflect.PointerTo(f.Type))
			dest[i] = holders[i].Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		for i, f := range fields {
			if f == nil {
				continue
			}
			ptr := holders[i].Elem()
			if ptr.IsNil() {
				continue
			}
			reflect.Indirect(rv).FieldByIndex(f.Index).Set(ptr.Elem())
		}
		return nil
	}, nil
}
