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

package query

import (
	"fmt"
	"reflect"

	"github.com/tomoncle/rowkit/metadata"
)

// KeyPredicate appends the condition identifying rec to frag, without the
// WHERE keyword, and binds the values it compares against. Parameter names
// must be suffixed with offset.
type KeyPredicate func(frag *Fragment, params *Params, tbl *metadata.Table, rec reflect.Value, offset string) error

// PrimaryKey matches a record on its generated key.
func PrimaryKey(frag *Fragment, params *Params, tbl *metadata.Table, rec reflect.Value, offset string) error {
	if !tbl.HasKey() {
		return fmt.Errorf("table %s has no generated key", tbl.Name)
	}
	name := KeyParamName(tbl, tbl.Key.Name, offset)
	frag.WriteString(Ident(tbl.Key.Name)).WriteString(" = @").WriteString(name)
	return params.Bind(name, tbl.Key.Value(rec))
}

// KeyColumns matches a record on the equality of every listed column,
// joined with AND.
func KeyColumns(columns ...string) KeyPredicate {
	return func(frag *Fragment, params *Params, tbl *metadata.Table, rec reflect.Value, offset string) error {
		if len(columns) == 0 {
			return fmt.Errorf("no key columns for table %s", tbl.Name)
		}
		for i, column := range columns {
			f, ok := tbl.Field(column)
			if !ok {
				return fmt.Errorf("key column %q not found in table %s", column, tbl.Name)
			}
			if i > 0 {
				frag.WriteString(" AND ")
			}
			name := KeyParamName(tbl, f.Name, offset)
			frag.WriteString(Ident(f.Name)).WriteString(" = @").WriteString(name)
			if err := params.Bind(name, f.Value(rec)); err != nil {
				return err
			}
		}
		return nil
	}
}

// Where appends " WHERE " and the predicate for rec.
func Where(pred KeyPredicate, frag *Fragment, params *Params, tbl *metadata.Table, rec any, offset string) error {
	rv, err := RecordValue(tbl, rec)
	if err != nil {
		return err
	}
	frag.WriteString("\nWHERE ")
	return pred(frag, params, tbl, rv, offset)
}

// Probe runs pred against a zero record of tbl and reports configuration
// errors such as unknown key columns.
func Probe(pred KeyPredicate, tbl *metadata.Table) error {
	if pred == nil {
		return fmt.Errorf("nil key predicate for table %s", tbl.Name)
	}
	rv := reflect.New(tbl.Type).Elem()
	return pred(NewFragment(), NewParams(), tbl, rv, "")
}
