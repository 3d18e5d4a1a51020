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
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/tomoncle/rowkit/metadata"
)

// ErrRecordType is returned when a record does not match the table it is
// built against.
var ErrRecordType = errors.New("record does not match table")

// Ident quotes a table or column name with brackets. Dotted names are
// quoted per part.
func Ident(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "[" + strings.ReplaceAll(p, "]", "]]") + "]"
	}
	return strings.Join(parts, ".")
}

// ParamName joins parts into a parameter name, replacing characters that
// are not valid in one.
func ParamName(parts ...string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r == '_', r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return r
		default:
			return '_'
		}
	}, strings.Join(parts, ""))
	// database/sql requires a leading letter
	if name == "" || !(name[0] >= 'a' && name[0] <= 'z' || name[0] >= 'A' && name[0] <= 'Z') {
		name = "p" + name
	}
	return name
}

// Suffixed appends a batch offset to a parameter name. The separator keeps
// names unique when column names themselves end in digits.
func Suffixed(name, offset string) string {
	if offset == "" {
		return ParamName(name)
	}
	return ParamName(name, "_", offset)
}

// KeyParamName is the name of the parameter binding key column of tbl.
func KeyParamName(tbl *metadata.Table, column, offset string) string {
	return Suffixed(tbl.Name+"_PK_"+column, offset)
}

// RecordValue returns the struct value behind rec, which must be a T or *T
// where T is the type of tbl.
func RecordValue(tbl *metadata.Table, rec any) (reflect.Value, error) {
	rv := reflect.ValueOf(rec)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil %s", ErrRecordType, tbl.Type)
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Type() != tbl.Type {
		return reflect.Value{}, fmt.Errorf("%w: got %T, want %s", ErrRecordType, rec, tbl.Type)
	}
	return rv, nil
}

func ensure(frag *Fragment, params *Params) (*Fragment, *Params) {
	if frag == nil {
		frag = NewFragment()
	}
	if params == nil {
		params = NewParams()
	}
	return frag, params
}

// BuildInsert appends an INSERT of rec into frag and binds one parameter per
// written column, suffixed with offset. Nil frag or params are allocated.
// The statement is not terminated, so an identity clause can follow.
func BuildInsert(tbl *metadata.Table, rec any, offset string, frag *Fragment, params *Params) (*Fragment, *Params, error) {
	rv, err := RecordValue(tbl, rec)
	if err != nil {
		return frag, params, err
	}
	frag, params = ensure(frag, params)
	fields := tbl.DataFields()

	frag.WriteString("INSERT INTO ").WriteString(Ident(tbl.Name)).WriteString(" (")
	for i, f := range fields {
		if i > 0 {
			frag.WriteString(", ")
		}
		frag.WriteString(Ident(f.Name))
	}
	frag.WriteString(")\nVALUES (")
	for i, f := range fields {
		if i > 0 {
			frag.WriteString(", ")
		}
		name := Suffixed(f.Name, offset)
		frag.WriteString("@").WriteString(name)
		if err := params.Bind(name, f.Value(rv)); err != nil {
			return frag, params, fmt.Errorf("column %s of %s: %w", f.Name, tbl.Name, err)
		}
	}
	frag.WriteString(")")
	return frag, params, nil
}

// BuildUpdate appends an UPDATE of rec into frag. Records with a generated
// key update every other column and are matched on the key; records keyed by
// their own columns update every column and are matched by where, which
// must be given for them.
func BuildUpdate(tbl *metadata.Table, rec any, offset string, where KeyPredicate, frag *Fragment, params *Params) (*Fragment, *Params, error) {
	rv, err := RecordValue(tbl, rec)
	if err != nil {
		return frag, params, err
	}
	if where == nil {
		if !tbl.HasKey() {
			return frag, params, fmt.Errorf("table %s has no generated key and no key predicate", tbl.Name)
		}
		where = PrimaryKey
	}
	frag, params = ensure(frag, params)

	frag.WriteString("UPDATE ").WriteString(Ident(tbl.Name)).WriteString("\nSET ")
	for i, f := range tbl.DataFields() {
		if i > 0 {
			frag.WriteString(", ")
		}
		name := Suffixed(f.Name, offset)
		frag.WriteString(Ident(f.Name)).WriteString(" = @").WriteString(name)
		if err := params.Bind(name, f.Value(rv)); err != nil {
			return frag, params, fmt.Errorf("column %s of %s: %w", f.Name, tbl.Name, err)
		}
	}
	frag.WriteString("\nWHERE ")
	if err := where(frag, params, tbl, rv, offset); err != nil {
		return frag, params, err
	}
	return frag, params, nil
}

// CheckParams reports columns of tbl whose parameter names collide once
// characters invalid in a name are replaced.
func CheckParams(tbl *metadata.Table) error {
	seen := make(map[string]string, len(tbl.Fields))
	for _, f := range tbl.Fields {
		name := ParamName(f.Name)
		if other, ok := seen[name]; ok {
			return fmt.Errorf("%w: columns %q and %q of %s both bind as %s",
				ErrParamCollision, other, f.Name, tbl.Name, name)
		}
		seen[name] = f.Name
	}
	return nil
}

// BuildSelect returns a fragment selecting every column of tbl, qualified
// with the table name. Callers append the WHERE clause.
func BuildSelect(tbl *metadata.Table) *Fragment {
	frag := NewFragment()
	table := Ident(tbl.Name)
	frag.WriteString("SELECT ")
	for i, f := range tbl.Fields {
		if i > 0 {
			frag.WriteString(", ")
		}
		frag.WriteString(table).WriteString(".").WriteString(Ident(f.Name))
	}
	frag.WriteString("\nFROM ").WriteString(table)
	return frag
}

// WhereID appends a match on the generated key of tbl.
func WhereID(frag *Fragment, params *Params, tbl *metadata.Table, id int64) error {
	if !tbl.HasKey() {
		return fmt.Errorf("table %s has no generated key", tbl.Name)
	}
	name := KeyParamName(tbl, tbl.Key.Name, "")
	frag.WriteString("\nWHERE ").
		WriteString(Ident(tbl.Name)).WriteString(".").WriteString(Ident(tbl.Key.Name)).
		WriteString(" = @").WriteString(name)
	params.Add(name, id)
	return nil
}

// WhereIDIn appends a match on any of ids, one parameter per id.
func WhereIDIn(frag *Fragment, params *Params, tbl *metadata.Table, ids []int64) error {
	if !tbl.HasKey() {
		return fmt.Errorf("table %s has no generated key", tbl.Name)
	}
	if len(ids) == 0 {
		return errors.New("empty id list")
	}
	frag.WriteString("\nWHERE ").
		WriteString(Ident(tbl.Name)).WriteString(".").WriteString(Ident(tbl.Key.Name)).
		WriteString(" IN (")
	for i, id := range ids {
		if i > 0 {
			frag.WriteString(", ")
		}
		name := KeyParamName(tbl, tbl.Key.Name, strconv.Itoa(i))
		frag.WriteString("@").WriteString(name)
		params.Add(name, id)
	}
	frag.WriteString(")")
	return nil
}
