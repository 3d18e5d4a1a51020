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

package metadata

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// KeyColumn is the column holding the database generated key of
// single-key records.
const KeyColumn = "Id"

// ErrInvalidRecord is returned when a type cannot be mapped to a table.
var ErrInvalidRecord = errors.New("invalid record type")

// TableNamer overrides the table name derived from the record type name.
type TableNamer interface {
	TableName() string
}

var timeType = reflect.TypeOf(time.Time{})

// Field describes one persisted column of a record type.
type Field struct {
	// Name is the column name.
	Name string
	// GoName is the struct field name.
	GoName string
	// Index is the field index path, usable with reflect.Value.FieldByIndex.
	Index []int
	// IsKey marks the generated key column.
	IsKey bool
	Type  reflect.Type
}

// Value returns the field value of the struct held by rv.
func (f *Field) Value(rv reflect.Value) any {
	return reflect.Indirect(rv).FieldByIndex(f.Index).Interface()
}

// Addr returns a pointer to the field, suitable as a Scan destination.
func (f *Field) Addr(rv reflect.Value) any {
	return reflect.Indirect(rv).FieldByIndex(f.Index).Addr().Interface()
}

// Set assigns v to the field, converting between numeric kinds.
func (f *Field) Set(rv reflect.Value, v any) error {
	dst := reflect.Indirect(rv).FieldByIndex(f.Index)
	src := reflect.ValueOf(v)
	switch {
	case !src.IsValid():
		dst.Set(reflect.Zero(dst.Type()))
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
	case src.Type().ConvertibleTo(dst.Type()):
		dst.Set(src.Convert(dst.Type()))
	default:
		return fmt.Errorf("cannot assign %s to field %s of type %s", src.Type(), f.GoName, dst.Type())
	}
	return nil
}

// Table is the cached description of a record type.
type Table struct {
	Name   string
	Type   reflect.Type
	Fields []*Field
	// Key is the generated key field, nil for records keyed by their own
	// columns.
	Key *Field

	byName map[string]*Field
	byFold map[string]*Field
}

// NewTable builds a table from an explicit, ordered field list. The key is
// the field named KeyColumn, if any.
func NewTable(name string, typ reflect.Type, fields []*Field) (*Table, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty table name for %s", ErrInvalidRecord, typ)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s has no persisted fields", ErrInvalidRecord, typ)
	}
	t := &Table{
		Name:   name,
		Type:   typ,
		Fields: fields,
		byName: make(map[string]*Field, len(fields)),
		byFold: make(map[string]*Field, len(fields)),
	}
	for _, f := range fields {
		if _, dup := t.byName[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q in %s", ErrInvalidRecord, f.Name, typ)
		}
		t.byName[f.Name] = f
		t.byFold[strings.ToLower(f.Name)] = f
		if f.Name == KeyColumn {
			f.IsKey = true
			t.Key = f
		}
	}
	return t, nil
}

// HasKey reports whether the table has a generated key column.
func (t *Table) HasKey() bool { return t.Key != nil }

// Field looks up a column by name, falling back to a case-insensitive match.
func (t *Table) Field(column string) (*Field, bool) {
	if f, ok := t.byName[column]; ok {
		return f, true
	}
	f, ok := t.byFold[strings.ToLower(column)]
	return f, ok
}

// DataFields returns the fields written by INSERT and UPDATE statements,
// that is every field except the generated key.
func (t *Table) DataFields() []*Field {
	if t.Key == nil {
		return t.Fields
	}
	fields := make([]*Field, 0, len(t.Fields)-1)
	for _, f := range t.Fields {
		if !f.IsKey {
			fields = append(fields, f)
		}
	}
	return fields
}

// Columns returns the column names of fields in order.
func Columns(fields []*Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func describe(typ reflect.Type) (*Table, error) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrInvalidRecord, typ)
	}
	name := typ.Name()
	if namer, ok := reflect.New(typ).Interface().(TableNamer); ok {
		name = namer.TableName()
	}
	var fields []*Field
	collectFields(typ, nil, &fields)
	return NewTable(name, typ, fields)
}

func collectFields(t reflect.Type, parent []int, out *[]*Field) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.TrimSpace(f.Tag.Get("db"))
		if tag == "-" {
			continue
		}
		index := make([]int, len(parent)+1)
		copy(index, parent)
		index[len(parent)] = i

		if f.Anonymous && tag == "" && f.Type != timeType {
			if f.Type.Kind() == reflect.Struct {
				collectFields(f.Type, index, out)
			}
			// embedded pointers are not flattened
			continue
		}
		if !f.IsExported() {
			continue
		}
		column := f.Name
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			column = name
		}
		*out = append(*out, &Field{
			Name:   column,
			GoName: f.Name,
			Index:  index,
			Type:   f.Type,
		})
	}
}
