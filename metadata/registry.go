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
	"fmt"
	"reflect"
	"sync"
)

var defaultRegistry = NewRegistry()

// Registry caches one Table per record type for the lifetime of the
// registry. Tables are never invalidated; record shapes are static.
type Registry struct {
	tables sync.Map // reflect.Type -> *Table
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Default returns the process-wide registry used by the convenience
// constructors.
func Default() *Registry {
	return defaultRegistry
}

// Of returns the table of typ, describing it on first access. Concurrent
// first accesses may both describe the type; only one result is kept.
func (r *Registry) Of(typ reflect.Type) (*Table, error) {
	if typ == nil {
		return nil, fmt.Errorf("%w: nil type", ErrInvalidRecord)
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if t, ok := r.tables.Load(typ); ok {
		return t.(*Table), nil
	}
	t, err := describe(typ)
	if err != nil {
		return nil, err
	}
	actual, _ := r.tables.LoadOrStore(typ, t)
	return actual.(*Table), nil
}

// Register declares the table of a record type explicitly, replacing
// reflective discovery for that type. It fails if the type was already
// described.
func (r *Registry) Register(t *Table) error {
	if t == nil || t.Type == nil {
		return fmt.Errorf("%w: table without type", ErrInvalidRecord)
	}
	typ := t.Type
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
		t.Type = typ
	}
	if _, loaded := r.tables.LoadOrStore(typ, t); loaded {
		return fmt.Errorf("table for %s is already registered", t.Type)
	}
	return nil
}

// For returns the table of T from r.
func For[T any](r *Registry) (*Table, error) {
	return r.Of(reflect.TypeOf((*T)(nil)).Elem())
}
