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
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrParamCollision is returned when two values of one statement batch map
// to the same parameter name, as columns "a-b" and "a_b" do.
var ErrParamCollision = errors.New("parameter name collision")

// Fragment accumulates SQL text. Several records' statements can be
// appended to one fragment to form a batch.
type Fragment struct {
	sb strings.Builder
}

// NewFragment returns an empty fragment.
func NewFragment() *Fragment {
	return &Fragment{}
}

// WriteString appends s.
func (f *Fragment) WriteString(s string) *Fragment {
	f.sb.WriteString(s)
	return f
}

// End terminates the current statement.
func (f *Fragment) End() *Fragment {
	f.sb.WriteString(";\n")
	return f
}

// Len returns the text length in bytes.
func (f *Fragment) Len() int { return f.sb.Len() }

// String returns the accumulated text.
func (f *Fragment) String() string { return f.sb.String() }

// Params is an ordered bag of named parameters with unique names.
type Params struct {
	args  []sql.NamedArg
	index map[string]int
}

// NewParams returns an empty bag.
func NewParams() *Params {
	return &Params{index: make(map[string]int)}
}

// Add binds value to name. Adding an existing name replaces its value and
// keeps its position.
func (p *Params) Add(name string, value any) {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	if i, ok := p.index[name]; ok {
		p.args[i].Value = value
		return
	}
	p.index[name] = len(p.args)
	p.args = append(p.args, sql.Named(name, value))
}

// Bind binds value to a name that must not be bound yet.
func (p *Params) Bind(name string, value any) error {
	if _, ok := p.Value(name); ok {
		return fmt.Errorf("%w: %s", ErrParamCollision, name)
	}
	p.Add(name, value)
	return nil
}

// Len returns the number of bound parameters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.args)
}

// Value returns the value bound to name.
func (p *Params) Value(name string) (any, bool) {
	if p == nil {
		return nil, false
	}
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.args[i].Value, true
}

// Names returns the parameter names in binding order.
func (p *Params) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, len(p.args))
	for i, a := range p.args {
		names[i] = a.Name
	}
	return names
}

// Args returns the parameters as database/sql arguments.
func (p *Params) Args() []any {
	if p == nil {
		return nil
	}
	args := make([]any, len(p.args))
	for i, a := range p.args {
		args[i] = a
	}
	return args
}
