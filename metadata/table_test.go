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
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/rowkit/types"
)

type gadget struct {
	types.Model
	Name    string
	Weight  float64 `db:"WeightKg"`
	secret  string
	Ignored string `db:"-"`
}

type renamedGadget struct {
	types.AuditModel
	Code string
}

func (renamedGadget) TableName() string { return "Gadgets" }

func TestRegistry_Of(t *testing.T) {
	reg := NewRegistry()

	t.Run("flattens embedded models in declaration order", func(t *testing.T) {
		tbl, err := For[gadget](reg)
		require.NoError(t, err)

		assert.Equal(t, "gadget", tbl.Name)
		assert.Equal(t, []string{
			"Id", "Active", "CreatedBy", "CreatedTime", "ModifiedBy", "ModifiedTime", "Name", "WeightKg",
		}, Columns(tbl.Fields))
		require.True(t, tbl.HasKey())
		assert.Equal(t, "ID", tbl.Key.GoName)
		assert.NotContains(t, Columns(tbl.DataFields()), KeyColumn)
		assert.Len(t, tbl.DataFields(), len(tbl.Fields)-1)
	})

	t.Run("honours TableName and has no key without Id", func(t *testing.T) {
		tbl, err := For[renamedGadget](reg)
		require.NoError(t, err)

		assert.Equal(t, "Gadgets", tbl.Name)
		assert.False(t, tbl.HasKey())
		assert.Equal(t, tbl.Fields, tbl.DataFields())
	})

	t.Run("returns the cached table", func(t *testing.T) {
		first, err := For[gadget](reg)
		require.NoError(t, err)
		second, err := reg.Of(reflect.TypeOf(&gadget{}))
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("rejects non struct types", func(t *testing.T) {
		_, err := For[int](reg)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})
}

func TestRegistry_ConcurrentFirstAccess(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	tables := make([]*Table, 16)
	for i := range tables {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tbl, err := For[gadget](reg)
			if err == nil {
				tables[i] = tbl
			}
		}(i)
	}
	wg.Wait()

	for _, tbl := range tables {
		assert.Same(t, tables[0], tbl)
	}
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	typ := reflect.TypeOf(renamedGadget{})

	code, ok := reflect.TypeOf(renamedGadget{}).FieldByName("Code")
	require.True(t, ok)
	declared, err := NewTable("gadget_codes", typ, []*Field{
		{Name: "Code", GoName: "Code", Index: code.Index, Type: code.Type},
	})
	require.NoError(t, err)

	require.NoError(t, reg.Register(declared))
	tbl, err := For[renamedGadget](reg)
	require.NoError(t, err)
	assert.Same(t, declared, tbl)

	assert.Error(t, reg.Register(declared))
}

func TestNewTable_DuplicateColumns(t *testing.T) {
	_, err := NewTable("t", reflect.TypeOf(gadget{}), []*Field{
		{Name: "A", Index: []int{1}},
		{Name: "A", Index: []int{2}},
	})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestField_Accessors(t *testing.T) {
	tbl, err := For[gadget](NewRegistry())
	require.NoError(t, err)

	g := &gadget{Name: "bolt"}
	rv := reflect.ValueOf(g)

	name, ok := tbl.Field("name")
	require.True(t, ok)
	assert.Equal(t, "bolt", name.Value(rv))

	require.NoError(t, tbl.Key.Set(rv, int32(42)))
	assert.Equal(t, int64(42), g.ID)

	weight, ok := tbl.Field("WeightKg")
	require.True(t, ok)
	*(weight.Addr(rv).(*float64)) = 1.5
	assert.Equal(t, 1.5, g.Weight)

	assert.Error(t, name.Set(rv, 12.5))
}
