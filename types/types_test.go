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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJsonObject(t *testing.T) {
	v, err := JsonObject{"a": 1}.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	v, err = JsonObject(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	var obj JsonObject
	require.NoError(t, obj.Scan([]byte(`{"k":"v"}`)))
	assert.Equal(t, "v", obj["k"])

	require.NoError(t, obj.Scan(nil))
	assert.Empty(t, obj)

	assert.Error(t, obj.Scan(42))
}

func TestJsonArray(t *testing.T) {
	var arr JsonArray
	require.NoError(t, arr.Scan(`[{"n":1},{"n":2}]`))
	require.Len(t, arr, 2)
	assert.Equal(t, float64(2), arr[1]["n"])

	v, err := arr.Value()
	require.NoError(t, err)
	assert.Equal(t, `[{"n":1},{"n":2}]`, v)
}

func TestAuditModel(t *testing.T) {
	var m Model
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m.Stamp("ann", now)
	assert.True(t, m.Active)
	assert.Equal(t, "ann", m.CreatedBy)
	assert.Nil(t, m.ModifiedTime)

	m.Touch("bob", now.Add(time.Hour))
	require.NotNil(t, m.ModifiedTime)
	assert.Equal(t, "bob", m.ModifiedBy)
	assert.True(t, m.ModifiedTime.Equal(now.Add(time.Hour)))
}
