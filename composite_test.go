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

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/rowkit/database"
	"github.com/tomoncle/rowkit/metadata"
	"github.com/tomoncle/rowkit/query"
	"github.com/tomoncle/rowkit/repository"
	"github.com/tomoncle/rowkit/types"
	"github.com/uptrace/bun"
)

type Stock struct {
	types.AuditModel
	Region string
	Code   string
	Qty    int
	Attrs  types.JsonObject
}

var stockKey = query.KeyColumns("Region", "Code")

func newStockService(t *testing.T, m database.ConnectionFactory, opts ...Option) CompositeDataService[Stock] {
	t.Helper()
	opts = append([]Option{WithRegistry(metadata.NewRegistry()), WithLogger(database.NopLogger{})}, opts...)
	svc, err := NewCompositeDataServiceWithFactory[Stock](m, stockKey, opts...)
	require.NoError(t, err)
	return svc
}

func newStock(region, code string, qty int) *Stock {
	s := &Stock{Region: region, Code: code, Qty: qty}
	s.Stamp("tester", created)
	return s
}

func TestCompositeDataService_RoundTrip(t *testing.T) {
	svc := newStockService(t, newManager(t))
	ctx := context.Background()

	s := newStock("eu", "A-1", 5)
	s.Attrs = types.JsonObject{"bin": "B7"}
	res, err := svc.Insert(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, Result{Status: Applied, RowsAffected: 1}, res)

	got, err := svc.GetByKey(ctx, &Stock{Region: "eu", Code: "A-1"})
	require.NoError(t, err)
	assert.Equal(t, 5, got.Qty)
	assert.Equal(t, "B7", got.Attrs["bin"])
	assert.True(t, got.CreatedTime.Equal(created))

	_, err = svc.GetByKey(ctx, &Stock{Region: "us", Code: "A-1"})
	assert.ErrorIs(t, err, ErrNotFound)

	got.Qty = 8
	got.Touch("editor", created.Add(time.Minute))
	res, err = svc.Update(ctx, got)
	require.NoError(t, err)
	assert.True(t, res.Applied())

	again, err := svc.GetByKey(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, 8, again.Qty)
	assert.Equal(t, "editor", again.ModifiedBy)
}

func TestCompositeDataService_Failures(t *testing.T) {
	m := newManager(t)
	svc := newStockService(t, m)
	ctx := context.Background()

	_, err := svc.Insert(ctx, newStock("eu", "A-1", 5))
	require.NoError(t, err)

	_, err = svc.Insert(ctx, newStock("eu", "A-1", 6))
	require.Error(t, err)
	_, kind := database.ClassifySQLError(err)
	assert.Equal(t, database.DuplicateKeyErr, kind)

	missing := newStock("eu", "Z-9", 1)
	_, err = svc.Update(ctx, missing)
	assert.ErrorIs(t, err, ErrOperationFailed)

	res, err := newStockService(t, m, WithTolerateNoRows(true)).Update(ctx, missing)
	require.NoError(t, err)
	assert.Equal(t, NotApplied, res.Status)
}

func TestCompositeDataService_Bulk(t *testing.T) {
	svc := newStockService(t, newManager(t), WithMaxBoundParameters(100))
	ctx := context.Background()

	recs := make([]*Stock, 120)
	for i := range recs {
		recs[i] = newStock("eu", fmt.Sprintf("C-%03d", i), i)
	}
	res, err := svc.InsertMany(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, Result{Status: Applied, RowsAffected: 120}, res)

	for _, r := range recs {
		r.Qty *= 2
	}
	res, err = svc.UpdateMany(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, Result{Status: Applied, RowsAffected: 120}, res)

	for _, i := range []int{0, 59, 119} {
		got, err := svc.GetByKey(ctx, recs[i])
		require.NoError(t, err)
		assert.Equal(t, i*2, got.Qty)
	}

	res, err = svc.InsertMany(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestCompositeDataService_BulkCountsEveryStatement(t *testing.T) {
	svc := newStockService(t, newManager(t))
	ctx := context.Background()

	a, b := newStock("eu", "A", 1), newStock("eu", "B", 1)
	res, err := svc.InsertMany(ctx, []*Stock{a, b, newStock("eu", "C", 1)})
	require.NoError(t, err)
	assert.Equal(t, Result{Status: Applied, RowsAffected: 3}, res)

	ghost := newStock("eu", "GHOST", 9)
	a.Qty, b.Qty = 2, 2
	res, err = svc.UpdateMany(ctx, []*Stock{a, b, ghost})
	require.NoError(t, err)
	assert.Equal(t, Result{Status: Applied, RowsAffected: 2}, res)

	got, err := svc.GetByKey(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Qty, "updates before a missing record are kept")

	a.Qty, b.Qty = 3, 3
	res, err = svc.UpdateMany(ctx, []*Stock{ghost, a, b})
	require.NoError(t, err)
	assert.Equal(t, Result{Status: Applied, RowsAffected: 2}, res)

	res, err = svc.UpdateMany(ctx, []*Stock{ghost})
	require.NoError(t, err)
	assert.Equal(t, Result{Status: NotApplied}, res)
}

func TestCompositeDataService_InvalidKey(t *testing.T) {
	reg := WithRegistry(metadata.NewRegistry())

	_, err := NewCompositeDataServiceWithFactory[Stock](failingFactory{}, query.KeyColumns("Nope"), reg)
	assert.Error(t, err)

	_, err = NewCompositeDataServiceWithFactory[Stock](failingFactory{}, query.KeyColumns(), reg)
	assert.Error(t, err)

	_, err = NewCompositeDataService[Stock](stockKey)
	assert.ErrorIs(t, err, database.ErrNotConnected)
}

// fakeExecutor records commands and answers Execute with the number of
// records in each statement, or with a fixed count when rows is set.
type fakeExecutor[T any] struct {
	repository.Executor[T]
	commands []repository.Command
	rows     *int64
	identity int64
	scalars  []int64
	err      error
}

func (f *fakeExecutor[T]) Execute(_ context.Context, _ repository.Querier, cmd repository.Command) (int64, error) {
	f.commands = append(f.commands, cmd)
	if f.err != nil {
		return 0, f.err
	}
	if f.rows != nil {
		return *f.rows, nil
	}
	return int64(strings.Count(cmd.Text, ";")), nil
}

func (f *fakeExecutor[T]) ExecuteScalar(_ context.Context, _ repository.Querier, cmd repository.Command) (int64, error) {
	f.commands = append(f.commands, cmd)
	if len(f.scalars) > 0 {
		v := f.scalars[0]
		f.scalars = f.scalars[1:]
		return v, f.err
	}
	return f.identity, f.err
}

func fakeCore[T any](t *testing.T, exec repository.Executor[T], opts ...Option) *core[T] {
	t.Helper()
	o := defaultOptions()
	o.logger = database.NopLogger{}
	for _, opt := range opts {
		opt(&o)
	}
	tbl, err := metadata.For[T](metadata.NewRegistry())
	require.NoError(t, err)
	return &core[T]{table: tbl, exec: exec, factory: failingFactory{}, dialect: query.SQLServer, opts: o}
}

type Reading struct {
	Sensor  string
	Taken   time.Time
	Value   float64
	Unit    string
	Quality int
}

func TestCompositeDataService_SegmentsSumRows(t *testing.T) {
	exec := &fakeExecutor[Reading]{}
	svc := &compositeDataServiceImpl[Reading]{core: fakeCore[Reading](t, exec), key: query.KeyColumns("Sensor", "Taken")}

	recs := make([]*Reading, 1000)
	for i := range recs {
		recs[i] = &Reading{Sensor: "s1", Taken: created.Add(time.Duration(i) * time.Second), Value: float64(i), Unit: "C"}
	}
	res, err := svc.InsertManyWithTx(context.Background(), &bun.Tx{}, recs)
	require.NoError(t, err)
	assert.Equal(t, Result{Status: Applied, RowsAffected: 1000}, res)

	// five parameters per record: 500 statements of two records
	require.Len(t, exec.commands, 500)
	for _, cmd := range exec.commands {
		assert.Equal(t, 10, cmd.Params.Len())
		assert.Equal(t, database.DefaultCommandTimeout, cmd.Timeout)
	}
	assert.Contains(t, exec.commands[0].Text, "@Sensor_0")
	assert.Contains(t, exec.commands[0].Text, "@Quality_1")
}

func TestCompositeDataService_NothingApplied(t *testing.T) {
	zero := int64(0)
	exec := &fakeExecutor[Stock]{rows: &zero}
	recs := []*Stock{newStock("eu", "A", 1), newStock("eu", "B", 1)}

	svc := &compositeDataServiceImpl[Stock]{core: fakeCore[Stock](t, exec), key: stockKey}
	res, err := svc.UpdateManyWithTx(context.Background(), &bun.Tx{}, recs)
	require.NoError(t, err)
	assert.Equal(t, Result{Status: NotApplied}, res)

	res, err = svc.InsertManyWithTx(context.Background(), &bun.Tx{}, recs)
	require.NoError(t, err)
	assert.False(t, res.Applied())

	// single-record writes still fail on zero rows
	_, err = svc.UpdateWithTx(context.Background(), &bun.Tx{}, recs[0])
	assert.ErrorIs(t, err, ErrOperationFailed)

	_, err = svc.UpdateManyWithTx(context.Background(), nil, recs)
	assert.Error(t, err)
}

func TestCompositeDataService_SQLiteCountsTotalChanges(t *testing.T) {
	one := int64(1)
	// total_changes() before and after each of the two segments
	exec := &fakeExecutor[Stock]{rows: &one, scalars: []int64{10, 12, 12, 14}}
	// nine parameters per record: 9*4/18 = 2 records per statement
	c := fakeCore[Stock](t, exec, WithMaxBoundParameters(18))
	c.dialect, c.countRows = query.SQLite, true
	svc := &compositeDataServiceImpl[Stock]{core: c, key: stockKey}

	recs := make([]*Stock, 4)
	for i := range recs {
		recs[i] = newStock("eu", fmt.Sprint(i), i)
	}
	res, err := svc.InsertManyWithTx(context.Background(), &bun.Tx{}, recs)
	require.NoError(t, err)
	assert.Equal(t, Result{Status: Applied, RowsAffected: 4}, res)

	require.Len(t, exec.commands, 6)
	assert.Equal(t, "SELECT total_changes()", exec.commands[0].Text)
	assert.Contains(t, exec.commands[1].Text, "INSERT INTO [Stock]")
	assert.Equal(t, "SELECT total_changes()", exec.commands[2].Text)
}

func TestCompositeDataService_BulkStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	exec := &fakeExecutor[Stock]{err: boom}
	svc := &compositeDataServiceImpl[Stock]{core: fakeCore[Stock](t, exec, WithMaxBoundParameters(16)), key: stockKey}

	recs := make([]*Stock, 10)
	for i := range recs {
		recs[i] = newStock("eu", fmt.Sprint(i), i)
	}
	_, err := svc.InsertManyWithTx(context.Background(), &bun.Tx{}, recs)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, exec.commands, 1)
}

func TestDataService_NonPositiveIdentity(t *testing.T) {
	for _, id := range []int64{0, -1} {
		exec := &fakeExecutor[Widget]{identity: id}
		svc := &dataServiceImpl[Widget]{core: fakeCore[Widget](t, exec)}

		w := newWidget("w", 1)
		_, err := svc.InsertWithTx(context.Background(), &bun.Tx{}, w)
		require.ErrorIs(t, err, ErrOperationFailed)
		assert.Zero(t, w.ID)
		require.Len(t, exec.commands, 1)
		assert.True(t, strings.HasSuffix(exec.commands[0].Text, "SELECT SCOPE_IDENTITY()"))
	}
}

func TestDataService_BulkSegments(t *testing.T) {
	exec := &fakeExecutor[Widget]{}
	svc := &dataServiceImpl[Widget]{core: fakeCore[Widget](t, exec, WithMaxBoundParameters(80))}

	recs := make([]*Widget, 25)
	for i := range recs {
		recs[i] = newWidget(fmt.Sprint(i), i)
		recs[i].ID = int64(i + 1)
	}
	require.NoError(t, svc.UpdateManyWithTx(context.Background(), &bun.Tx{}, recs))

	// nine parameters per update: 9*25/80 = 2 records per statement,
	// the odd record first
	require.Len(t, exec.commands, 13)
	assert.Equal(t, 9, exec.commands[0].Params.Len())
	for _, cmd := range exec.commands[1:] {
		assert.Equal(t, 18, cmd.Params.Len())
		assert.LessOrEqual(t, cmd.Params.Len(), 80)
	}
}
