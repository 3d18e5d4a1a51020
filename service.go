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
	"fmt"
	"reflect"

	"github.com/tomoncle/rowkit/batch"
	"github.com/tomoncle/rowkit/database"
	"github.com/tomoncle/rowkit/metadata"
	"github.com/tomoncle/rowkit/query"
	"github.com/uptrace/bun"
)

// DataService reads and writes records identified by a database generated
// integer key stored in the Id column.
type DataService[T any] interface {
	// GetByID returns the record with the given key, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*T, error)

	// GetByIDs returns the records with the given keys in no particular
	// order. Missing keys are skipped.
	GetByIDs(ctx context.Context, ids ...int64) ([]*T, error)

	// Insert writes rec in its own transaction, stores the generated key in
	// rec and returns it.
	Insert(ctx context.Context, rec *T) (int64, error)

	// InsertWithTx is Insert inside the caller's transaction.
	InsertWithTx(ctx context.Context, tx *bun.Tx, rec *T) (int64, error)

	// Update writes every non-key column of rec, matched by its key.
	Update(ctx context.Context, rec *T) (Result, error)

	// UpdateWithTx is Update inside the caller's transaction.
	UpdateWithTx(ctx context.Context, tx *bun.Tx, rec *T) (Result, error)

	// InsertMany writes recs in one transaction, batched so that no
	// statement exceeds the bound parameter ceiling. Generated keys are not
	// read back.
	InsertMany(ctx context.Context, recs []*T) error

	InsertManyWithTx(ctx context.Context, tx *bun.Tx, recs []*T) error

	// UpdateMany updates recs in one transaction, batched like InsertMany.
	UpdateMany(ctx context.Context, recs []*T) error

	UpdateManyWithTx(ctx context.Context, tx *bun.Tx, recs []*T) error
}

type dataServiceImpl[T any] struct {
	*core[T]
}

// NewDataServiceWithFactory returns a DataService for T drawing connections
// from factory. T must map to a table with an Id column.
func NewDataServiceWithFactory[T any](factory database.ConnectionFactory, opts ...Option) (DataService[T], error) {
	c, err := newCore[T](factory, opts)
	if err != nil {
		return nil, err
	}
	if !c.table.HasKey() {
		return nil, fmt.Errorf("%w: table %s has no %s column", metadata.ErrInvalidRecord, c.table.Name, metadata.KeyColumn)
	}
	return &dataServiceImpl[T]{core: c}, nil
}

// NewDataService returns a DataService bound to the database initialized by
// database.InitDB and configured by its service settings.
func NewDataService[T any](opts ...Option) (DataService[T], error) {
	m, cfgOpts, err := globalFactory()
	if err != nil {
		return nil, err
	}
	return NewDataServiceWithFactory[T](m, append(cfgOpts, opts...)...)
}

func globalFactory() (database.AbstractDatabaseManager, []Option, error) {
	m := database.GetDatabaseManager()
	if m == nil {
		return nil, nil, fmt.Errorf("%w: call database.InitDB first", database.ErrNotConnected)
	}
	var opts []Option
	if cfg := database.GetConfig(); cfg != nil {
		opts = append(opts, WithServiceConfig(cfg.Service))
	}
	return m, opts, nil
}

func (s *dataServiceImpl[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	frag, params := query.BuildSelect(s.table), query.NewParams()
	if err := query.WhereID(frag, params, s.table, id); err != nil {
		return nil, err
	}
	var rec *T
	err := s.withConn(ctx, func(conn bun.Conn) error {
		var err error
		rec, err = s.exec.QuerySingle(ctx, conn, s.command(frag, params))
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *dataServiceImpl[T]) GetByIDs(ctx context.Context, ids ...int64) ([]*T, error) {
	ids = distinct(ids)
	if len(ids) == 0 {
		return []*T{}, nil
	}
	out := make([]*T, 0, len(ids))
	err := s.withConn(ctx, func(conn bun.Conn) error {
		for _, chunk := range batch.Chunk(ids, s.opts.maxParams) {
			frag, params := query.BuildSelect(s.table), query.NewParams()
			if err := query.WhereIDIn(frag, params, s.table, chunk); err != nil {
				return err
			}
			recs, err := s.exec.Query(ctx, conn, s.command(frag, params))
			if err != nil {
				return err
			}
			out = append(out, recs...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func distinct(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *dataServiceImpl[T]) Insert(ctx context.Context, rec *T) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *bun.Tx) error {
		var err error
		id, err = s.InsertWithTx(ctx, tx, rec)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *dataServiceImpl[T]) InsertWithTx(ctx context.Context, tx *bun.Tx, rec *T) (int64, error) {
	if tx == nil {
		return 0, errNilTx
	}
	frag, params, err := query.BuildInsert(s.table, rec, "", nil, nil)
	if err != nil {
		return 0, err
	}
	if err := s.dialect.AppendIdentity(frag, s.table); err != nil {
		return 0, err
	}
	id, err := s.exec.ExecuteScalar(ctx, tx, s.command(frag, params))
	if err != nil {
		s.logError("Insert", err)
		return 0, err
	}
	if id <= 0 {
		return 0, &OperationFailedError{Query: frag.String(), Input: rec}
	}
	if err := s.table.Key.Set(reflect.ValueOf(rec), id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *dataServiceImpl[T]) Update(ctx context.Context, rec *T) (Result, error) {
	var res Result
	err := s.withTx(ctx, func(tx *bun.Tx) error {
		var err error
		res, err = s.UpdateWithTx(ctx, tx, rec)
		return err
	})
	return res, err
}

func (s *dataServiceImpl[T]) UpdateWithTx(ctx context.Context, tx *bun.Tx, rec *T) (Result, error) {
	if tx == nil {
		return Result{}, errNilTx
	}
	frag, params, err := query.BuildUpdate(s.table, rec, "", query.PrimaryKey, nil, nil)
	if err != nil {
		return Result{}, err
	}
	n, err := s.exec.Execute(ctx, tx, s.command(frag, params))
	if err != nil {
		s.logError("Update", err)
		return Result{}, err
	}
	return s.checkApplied(resultOf(n), frag.String(), rec)
}

func (s *dataServiceImpl[T]) InsertMany(ctx context.Context, recs []*T) error {
	if len(recs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *bun.Tx) error {
		return s.InsertManyWithTx(ctx, tx, recs)
	})
}

func (s *dataServiceImpl[T]) InsertManyWithTx(ctx context.Context, tx *bun.Tx, recs []*T) error {
	_, err := s.bulk(ctx, tx, "insert", recs, s.buildInsert)
	return err
}

func (s *dataServiceImpl[T]) UpdateMany(ctx context.Context, recs []*T) error {
	if len(recs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *bun.Tx) error {
		return s.UpdateManyWithTx(ctx, tx, recs)
	})
}

func (s *dataServiceImpl[T]) UpdateManyWithTx(ctx context.Context, tx *bun.Tx, recs []*T) error {
	_, err := s.bulk(ctx, tx, "update", recs, s.buildUpdate)
	return err
}

func (s *dataServiceImpl[T]) buildInsert(rec *T, offset string, frag *query.Fragment, params *query.Params) error {
	_, _, err := query.BuildInsert(s.table, rec, offset, frag, params)
	return err
}

func (s *dataServiceImpl[T]) buildUpdate(rec *T, offset string, frag *query.Fragment, params *query.Params) error {
	_, _, err := query.BuildUpdate(s.table, rec, offset, query.PrimaryKey, frag, params)
	return err
}
