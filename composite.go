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

	"github.com/tomoncle/rowkit/database"
	"github.com/tomoncle/rowkit/query"
	"github.com/uptrace/bun"
)

// CompositeDataService reads and writes records identified by several of
// their own columns. The key predicate decides which columns match.
type CompositeDataService[T any] interface {
	// GetByKey returns the record whose key columns equal those of probe,
	// or ErrNotFound.
	GetByKey(ctx context.Context, probe *T) (*T, error)

	Insert(ctx context.Context, rec *T) (Result, error)
	InsertWithTx(ctx context.Context, tx *bun.Tx, rec *T) (Result, error)

	// Update writes every column of rec, matched by the key predicate.
	Update(ctx context.Context, rec *T) (Result, error)
	UpdateWithTx(ctx context.Context, tx *bun.Tx, rec *T) (Result, error)

	// InsertMany and UpdateMany batch like DataService and report the rows
	// affected summed across batches. Zero rows is NotApplied, not an error.
	InsertMany(ctx context.Context, recs []*T) (Result, error)
	InsertManyWithTx(ctx context.Context, tx *bun.Tx, recs []*T) (Result, error)
	UpdateMany(ctx context.Context, recs []*T) (Result, error)
	UpdateManyWithTx(ctx context.Context, tx *bun.Tx, recs []*T) (Result, error)
}

type compositeDataServiceImpl[T any] struct {
	*core[T]
	key query.KeyPredicate
}

// NewCompositeDataServiceWithFactory returns a CompositeDataService for T
// keyed by key, typically query.KeyColumns(...). The predicate is checked
// against T's table up front.
func NewCompositeDataServiceWithFactory[T any](factory database.ConnectionFactory, key query.KeyPredicate, opts ...Option) (CompositeDataService[T], error) {
	c, err := newCore[T](factory, opts)
	if err != nil {
		return nil, err
	}
	if err := query.Probe(key, c.table); err != nil {
		return nil, err
	}
	c.countRows = true
	return &compositeDataServiceImpl[T]{core: c, key: key}, nil
}

// NewCompositeDataService is NewCompositeDataServiceWithFactory bound to the
// database initialized by database.InitDB.
func NewCompositeDataService[T any](key query.KeyPredicate, opts ...Option) (CompositeDataService[T], error) {
	m, cfgOpts, err := globalFactory()
	if err != nil {
		return nil, err
	}
	return NewCompositeDataServiceWithFactory[T](m, key, append(cfgOpts, opts...)...)
}

func (s *compositeDataServiceImpl[T]) GetByKey(ctx context.Context, probe *T) (*T, error) {
	frag, params := query.BuildSelect(s.table), query.NewParams()
	if err := query.Where(s.key, frag, params, s.table, probe, ""); err != nil {
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

func (s *compositeDataServiceImpl[T]) inTx(ctx context.Context, fn func(tx *bun.Tx) (Result, error)) (Result, error) {
	var res Result
	err := s.withTx(ctx, func(tx *bun.Tx) error {
		var err error
		res, err = fn(tx)
		return err
	})
	return res, err
}

func (s *compositeDataServiceImpl[T]) Insert(ctx context.Context, rec *T) (Result, error) {
	return s.inTx(ctx, func(tx *bun.Tx) (Result, error) { return s.InsertWithTx(ctx, tx, rec) })
}

func (s *compositeDataServiceImpl[T]) InsertWithTx(ctx context.Context, tx *bun.Tx, rec *T) (Result, error) {
	if tx == nil {
		return Result{}, errNilTx
	}
	frag, params, err := query.BuildInsert(s.table, rec, "", nil, nil)
	if err != nil {
		return Result{}, err
	}
	n, err := s.exec.Execute(ctx, tx, s.command(frag, params))
	if err != nil {
		s.logError("Insert", err)
		return Result{}, err
	}
	return s.checkApplied(resultOf(n), frag.String(), rec)
}

func (s *compositeDataServiceImpl[T]) Update(ctx context.Context, rec *T) (Result, error) {
	return s.inTx(ctx, func(tx *bun.Tx) (Result, error) { return s.UpdateWithTx(ctx, tx, rec) })
}

func (s *compositeDataServiceImpl[T]) UpdateWithTx(ctx context.Context, tx *bun.Tx, rec *T) (Result, error) {
	if tx == nil {
		return Result{}, errNilTx
	}
	frag, params, err := query.BuildUpdate(s.table, rec, "", s.key, nil, nil)
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

func (s *compositeDataServiceImpl[T]) InsertMany(ctx context.Context, recs []*T) (Result, error) {
	if len(recs) == 0 {
		return Result{}, nil
	}
	return s.inTx(ctx, func(tx *bun.Tx) (Result, error) { return s.InsertManyWithTx(ctx, tx, recs) })
}

func (s *compositeDataServiceImpl[T]) InsertManyWithTx(ctx context.Context, tx *bun.Tx, recs []*T) (Result, error) {
	return s.many(ctx, tx, "insert", recs, func(rec *T, offset string, frag *query.Fragment, params *query.Params) error {
		_, _, err := query.BuildInsert(s.table, rec, offset, frag, params)
		return err
	})
}

func (s *compositeDataServiceImpl[T]) UpdateMany(ctx context.Context, recs []*T) (Result, error) {
	if len(recs) == 0 {
		return Result{}, nil
	}
	return s.inTx(ctx, func(tx *bun.Tx) (Result, error) { return s.UpdateManyWithTx(ctx, tx, recs) })
}

func (s *compositeDataServiceImpl[T]) UpdateManyWithTx(ctx context.Context, tx *bun.Tx, recs []*T) (Result, error) {
	return s.many(ctx, tx, "update", recs, func(rec *T, offset string, frag *query.Fragment, params *query.Params) error {
		_, _, err := query.BuildUpdate(s.table, rec, offset, s.key, frag, params)
		return err
	})
}

// many runs a bulk write and reports the rows affected summed across
// segments. Touching no row is a NotApplied result, not an error.
func (s *compositeDataServiceImpl[T]) many(ctx context.Context, tx *bun.Tx, op string, recs []*T, build recordBuilder[T]) (Result, error) {
	total, err := s.bulk(ctx, tx, op, recs, build)
	if err != nil || len(recs) == 0 {
		return Result{}, err
	}
	return resultOf(total), nil
}
