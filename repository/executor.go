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

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/tomoncle/rowkit/database"
	"github.com/tomoncle/rowkit/metadata"
	"github.com/uptrace/bun"
)

type options struct {
	hooks  []bun.QueryHook
	logger database.Logger
}

type Option func(*options)

// WithQueryHooks registers bun hooks fired around every command.
func WithQueryHooks(hooks ...bun.QueryHook) Option {
	return func(o *options) { o.hooks = append(o.hooks, hooks...) }
}

func WithLogger(logger database.Logger) Option {
	return func(o *options) { o.logger = logger }
}

type executorImpl[T any] struct {
	table  *metadata.Table
	hooks  []bun.QueryHook
	logger database.Logger
}

// NewExecutor returns an executor for T using the table cached in registry.
func NewExecutor[T any](registry *metadata.Registry, opts ...Option) (Executor[T], error) {
	if registry == nil {
		registry = metadata.Default()
	}
	tbl, err := metadata.For[T](registry)
	if err != nil {
		return nil, err
	}
	o := options{logger: database.GetLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger != nil {
		logger = logger.With("table", tbl.Name)
	}
	return &executorImpl[T]{table: tbl, hooks: o.hooks, logger: logger}, nil
}

// run fires the hooks around fn the way bun does for its own queries.
func (e *executorImpl[T]) run(ctx context.Context, cmd Command, fn func(ctx context.Context, args []any) (sql.Result, error)) error {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}
	args := cmd.Params.Args()
	event := &bun.QueryEvent{
		Query:     cmd.Text,
		QueryArgs: args,
		StartTime: time.Now(),
	}
	for _, h := range e.hooks {
		ctx = h.BeforeQuery(ctx, event)
	}

	res, err := fn(ctx, args)

	event.Result = res
	event.Err = err
	for i := len(e.hooks) - 1; i >= 0; i-- {
		e.hooks[i].AfterQuery(ctx, event)
	}
	if err != nil && e.logger != nil {
		e.logger.Debug("Statement failed", "params", cmd.Params.Len(), "error", err)
	}
	return err
}

func (e *executorImpl[T]) query(ctx context.Context, q Querier, cmd Command, limit int) ([]*T, error) {
	var out []*T
	err := e.run(ctx, cmd, func(ctx context.Context, args []any) (sql.Result, error) {
		rows, err := Unwrap(q).QueryContext(ctx, cmd.Text, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		scan, err := newRowScanner(e.table, rows)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			if limit > 0 && len(out) == limit {
				return nil, ErrMultipleResults
			}
			rec := new(T)
			if err := scan(reflect.ValueOf(rec).Elem()); err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return nil, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *executorImpl[T]) QuerySingle(ctx context.Context, q Querier, cmd Command) (*T, error) {
	recs, err := e.query(ctx, q, cmd, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

func (e *executorImpl[T]) QuerySingleOrDefault(ctx context.Context, q Querier, cmd Command) (*T, error) {
	recs, err := e.query(ctx, q, cmd, 1)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

func (e *executorImpl[T]) Query(ctx context.Context, q Querier, cmd Command) ([]*T, error) {
	recs, err := e.query(ctx, q, cmd, 0)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*T{}
	}
	return recs, nil
}

func (e *executorImpl[T]) Execute(ctx context.Context, q Querier, cmd Command) (int64, error) {
	var affected int64
	err := e.run(ctx, cmd, func(ctx context.Context, args []any) (sql.Result, error) {
		res, err := Unwrap(q).ExecContext(ctx, cmd.Text, args...)
		if err != nil {
			return nil, err
		}
		affected, err = res.RowsAffected()
		return res, err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (e *executorImpl[T]) ExecuteScalar(ctx context.Context, q Querier, cmd Command) (int64, error) {
	var value any
	err := e.run(ctx, cmd, func(ctx context.Context, args []any) (sql.Result, error) {
		rows, err := Unwrap(q).QueryContext(ctx, cmd.Text, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		// the INSERT of a two-statement batch may come first without columns
		for {
			if rows.Next() {
				if err := rows.Scan(&value); err != nil {
					return nil, err
				}
				break
			}
			if !rows.NextResultSet() {
				break
			}
		}
		return nil, rows.Err()
	})
	if err != nil {
		return 0, err
	}
	return toInt64(value)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	case []byte:
		return parseInt(string(n))
	case string:
		return parseInt(n)
	default:
		return 0, fmt.Errorf("unsupported scalar type %T", v)
	}
}

// parseInt accepts decimal text such as SCOPE_IDENTITY()'s numeric(38,0).
func parseInt(s string) (int64, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid scalar %q: %w", s, err)
	}
	return int64(f), nil
}
