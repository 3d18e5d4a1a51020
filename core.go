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
	"strconv"

	"github.com/tomoncle/rowkit/batch"
	"github.com/tomoncle/rowkit/database"
	"github.com/tomoncle/rowkit/metadata"
	"github.com/tomoncle/rowkit/query"
	"github.com/tomoncle/rowkit/repository"
	"github.com/uptrace/bun"
)

var errNilTx = errors.New("nil transaction")

// recordBuilder appends the statement for one record of a batch.
type recordBuilder[T any] func(rec *T, offset string, frag *query.Fragment, params *query.Params) error

// core holds what both data services share: table metadata, the executor,
// the connection factory and the transaction plumbing.
type core[T any] struct {
	table   *metadata.Table
	exec    repository.Executor[T]
	factory database.ConnectionFactory
	dialect query.Dialect
	opts    options

	// countRows makes bulk report exact rows affected per segment.
	countRows bool
}

func newCore[T any](factory database.ConnectionFactory, opts []Option) (*core[T], error) {
	if factory == nil {
		return nil, errors.New("nil connection factory")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = metadata.Default()
	}
	if o.logger == nil {
		o.logger = database.GetLogger()
	}

	c := &core[T]{factory: factory, opts: o}
	if m, ok := factory.(database.AbstractDatabaseManager); ok {
		c.dialect = m.Dialect()
		c.opts.hooks = append(m.QueryHooks(), c.opts.hooks...)
	}
	if o.dialect != nil {
		c.dialect = *o.dialect
	}

	tbl, err := metadata.For[T](o.registry)
	if err != nil {
		return nil, err
	}
	if err := query.CheckParams(tbl); err != nil {
		return nil, err
	}
	c.table = tbl
	c.opts.logger = o.logger.With("table", tbl.Name)
	c.exec, err = repository.NewExecutor[T](o.registry,
		repository.WithQueryHooks(c.opts.hooks...),
		repository.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *core[T]) command(frag *query.Fragment, params *query.Params) repository.Command {
	return repository.NewCommand(frag, params, c.opts.commandTimeout)
}

// withConn runs fn on a dedicated connection.
func (c *core[T]) withConn(ctx context.Context, fn func(conn bun.Conn) error) error {
	conn, err := c.factory.GetConnection(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()
	return fn(conn)
}

// withTx opens a connection, begins a transaction, runs fn and commits.
// Any error rolls back.
func (c *core[T]) withTx(ctx context.Context, fn func(tx *bun.Tx) error) error {
	return c.withConn(ctx, func(conn bun.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := fn(&tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// checkApplied turns a NotApplied result into an OperationFailedError
// unless the service tolerates it.
func (c *core[T]) checkApplied(res Result, text string, input any) (Result, error) {
	if res.Status == NotApplied && !c.opts.tolerateNoRows {
		return res, &OperationFailedError{Query: text, Input: input}
	}
	return res, nil
}

// bulk partitions recs and executes one combined statement per segment in
// tx. It returns the rows affected summed across segments.
func (c *core[T]) bulk(ctx context.Context, tx *bun.Tx, op string, recs []*T, build recordBuilder[T]) (int64, error) {
	if tx == nil {
		return 0, errNilTx
	}
	if len(recs) == 0 {
		return 0, nil
	}

	// parameters per record, measured on the first one
	scratch := query.NewParams()
	if err := build(recs[0], "0", query.NewFragment(), scratch); err != nil {
		return 0, err
	}
	size := batch.SegmentSize(scratch.Len(), len(recs), c.opts.maxParams)
	segments := batch.Slice(recs, size)
	c.opts.logger.Debug("Bulk "+op+" plan",
		"records", len(recs),
		"segments", len(segments),
		"segment_size", size,
	)

	var total int64
	for _, segment := range segments {
		frag, params := query.NewFragment(), query.NewParams()
		for i, rec := range segment {
			if err := build(rec, strconv.Itoa(i), frag, params); err != nil {
				return 0, err
			}
			frag.End()
		}
		n, err := c.execSegment(ctx, tx, c.command(frag, params))
		if err != nil {
			c.logError("Bulk "+op, err)
			return 0, err
		}
		total += n
	}
	return total, nil
}

// execSegment runs one combined statement. SQLite reports the rows affected
// by the last statement of a batch only, so when exact counts are needed
// they are read from total_changes() on the same connection instead.
func (c *core[T]) execSegment(ctx context.Context, tx *bun.Tx, cmd repository.Command) (int64, error) {
	if !c.countRows || c.dialect != query.SQLite {
		return c.exec.Execute(ctx, tx, cmd)
	}
	before, err := c.totalChanges(ctx, tx)
	if err != nil {
		return 0, err
	}
	if _, err := c.exec.Execute(ctx, tx, cmd); err != nil {
		return 0, err
	}
	after, err := c.totalChanges(ctx, tx)
	if err != nil {
		return 0, err
	}
	return after - before, nil
}

func (c *core[T]) totalChanges(ctx context.Context, tx *bun.Tx) (int64, error) {
	frag := query.NewFragment().WriteString("SELECT total_changes()")
	return c.exec.ExecuteScalar(ctx, tx, c.command(frag, query.NewParams()))
}

func (c *core[T]) logError(op string, err error) {
	fields := []interface{}{"error", err}
	if is, kind := database.ClassifySQLError(err); is {
		fields = append(fields, "kind", kind.String())
	}
	c.opts.logger.Error(op+" failed", fields...)
}
