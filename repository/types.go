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
	"errors"
	"time"

	"github.com/tomoncle/rowkit/query"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned by QuerySingle when no row matches.
	ErrNotFound = errors.New("no rows in result set")
	// ErrMultipleResults is returned when a single row was expected and
	// more came back.
	ErrMultipleResults = errors.New("more than one row in result set")
)

// Querier runs statements with database/sql argument binding. *sql.DB,
// *sql.Conn and *sql.Tx satisfy it.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Command is one round trip: SQL text, its bound parameters and an optional
// timeout.
type Command struct {
	Text    string
	Params  *query.Params
	Timeout time.Duration
}

func NewCommand(frag *query.Fragment, params *query.Params, timeout time.Duration) Command {
	return Command{Text: frag.String(), Params: params, Timeout: timeout}
}

// Executor runs commands and maps result rows onto T by column name.
type Executor[T any] interface {
	// QuerySingle returns exactly one row, ErrNotFound or ErrMultipleResults.
	QuerySingle(ctx context.Context, q Querier, cmd Command) (*T, error)
	// QuerySingleOrDefault returns nil without error when no row matches.
	QuerySingleOrDefault(ctx context.Context, q Querier, cmd Command) (*T, error)
	Query(ctx context.Context, q Querier, cmd Command) ([]*T, error)
	// Execute returns the number of rows affected.
	Execute(ctx context.Context, q Querier, cmd Command) (int64, error)
	// ExecuteScalar returns the first column of the first row as an int64.
	// NULL and an empty result read as zero.
	ExecuteScalar(ctx context.Context, q Querier, cmd Command) (int64, error)
}

// Unwrap returns the database/sql handle under bun's wrappers. bun.Tx and
// bun.Conn have ExecContext and QueryContext methods that format the text
// themselves and drop named arguments, so they must not be used directly.
func Unwrap(q Querier) Querier {
	switch v := q.(type) {
	case bun.Tx:
		return v.Tx
	case *bun.Tx:
		return v.Tx
	case bun.Conn:
		return v.Conn
	case *bun.Conn:
		return v.Conn
	case *bun.DB:
		return v.DB
	default:
		return q
	}
}
