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
	"time"

	"github.com/tomoncle/rowkit/batch"
	"github.com/tomoncle/rowkit/database"
	"github.com/tomoncle/rowkit/metadata"
	"github.com/tomoncle/rowkit/query"
	"github.com/uptrace/bun"
)

type options struct {
	registry       *metadata.Registry
	dialect        *query.Dialect
	commandTimeout time.Duration
	maxParams      int
	tolerateNoRows bool
	logger         database.Logger
	hooks          []bun.QueryHook
}

type Option func(*options)

func defaultOptions() options {
	return options{
		commandTimeout: database.DefaultCommandTimeout,
		maxParams:      batch.MaxBoundParameters,
	}
}

// WithRegistry sets the metadata registry. The process-wide registry is
// used otherwise.
func WithRegistry(r *metadata.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithDialect overrides the identity convention reported by the connection
// factory.
func WithDialect(d query.Dialect) Option {
	return func(o *options) { o.dialect = &d }
}

// WithCommandTimeout bounds every statement. Zero disables the bound.
func WithCommandTimeout(d time.Duration) Option {
	return func(o *options) { o.commandTimeout = d }
}

// WithMaxBoundParameters lowers the parameter ceiling of generated
// statements. Values outside (0, 2000] keep 2000.
func WithMaxBoundParameters(n int) Option {
	return func(o *options) {
		if n > 0 && n <= batch.MaxBoundParameters {
			o.maxParams = n
		}
	}
}

// WithTolerateNoRows makes single-record writes that touch no row return a
// NotApplied result and commit instead of failing with an
// OperationFailedError. Composite bulk writes never fail on zero rows.
func WithTolerateNoRows(on bool) Option {
	return func(o *options) { o.tolerateNoRows = on }
}

func WithLogger(l database.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithQueryHooks adds bun hooks fired around every generated statement.
func WithQueryHooks(hooks ...bun.QueryHook) Option {
	return func(o *options) { o.hooks = append(o.hooks, hooks...) }
}

// WithServiceConfig applies a loaded service configuration.
func WithServiceConfig(cfg database.ServiceConfig) Option {
	return func(o *options) {
		if cfg.CommandTimeout > 0 {
			o.commandTimeout = cfg.CommandTimeout
		}
		WithMaxBoundParameters(cfg.MaxBoundParameters)(o)
		o.tolerateNoRows = cfg.TolerateNoRows
	}
}
