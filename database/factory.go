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

package database

import (
	"context"
	"os"
	"strings"

	"github.com/tomoncle/rowkit/utils"
	"github.com/uptrace/bun"
)

// ConnectionFactory hands out connections. Callers close what they get.
type ConnectionFactory interface {
	GetConnection(ctx context.Context) (bun.Conn, error)
}

// NewConnectionFactory returns a lazily connecting factory for cfg. It fails
// immediately with ErrEmptyConnectionString when cfg yields no connection
// string and with ErrUnsupportedType for unknown backends.
func NewConnectionFactory(cfg *ConnectionConfig) (ConnectionFactory, error) {
	return NewDatabaseManager(cfg)
}

// overrideFromEnv overrides configuration values from environment variables.
func overrideFromEnv(cfg *Config) {
	c := &cfg.Connection
	// Database connection info
	c.Type = utils.EnvDefaultString("DB_TYPE", c.Type)
	c.Host = utils.EnvDefaultString("DB_HOST", c.Host)
	c.Port = utils.EnvDefaultInt("DB_PORT", c.Port)
	c.Username = utils.EnvDefaultString("DB_USERNAME", c.Username)
	if password, ok := os.LookupEnv("DB_PASSWORD"); ok {
		c.Password = password
	}
	c.DBName = utils.EnvDefaultString("DB_NAME", c.DBName)
	c.DSN = strings.TrimSpace(utils.EnvDefaultString("DB_DSN", c.DSN))

	// Connection pool config
	c.MaxIdleConns = utils.EnvDefaultInt("DB_MAX_IDLE_CONNS", c.MaxIdleConns)
	c.MaxOpenConns = utils.EnvDefaultInt("DB_MAX_OPEN_CONNS", c.MaxOpenConns)
	c.ConnMaxLifetime = utils.EnvDefaultDuration("DB_CONN_MAX_LIFETIME", c.ConnMaxLifetime)

	// Logging config
	c.EnableQueryLog = utils.EnvDefaultBool("DB_ENABLE_QUERY_LOG", c.EnableQueryLog)
	c.SlowQueryTime = utils.EnvDefaultDuration("DB_SLOW_QUERY_TIME", c.SlowQueryTime)

	// Service config
	cfg.Service.CommandTimeout = utils.EnvDefaultDuration("DB_COMMAND_TIMEOUT", cfg.Service.CommandTimeout)
}
