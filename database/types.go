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
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tomoncle/rowkit/query"
	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

const (
	TypeSQLServer = "sqlserver"
	TypeSQLite    = "sqlite"
)

const (
	// DefaultCommandTimeout bounds every statement issued by the data services.
	DefaultCommandTimeout = 300 * time.Second
	// DefaultMaxBoundParameters is the parameter ceiling of SQL Server.
	DefaultMaxBoundParameters = 2000
)

// AbstractDatabaseManager owns the bun database handle and hands out
// connections to the data services.
type AbstractDatabaseManager interface {
	ConnectionFactory
	Connect(ctx context.Context) error
	Disconnect() error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	GetStats() *DBStats
	// Dialect is the identity convention of the configured backend.
	Dialect() query.Dialect
	// QueryHooks are the hooks fired for statements the services execute
	// outside of bun's query builders.
	QueryHooks() []bun.QueryHook
	SetLogger(logger Logger)
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql stats returned by the manager.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// ConnectionConfig describes how to connect to a database and tune its pool.
type ConnectionConfig struct {
	Type     string `json:"type" yaml:"type"` // sqlserver, sqlite
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	// DBName is the database on SQL Server and the file name on SQLite.
	DBName string `json:"dbname" yaml:"dbname"`
	// DSN replaces the connection string derived from the fields above.
	DSN             string        `json:"dsn" yaml:"dsn"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	EnableQueryLog  bool          `json:"enable_query_log" yaml:"enable_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time" yaml:"slow_query_time"`
}

// ServiceConfig tunes the data services.
type ServiceConfig struct {
	CommandTimeout     time.Duration `json:"command_timeout" yaml:"command_timeout"`
	MaxBoundParameters int           `json:"max_bound_parameters" yaml:"max_bound_parameters"`
	// TolerateNoRows makes writes that touch no row return a NotApplied
	// result instead of failing.
	TolerateNoRows bool `json:"tolerate_no_rows" yaml:"tolerate_no_rows"`
}

// Config aggregates connection and service settings.
type Config struct {
	Connection ConnectionConfig `json:"connection" yaml:"connection"`
	Service    ServiceConfig    `json:"service" yaml:"service"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Type:            TypeSQLServer,
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 30,
		ConnectTimeout:  time.Second * 10,
		SlowQueryTime:   time.Second * 2,
	}
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		CommandTimeout:     DefaultCommandTimeout,
		MaxBoundParameters: DefaultMaxBoundParameters,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Connection: *DefaultConnectionConfig(),
		Service:    DefaultServiceConfig(),
	}
}

// LoadConfig reads a YAML file over the defaults and applies DB_*
// environment overrides. An empty path loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	overrideFromEnv(cfg)
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize canonicalizes the backend type and fills zero service settings.
func (c *Config) Normalize() error {
	t, err := normalizeType(c.Connection.Type)
	if err != nil {
		return err
	}
	c.Connection.Type = t
	if c.Service.CommandTimeout <= 0 {
		c.Service.CommandTimeout = DefaultCommandTimeout
	}
	if c.Service.MaxBoundParameters <= 0 || c.Service.MaxBoundParameters > DefaultMaxBoundParameters {
		c.Service.MaxBoundParameters = DefaultMaxBoundParameters
	}
	return nil
}

func normalizeType(t string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "sqlserver", "mssql":
		return TypeSQLServer, nil
	case "sqlite", "sqlite3":
		return TypeSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q, supported types: %v", ErrUnsupportedType, t, []string{TypeSQLServer, TypeSQLite})
	}
}

// Dialect maps the backend type to its identity convention.
func (c *ConnectionConfig) Dialect() (query.Dialect, error) {
	t, err := normalizeType(c.Type)
	if err != nil {
		return 0, err
	}
	return query.ParseDialect(t)
}

// ConnectionString returns DSN when set, otherwise a connection string
// derived from the other fields.
func (c *ConnectionConfig) ConnectionString() (string, error) {
	t, err := normalizeType(c.Type)
	if err != nil {
		return "", err
	}
	if dsn := strings.TrimSpace(c.DSN); dsn != "" {
		return dsn, nil
	}
	switch t {
	case TypeSQLServer:
		if c.Host == "" {
			return "", fmt.Errorf("%w: sqlserver host is empty", ErrEmptyConnectionString)
		}
		u := &url.URL{Scheme: "sqlserver", Host: c.Host}
		if c.Port > 0 {
			u.Host = fmt.Sprintf("%s:%d", c.Host, c.Port)
		}
		if c.Username != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		}
		q := url.Values{}
		if c.DBName != "" {
			q.Set("database", c.DBName)
		}
		if c.ConnectTimeout > 0 {
			q.Set("connection timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	default:
		name := strings.TrimSpace(c.DBName)
		switch {
		case name == "":
			return "", fmt.Errorf("%w: sqlite dbname is empty", ErrEmptyConnectionString)
		case name == ":memory:":
			return "file::memory:?cache=shared", nil
		case strings.HasSuffix(name, ".db"):
			return name, nil
		default:
			return name + ".db", nil
		}
	}
}
