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
	"errors"
	"fmt"
	"sync"

	"github.com/uptrace/bun"
)

var (
	globalMu      sync.RWMutex
	globalManager AbstractDatabaseManager
	globalConfig  *Config
)

// InitDB connects the process-wide manager used by the convenience
// constructors. A previously initialized manager is closed.
func InitDB(ctx context.Context, cfg *Config) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, errors.New("database configuration cannot be empty")
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	manager, err := NewDatabaseManager(&cfg.Connection)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := manager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	globalMu.Lock()
	previous := globalManager
	globalManager, globalConfig = manager, cfg
	globalMu.Unlock()

	if previous != nil {
		_ = previous.Disconnect()
	}
	GetLogger().Info("Database initialization completed", "type", cfg.Connection.Type)
	return manager, nil
}

// GetDatabaseManager returns the process-wide manager, nil before InitDB.
func GetDatabaseManager() AbstractDatabaseManager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalManager
}

// GetConfig returns the configuration passed to InitDB.
func GetConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// GetDB returns the global bun database, nil before InitDB.
func GetDB() *bun.DB {
	if m := GetDatabaseManager(); m != nil {
		return m.GetDB()
	}
	return nil
}

func CloseDB() error {
	globalMu.Lock()
	m := globalManager
	globalManager, globalConfig = nil, nil
	globalMu.Unlock()
	if m == nil {
		return nil
	}
	return m.Disconnect()
}

func GetHealthStatus(ctx context.Context) *HealthStatus {
	if m := GetDatabaseManager(); m != nil {
		return m.HealthCheck(ctx)
	}
	return &HealthStatus{LastError: "Database not initialized"}
}

func GetDatabaseStats() *DBStats {
	if m := GetDatabaseManager(); m != nil {
		return m.GetStats()
	}
	return &DBStats{}
}
