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

package query

import (
	"fmt"
	"strings"

	"github.com/tomoncle/rowkit/metadata"
)

// Dialect selects how the key generated by an INSERT is read back. Both
// supported backends accept bracket quoted identifiers and @name
// parameters, so the rest of the generated text is shared.
type Dialect int

const (
	// SQLServer reads the key with SCOPE_IDENTITY() in a second statement.
	SQLServer Dialect = iota
	// SQLite reads the key with a RETURNING clause.
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case SQLServer:
		return "sqlserver"
	case SQLite:
		return "sqlite"
	default:
		return fmt.Sprintf("Dialect(%d)", int(d))
	}
}

// ParseDialect maps a database type name to a dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlserver", "mssql":
		return SQLServer, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return 0, fmt.Errorf("unsupported dialect: %s", name)
	}
}

// AppendIdentity appends to an unterminated INSERT the clause returning the
// key generated in the current scope as a single scalar.
func (d Dialect) AppendIdentity(frag *Fragment, tbl *metadata.Table) error {
	switch d {
	case SQLServer:
		frag.End().WriteString("SELECT SCOPE_IDENTITY()")
	case SQLite:
		if !tbl.HasKey() {
			return fmt.Errorf("table %s has no generated key", tbl.Name)
		}
		frag.WriteString("\nRETURNING ").WriteString(Ident(tbl.Key.Name))
	default:
		return fmt.Errorf("unsupported dialect: %s", d)
	}
	return nil
}
