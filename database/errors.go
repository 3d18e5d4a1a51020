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
	"database/sql"
	"errors"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

var (
	// ErrEmptyConnectionString is returned when no connection string can be
	// derived from the configuration.
	ErrEmptyConnectionString = errors.New("empty connection string")
	// ErrUnsupportedType is returned for database types other than
	// sqlserver and sqlite.
	ErrUnsupportedType = errors.New("unsupported database type")
	ErrNotConnected    = errors.New("database not connected")
)

type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoIndexErr
	NoColumnErr
	ExistIndexErr
	ExistColumnErr
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
)

var sqlErrorNames = [...]string{
	UnknownErr:                  "unknown",
	NoRowsErr:                   "no_rows",
	NoIndexErr:                  "no_index",
	NoColumnErr:                 "no_column",
	ExistIndexErr:               "exist_index",
	ExistColumnErr:              "exist_column",
	NoTableErr:                  "no_table",
	ExistTableErr:               "exist_table",
	DuplicateKeyErr:             "duplicate_key",
	NotNullViolationErr:         "not_null_violation",
	ForeignKeyViolationErr:      "foreign_key_violation",
	CheckConstraintViolationErr: "check_constraint_violation",
	DataTruncatedErr:            "data_truncated",
	InvalidTypeCastErr:          "invalid_type_cast",
}

func (e SQLError) String() string {
	if e < 0 || int(e) >= len(sqlErrorNames) {
		return "unknown"
	}
	return sqlErrorNames[e]
}

// ClassifySQLError reports whether err is a recognized database error and
// which kind. Driver errors are matched by code, anything else by message.
func ClassifySQLError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true, NoRowsErr
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return true, classifyMSSQL(msErr.Number)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return true, classifyPostgres(string(pqErr.Code))
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return true, classifyMySQL(mysqlErr.Number)
	}
	return classifyMessage(strings.ToLower(err.Error()))
}

func classifyMSSQL(number int32) SQLError {
	switch number {
	case 2601, 2627:
		return DuplicateKeyErr
	case 515:
		return NotNullViolationErr
	case 547:
		return ForeignKeyViolationErr
	case 208:
		return NoTableErr
	case 207:
		return NoColumnErr
	case 2714:
		return ExistTableErr
	case 1913:
		return ExistIndexErr
	case 2705:
		return ExistColumnErr
	case 8152, 2628:
		return DataTruncatedErr
	case 245, 8114:
		return InvalidTypeCastErr
	default:
		return UnknownErr
	}
}

func classifyPostgres(code string) SQLError {
	switch code {
	case "23505":
		return DuplicateKeyErr
	case "23502":
		return NotNullViolationErr
	case "23503":
		return ForeignKeyViolationErr
	case "23514":
		return CheckConstraintViolationErr
	case "42P01":
		return NoTableErr
	case "42703":
		return NoColumnErr
	case "42704":
		return NoIndexErr
	case "42P07":
		return ExistTableErr
	case "42701":
		return ExistColumnErr
	case "22001":
		return DataTruncatedErr
	case "42804":
		return InvalidTypeCastErr
	default:
		return UnknownErr
	}
}

func classifyMySQL(number uint16) SQLError {
	switch number {
	case 1091:
		return NoIndexErr
	case 1054:
		return NoColumnErr
	case 1061:
		return ExistIndexErr
	case 1060:
		return ExistColumnErr
	case 1062:
		return DuplicateKeyErr
	case 1048:
		return NotNullViolationErr
	case 1216, 1217, 1451, 1452:
		return ForeignKeyViolationErr
	case 3819:
		return CheckConstraintViolationErr
	case 1265, 1406:
		return DataTruncatedErr
	case 1146:
		return NoTableErr
	case 1050:
		return ExistTableErr
	default:
		return UnknownErr
	}
}

func classifyMessage(s string) (bool, SQLError) {
	switch {
	case strings.Contains(s, "no such column") ||
		strings.Contains(s, "undefined column") ||
		strings.Contains(s, "invalid column name"):
		return true, NoColumnErr
	case strings.Contains(s, "no such index"):
		return true, NoIndexErr
	case strings.Contains(s, "no such table") ||
		strings.Contains(s, "undefined table") ||
		strings.Contains(s, "invalid object name"):
		return true, NoTableErr
	case strings.Contains(s, "already exists") && strings.Contains(s, "index"):
		return true, ExistIndexErr
	case strings.Contains(s, "already exists") && strings.Contains(s, "table"):
		return true, ExistTableErr
	case strings.Contains(s, "duplicate column"):
		return true, ExistColumnErr
	case strings.Contains(s, "unique constraint failed") ||
		strings.Contains(s, "duplicate key"):
		return true, DuplicateKeyErr
	case strings.Contains(s, "not null constraint failed") ||
		strings.Contains(s, "not-null constraint"):
		return true, NotNullViolationErr
	case strings.Contains(s, "foreign key constraint failed") ||
		strings.Contains(s, "foreign key violation"):
		return true, ForeignKeyViolationErr
	case strings.Contains(s, "check constraint"):
		return true, CheckConstraintViolationErr
	case strings.Contains(s, "string or binary data would be truncated") ||
		strings.Contains(s, "data truncated"):
		return true, DataTruncatedErr
	case strings.Contains(s, "datatype mismatch") ||
		strings.Contains(s, "conversion failed"):
		return true, InvalidTypeCastErr
	}
	return false, UnknownErr
}
