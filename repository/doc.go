// Package repository executes generated commands against database/sql
// handles and maps result rows onto record types.
package repository
