// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import "strings"

const (
	sqliteBusyMarker   = "SQLITE_BUSY"
	sqliteLockedMarker = "database is locked"
)

// IsSQLiteBusyError checks if the error is a SQLITE_BUSY error.
func IsSQLiteBusyError(err error) bool {
	return errorContains(err, sqliteBusyMarker)
}

// IsSQLiteLockedError checks if the error is a "database is locked" error.
func IsSQLiteLockedError(err error) bool {
	return errorContains(err, sqliteLockedMarker)
}

// IsSQLiteConflictError reports either form of SQLite write contention.
// Both warrant a retry with backoff.
func IsSQLiteConflictError(err error) bool {
	return IsSQLiteBusyError(err) || IsSQLiteLockedError(err)
}

func errorContains(err error, marker string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), marker)
}
