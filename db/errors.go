package db

import (
	"strings"

	"github.com/teranos/strata/errors"
)

// ErrDatabaseClosed is returned when a store call runs after the platform closed its connection
var ErrDatabaseClosed = errors.New("database is closed")

// ReopenHint is attached to closed-database failures by WithReopenHint
const ReopenHint = "the strata database was closed; restart the command or MCP server to reopen it"

// IsDatabaseClosed reports whether err comes from a closed connection.
// database/sql returns its own unexported error, so the message is matched as a fallback.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// WithReopenHint marks a closed-database failure as a store error and attaches
// ReopenHint. Other errors are returned unchanged.
func WithReopenHint(err error) error {
	if !IsDatabaseClosed(err) {
		return err
	}
	if !errors.IsStoreError(err) {
		err = errors.Mark(err, errors.ErrStore)
	}
	return errors.WithHint(err, ReopenHint)
}
