package database

import (
	"fmt"
	"log/slog"
)

// NewDatabase builds a store for the configured driver. The returned store is
// not opened yet.
func NewDatabase(databaseType, connectionString string) (RecordStore, error) {
	switch databaseType {
	case "sqlite", "":
		slog.Info("using sqlite record store", "connection", connectionString)
		return NewSQLiteStore(connectionString), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}
}
