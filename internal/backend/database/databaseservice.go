package database

import "context"

// RecordStore persists PhotoRecords in a single collection addressed by id.
// Every operation is its own transaction; there is no cross-record atomicity.
type RecordStore interface {
	// Open creates the collection on first use. It is idempotent.
	Open(ctx context.Context) error
	Close() error

	// Add assigns the next id and returns it. No id is consumed if the write fails.
	Add(ctx context.Context, record NewRecord) (int64, error)
	// GetAll returns every record in insertion order. An empty store yields an empty slice.
	GetAll(ctx context.Context) ([]*PhotoRecord, error)
	GetByID(ctx context.Context, id int64) (*PhotoRecord, error)
	// UpdateTitle overwrites only the title of an existing record.
	UpdateTitle(ctx context.Context, id int64, title string) error
	Delete(ctx context.Context, id int64) error
}
