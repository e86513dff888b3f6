package database

import "time"

// PhotoRecord is a persisted photo. Title is optional; an empty title is
// rendered as untitled by the list view and is never stored as a default.
type PhotoRecord struct {
	ID        int64     `db:"id"`
	Image     []byte    `db:"image"` // compressed still image (JPEG from the capture pipeline)
	CreatedAt time.Time `db:"created_at"`
	Title     string    `db:"title"`
}

// NewRecord carries the fields a caller supplies when adding a photo.
// The store assigns the id.
type NewRecord struct {
	Image     []byte
	CreatedAt time.Time
}
