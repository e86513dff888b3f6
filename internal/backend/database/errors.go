package database

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable indicates the persistence facility could not be opened.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotOpen is returned by every operation issued before Open succeeded.
	ErrNotOpen = errors.New("store not open")
	ErrReadFailed  = errors.New("read failed")
	ErrWriteFailed = errors.New("write failed")
	// ErrNotFound reports an id that does not exist, usually stale UI state.
	ErrNotFound   = errors.New("record not found")
	ErrEmptyImage = errors.New("image payload is empty")
)

// StoreError describes a failed store operation. Kind is one of the sentinel
// errors above and Err is the underlying cause, if any.
type StoreError struct {
	Op   string
	ID   int64
	Kind error
	Err  error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.ID != 0 {
		msg = fmt.Sprintf("%s (id=%d)", msg, e.ID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newStoreError(op string, id int64, kind, err error) error {
	return &StoreError{Op: op, ID: id, Kind: kind, Err: err}
}
