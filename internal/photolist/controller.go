// Package photolist keeps the rendered photo list in step with the record
// store: loading, inline title edits and confirmed deletes.
package photolist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jo-hoe/ecotrail/internal/backend/database"
	"github.com/jo-hoe/ecotrail/internal/handles"
)

const (
	DateLayout    = "2006/01/02 15:04"
	UntitledLabel = "untitled"
)

var (
	ErrEntryNotFound      = errors.New("photo entry not found")
	ErrDeleteNotConfirmed = errors.New("delete was not confirmed")
)

// Store is the part of the record store the list reads and mutates.
type Store interface {
	GetAll(ctx context.Context) ([]*database.PhotoRecord, error)
	UpdateTitle(ctx context.Context, id int64, title string) error
	Delete(ctx context.Context, id int64) error
}

type Status int

const (
	StatusUnloaded Status = iota
	StatusReady
	// StatusEmpty renders the "no photos" placeholder.
	StatusEmpty
	// StatusError renders the load failure placeholder.
	StatusError
)

// Entry is one rendered list row.
type Entry struct {
	ID        int64
	Title     string
	CreatedAt time.Time
	Date      string
	Thumbnail handles.Handle
	Editing   bool
}

// Label is the displayed title.
func (e Entry) Label() string {
	if e.Title == "" {
		return UntitledLabel
	}
	return e.Title
}

type View struct {
	Status  Status
	Entries []Entry
	Err     error
}

type Controller struct {
	mu          sync.Mutex
	store       Store
	registry    handles.Registry
	thumbnailer *Thumbnailer
	location    *time.Location

	status  Status
	loadErr error
	entries []*Entry
	// tokens of the current render not yet served
	outstanding map[string]struct{}
}

func NewController(store Store, registry handles.Registry, thumbnailer *Thumbnailer, location *time.Location) *Controller {
	if location == nil {
		location = time.Local
	}
	return &Controller{
		store:       store,
		registry:    registry,
		thumbnailer: thumbnailer,
		location:    location,
		outstanding: make(map[string]struct{}),
	}
}

// Load reads every record and replaces the rendered list, newest first.
// Handles issued by the previous render are revoked.
func (c *Controller) Load(ctx context.Context) error {
	records, err := c.store.GetAll(ctx)
	if err != nil {
		slog.Error("photo list: load failed", "error", err)
		c.mu.Lock()
		c.revokeLocked(ctx)
		c.entries = nil
		c.status = StatusError
		c.loadErr = err
		c.mu.Unlock()
		return fmt.Errorf("failed to load photos: %w", err)
	}

	entries := make([]*Entry, 0, len(records))
	tokens := make(map[string]struct{}, len(records))
	for _, record := range slices.Backward(records) {
		entry := &Entry{
			ID:        record.ID,
			Title:     record.Title,
			CreatedAt: record.CreatedAt,
			Date:      record.CreatedAt.In(c.location).Format(DateLayout),
		}
		if handle, err := c.thumbnailHandle(ctx, record); err != nil {
			slog.Warn("photo list: no thumbnail", "id", record.ID, "error", err)
		} else {
			entry.Thumbnail = handle
			tokens[handle.Token] = struct{}{}
		}
		entries = append(entries, entry)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.revokeLocked(ctx)
	c.entries = entries
	c.outstanding = tokens
	c.loadErr = nil
	if len(entries) == 0 {
		c.status = StatusEmpty
	} else {
		c.status = StatusReady
	}
	slog.Debug("photo list: loaded", "count", len(entries))
	return nil
}

func (c *Controller) thumbnailHandle(ctx context.Context, record *database.PhotoRecord) (handles.Handle, error) {
	data, contentType, err := c.thumbnailer.Thumbnail(record.Image)
	if err != nil {
		return handles.Handle{}, err
	}
	handle, err := c.registry.Create(ctx, data, contentType)
	if err != nil {
		return handles.Handle{}, err
	}
	slog.Debug("photo list: thumbnail handle created", "id", record.ID, "bytes", handle.Size)
	return handle, nil
}

func (c *Controller) revokeLocked(ctx context.Context) {
	for token := range c.outstanding {
		if err := c.registry.Release(ctx, token); err != nil {
			slog.Warn("photo list: failed to release handle", "token", token, "error", err)
		}
	}
	clear(c.outstanding)
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Entry, len(c.entries))
	for i, entry := range c.entries {
		entries[i] = *entry
	}
	return View{Status: c.status, Entries: entries, Err: c.loadErr}
}

func (c *Controller) Entry(id int64) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.findLocked(id)
	if err != nil {
		return Entry{}, err
	}
	return *entry, nil
}

func (c *Controller) findLocked(id int64) (*Entry, error) {
	for _, entry := range c.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrEntryNotFound, id)
}

// BeginEdit switches an entry into inline edit mode. Calling it again while
// the entry is already being edited changes nothing.
func (c *Controller) BeginEdit(id int64) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.findLocked(id)
	if err != nil {
		return Entry{}, err
	}
	entry.Editing = true
	return *entry, nil
}

// CommitTitle ends edit mode, shows the trimmed title at once and persists it.
// A failed write restores the previous title. Committing an entry that is
// not being edited is a no-op, so blur after Enter writes only once.
func (c *Controller) CommitTitle(ctx context.Context, id int64, raw string) (Entry, error) {
	title := strings.TrimSpace(raw)

	c.mu.Lock()
	entry, err := c.findLocked(id)
	if err != nil {
		c.mu.Unlock()
		return Entry{}, err
	}
	if !entry.Editing {
		current := *entry
		c.mu.Unlock()
		return current, nil
	}
	previous := entry.Title
	entry.Title = title
	entry.Editing = false
	c.mu.Unlock()

	if err := c.store.UpdateTitle(ctx, id, title); err != nil {
		slog.Error("photo list: title update failed", "id", id, "error", err)

		c.mu.Lock()
		defer c.mu.Unlock()
		entry, findErr := c.findLocked(id)
		if findErr != nil {
			return Entry{}, fmt.Errorf("failed to update title: %w", err)
		}
		if entry.Title == title {
			entry.Title = previous
		}
		return *entry, fmt.Errorf("failed to update title: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, err := c.findLocked(id); err == nil {
		return *entry, nil
	}
	return Entry{ID: id, Title: title}, nil
}

// Delete removes a record after explicit confirmation. The entry stays in the
// list when the store reports a failure.
func (c *Controller) Delete(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		return ErrDeleteNotConfirmed
	}

	c.mu.Lock()
	_, err := c.findLocked(id)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if err := c.store.Delete(ctx, id); err != nil {
		slog.Error("photo list: delete failed", "id", id, "error", err)
		return fmt.Errorf("failed to delete photo: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	idx := slices.IndexFunc(c.entries, func(e *Entry) bool { return e.ID == id })
	if idx >= 0 {
		token := c.entries[idx].Thumbnail.Token
		if _, ok := c.outstanding[token]; ok {
			if err := c.registry.Release(ctx, token); err != nil {
				slog.Warn("photo list: failed to release handle", "token", token, "error", err)
			}
			delete(c.outstanding, token)
		}
		c.entries = slices.Delete(c.entries, idx, idx+1)
	}
	if len(c.entries) == 0 {
		c.status = StatusEmpty
	}
	slog.Info("photo list: photo deleted", "id", id, "remaining", len(c.entries))
	return nil
}

// ConsumeHandle serves a thumbnail once and releases it.
func (c *Controller) ConsumeHandle(ctx context.Context, token string) ([]byte, string, error) {
	data, contentType, err := c.registry.Consume(ctx, token)
	if err != nil {
		return nil, "", err
	}

	c.mu.Lock()
	delete(c.outstanding, token)
	c.mu.Unlock()
	return data, contentType, nil
}

// Close revokes every handle of the current render.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revokeLocked(ctx)
}
