package core

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/jo-hoe/ecotrail/internal/backend/database"
	"github.com/jo-hoe/ecotrail/internal/capture"
	"github.com/jo-hoe/ecotrail/internal/photolist"
)

type testStream struct{}

func (testStream) Frame(ctx context.Context) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 10), B: 40, A: 255})
		}
	}
	return img, nil
}

func (testStream) Close() error { return nil }

type testCamera struct{}

func (testCamera) Open(ctx context.Context, constraints capture.Constraints) (capture.Stream, error) {
	return testStream{}, nil
}

func newTestConfig(connectionString string) *ServiceConfig {
	config := &ServiceConfig{
		Database: Database{
			Type:             "sqlite",
			ConnectionString: connectionString,
		},
		Timezone: "UTC",
	}
	config.applyDefaults()
	return config
}

func newTestCoreService(t *testing.T, config *ServiceConfig) *CoreService {
	t.Helper()
	svc, err := NewCoreService(context.Background(), config, testCamera{})
	if err != nil {
		t.Fatalf("NewCoreService error: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

func TestCoreService_CaptureThenList(t *testing.T) {
	svc := newTestCoreService(t, newTestConfig(":memory:"))
	ctx := context.Background()

	if svc.StoreError() != nil {
		t.Fatalf("unexpected store error: %v", svc.StoreError())
	}

	session := svc.Session()
	if err := session.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	for range 3 {
		if err := session.Shutter(ctx); err != nil {
			t.Fatalf("Shutter error: %v", err)
		}
		if _, err := session.Save(ctx); err != nil {
			t.Fatalf("Save error: %v", err)
		}
	}

	photos := svc.Photos()
	if err := photos.Load(ctx); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	view := photos.View()
	if view.Status != photolist.StatusReady || len(view.Entries) != 3 {
		t.Fatalf("expected 3 ready entries, got %v/%d", view.Status, len(view.Entries))
	}
	if view.Entries[0].ID < view.Entries[2].ID {
		t.Errorf("expected newest first, got ids %d..%d", view.Entries[0].ID, view.Entries[2].ID)
	}

	record, err := svc.Store().GetByID(ctx, view.Entries[0].ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if _, format, err := image.Decode(bytes.NewReader(record.Image)); err != nil || format != "jpeg" {
		t.Errorf("stored image is not a jpeg: %q, %v", format, err)
	}
}

func TestCoreService_DegradesWhenStoreUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "photos.db")
	svc := newTestCoreService(t, newTestConfig(path))
	ctx := context.Background()

	if !errors.Is(svc.StoreError(), database.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", svc.StoreError())
	}

	// capture still works, only the save fails
	session := svc.Session()
	if err := session.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := session.Shutter(ctx); err != nil {
		t.Fatalf("Shutter error: %v", err)
	}
	if _, err := session.Save(ctx); !errors.Is(err, database.ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen on save, got %v", err)
	}
	if session.State() != capture.StateStaged {
		t.Errorf("expected staged after failed save, got %s", session.State())
	}

	if err := svc.Photos().Load(ctx); err == nil {
		t.Error("expected list load to fail without a store")
	}
	if svc.Photos().View().Status != photolist.StatusError {
		t.Errorf("expected error view, got %v", svc.Photos().View().Status)
	}
}

func TestCoreService_OpenStoreRecovers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "later")
	svc := newTestCoreService(t, newTestConfig(filepath.Join(dir, "photos.db")))
	ctx := context.Background()

	if svc.StoreError() == nil {
		t.Fatal("expected store error before the directory exists")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if err := svc.OpenStore(ctx); err != nil {
		t.Fatalf("OpenStore error: %v", err)
	}
	if svc.StoreError() != nil {
		t.Errorf("expected store error to clear, got %v", svc.StoreError())
	}
}

func TestNewCoreService_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(config *ServiceConfig)
		camera capture.Camera
	}{
		{name: "missing camera", modify: func(config *ServiceConfig) {}, camera: nil},
		{name: "unknown database", modify: func(config *ServiceConfig) { config.Database.Type = "postgres" }, camera: testCamera{}},
		{name: "unknown handle registry", modify: func(config *ServiceConfig) { config.Handles.Type = "memcached" }, camera: testCamera{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := newTestConfig(":memory:")
			tt.modify(config)
			if _, err := NewCoreService(context.Background(), config, tt.camera); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
