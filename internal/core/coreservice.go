package core

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/jo-hoe/ecotrail/internal/backend/commands"
	"github.com/jo-hoe/ecotrail/internal/backend/database"
	"github.com/jo-hoe/ecotrail/internal/capture"
	"github.com/jo-hoe/ecotrail/internal/handles"
	"github.com/jo-hoe/ecotrail/internal/photolist"
)

// CoreService owns the record store and everything built on it. A store that
// fails to open does not stop the service: capture keeps working and saves
// fail until OpenStore succeeds.
type CoreService struct {
	config   *ServiceConfig
	store    database.RecordStore
	registry handles.Registry
	session  *capture.Session
	photos   *photolist.Controller

	mu       sync.RWMutex
	storeErr error
}

func NewCoreService(ctx context.Context, config *ServiceConfig, device capture.Camera) (*CoreService, error) {
	if device == nil {
		return nil, fmt.Errorf("a camera is required")
	}
	store, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	registry, err := handles.NewRegistry(ctx, config.Handles.Type, config.Handles.Address, config.Handles.TTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize handle registry: %w", err)
	}

	thumbnailer, err := photolist.NewThumbnailer(config.Image.ThumbnailWidth, config.CommandConfigs())
	if err != nil {
		_ = registry.Close()
		return nil, err
	}
	location, err := config.Location()
	if err != nil {
		_ = registry.Close()
		return nil, err
	}

	quality := config.Image.JpegQuality
	encoder := capture.EncoderFunc(func(img image.Image) ([]byte, error) {
		return commands.EncodeJPEG(img, quality)
	})
	session := capture.NewSession(device, store, encoder, capture.WithConstraints(capture.Constraints{
		FacingMode: capture.FacingEnvironment,
		Width:      config.Camera.Width,
		Height:     config.Camera.Height,
	}))

	service := &CoreService{
		config:   config,
		store:    store,
		registry: registry,
		session:  session,
		photos:   photolist.NewController(store, registry, thumbnailer, location),
	}
	if err := service.OpenStore(ctx); err != nil {
		slog.Error("record store unavailable, continuing without persistence", "error", err)
	}
	return service, nil
}

// OpenStore opens the record store if it is not open yet. It is called at
// startup and again whenever a page boots.
func (service *CoreService) OpenStore(ctx context.Context) error {
	err := service.store.Open(ctx)

	service.mu.Lock()
	service.storeErr = err
	service.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	slog.Debug("record store ready", "type", service.config.Database.Type)
	return nil
}

// StoreError reports why the store is unavailable, or nil.
func (service *CoreService) StoreError() error {
	service.mu.RLock()
	defer service.mu.RUnlock()
	return service.storeErr
}

func (service *CoreService) Session() *capture.Session {
	return service.session
}

func (service *CoreService) Photos() *photolist.Controller {
	return service.photos
}

func (service *CoreService) Store() database.RecordStore {
	return service.store
}

// Close releases the camera, revokes outstanding handles and closes the store.
func (service *CoreService) Close(ctx context.Context) error {
	var errs []error
	if err := service.session.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop capture session: %w", err))
	}
	service.photos.Close(ctx)
	if err := service.registry.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close handle registry: %w", err))
	}
	if err := service.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close record store: %w", err))
	}
	return errors.Join(errs...)
}
