package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/jo-hoe/ecotrail/internal/backend/database"
	"github.com/jo-hoe/ecotrail/internal/common"
)

var (
	ErrCameraUnavailable = errors.New("camera unavailable")
	ErrInvalidTransition = errors.New("invalid capture transition")
	// ErrNoPendingImage rejects a save whose snapshot failed to encode or is empty.
	ErrNoPendingImage = errors.New("no pending image")
	ErrEncodingFailed = errors.New("snapshot encoding failed")
)

// RecordAdder is the part of the record store a capture session writes to.
type RecordAdder interface {
	Add(ctx context.Context, record database.NewRecord) (int64, error)
}

type Option func(*Session)

// WithClock replaces time.Now as the source of createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithConstraints sets the stream constraints. A missing facing mode defaults
// to the rear-facing camera.
func WithConstraints(constraints Constraints) Option {
	return func(s *Session) {
		s.constraints = constraints
	}
}

// Session drives Idle -> Streaming -> Staged -> (Saved | Discarded) -> Streaming.
// All methods are safe for concurrent use; transitions are serialized.
type Session struct {
	mu          sync.Mutex
	camera      Camera
	store       RecordAdder
	encoder     Encoder
	constraints Constraints
	now         func() time.Time

	state   State
	outcome Outcome
	stream  Stream
	pending *common.Future[[]byte]
	lastErr error
}

func NewSession(camera Camera, store RecordAdder, encoder Encoder, opts ...Option) *Session {
	s := &Session{
		camera:  camera,
		store:   store,
		encoder: encoder,
		now:     time.Now,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.constraints.FacingMode == FacingAny {
		s.constraints.FacingMode = FacingEnvironment
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// LastError returns the failure of the most recent transition, or nil.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) invalid(action string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, s.state)
}

// Start acquires the camera. A failure moves the session to
// StateCameraUnavailable and is returned wrapped in ErrCameraUnavailable.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle && s.state != StateCameraUnavailable {
		return s.invalid("start")
	}

	stream, err := s.openStream(ctx)
	if err != nil {
		s.state = StateCameraUnavailable
		s.lastErr = fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
		slog.Error("capture session: camera acquisition failed", "error", err)
		return s.lastErr
	}

	s.stream = stream
	s.state = StateStreaming
	s.outcome = OutcomeNone
	s.lastErr = nil
	slog.Info("capture session: streaming", "facing_mode", s.constraints.FacingMode)
	return nil
}

func (s *Session) openStream(ctx context.Context) (Stream, error) {
	constraints := s.constraints
	stream, err := s.camera.Open(ctx, constraints)
	if errors.Is(err, ErrFacingModeUnsupported) {
		slog.Warn("capture session: preferred camera not available, falling back",
			"facing_mode", constraints.FacingMode)
		constraints.FacingMode = FacingAny
		stream, err = s.camera.Open(ctx, constraints)
	}
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Frame returns the current live frame while streaming.
func (s *Session) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	if s.state != StateStreaming {
		err := s.invalid("read live frame")
		s.mu.Unlock()
		return nil, err
	}
	stream := s.stream
	s.mu.Unlock()

	return stream.Frame(ctx)
}

// Shutter freezes the current frame and starts encoding it in the background.
// The session is Staged as soon as the frame is taken; Save waits for the encoding.
func (s *Session) Shutter(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming {
		return s.invalid("take snapshot")
	}

	frame, err := s.stream.Frame(ctx)
	if err != nil {
		s.lastErr = fmt.Errorf("failed to take snapshot: %w", err)
		slog.Error("capture session: snapshot failed", "error", err)
		return s.lastErr
	}

	encoder := s.encoder
	s.pending = common.Go(func() ([]byte, error) {
		start := time.Now()
		data, err := encoder.Encode(frame)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncodingFailed, err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: encoder produced no bytes", ErrEncodingFailed)
		}
		slog.Debug("capture session: snapshot encoded",
			"duration_ms", time.Since(start).Milliseconds(),
			"size_bytes", len(data))
		return data, nil
	})
	s.state = StateStaged
	s.lastErr = nil
	return nil
}

// Pending waits for the staged snapshot's encoded bytes.
func (s *Session) Pending(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if s.state != StateStaged {
		err := s.invalid("read pending image")
		s.mu.Unlock()
		return nil, err
	}
	pending := s.pending
	s.mu.Unlock()

	return pending.Await(ctx)
}

// Retake discards the staged snapshot without touching the store.
func (s *Session) Retake() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStaged {
		return s.invalid("retake")
	}
	s.pending = nil
	s.state = StateStreaming
	s.outcome = OutcomeDiscarded
	s.lastErr = nil
	return nil
}

// Save waits for encoding to finish, then adds the image to the store. On any
// failure the session stays Staged so the user can retry or retake.
func (s *Session) Save(ctx context.Context) (int64, error) {
	s.mu.Lock()
	if s.state != StateStaged {
		err := s.invalid("save")
		s.mu.Unlock()
		return 0, err
	}
	pending := s.pending
	s.mu.Unlock()

	if !pending.Ready() {
		slog.Debug("capture session: save waiting for snapshot encoding")
	}
	data, encodeErr := pending.Await(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	// a retake or a concurrent save may have replaced the snapshot while waiting
	if s.state != StateStaged || s.pending != pending {
		return 0, s.invalid("save a replaced snapshot")
	}
	if encodeErr != nil {
		s.lastErr = fmt.Errorf("%w: %w", ErrNoPendingImage, encodeErr)
		slog.Error("capture session: save rejected", "error", encodeErr)
		return 0, s.lastErr
	}
	if len(data) == 0 {
		s.lastErr = fmt.Errorf("%w: encoded image is empty", ErrNoPendingImage)
		return 0, s.lastErr
	}

	id, err := s.store.Add(ctx, database.NewRecord{Image: data, CreatedAt: s.now()})
	if err != nil {
		s.lastErr = fmt.Errorf("failed to save photo: %w", err)
		slog.Error("capture session: save failed", "error", err)
		return 0, s.lastErr
	}

	s.pending = nil
	s.state = StateStreaming
	s.outcome = OutcomeSaved
	s.lastErr = nil
	slog.Info("capture session: photo saved", "id", id, "size_bytes", len(data))
	return id, nil
}

// Stop releases the camera and returns to Idle.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.stream != nil {
		err = s.stream.Close()
		s.stream = nil
	}
	s.pending = nil
	s.state = StateIdle
	return err
}
