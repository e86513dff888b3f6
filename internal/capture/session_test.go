package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/jo-hoe/ecotrail/internal/backend/database"
)

type fakeStream struct {
	mu       sync.Mutex
	frameErr error
	closed   bool
	frames   int
}

func (s *fakeStream) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameErr != nil {
		return nil, s.frameErr
	}
	s.frames++
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(0, 0, color.RGBA{R: uint8(s.frames), A: 255})
	return img, nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeCamera struct {
	mu          sync.Mutex
	stream      *fakeStream
	supported   map[FacingMode]bool
	err         error
	requested   []FacingMode
	openedCount int
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{
		stream:    &fakeStream{},
		supported: map[FacingMode]bool{FacingEnvironment: true, FacingAny: true},
	}
}

func (c *fakeCamera) Open(ctx context.Context, constraints Constraints) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requested = append(c.requested, constraints.FacingMode)
	if c.err != nil {
		return nil, c.err
	}
	if !c.supported[constraints.FacingMode] {
		return nil, ErrFacingModeUnsupported
	}
	c.openedCount++
	return c.stream, nil
}

type fakeStore struct {
	mu      sync.Mutex
	err     error
	records []database.NewRecord
}

func (s *fakeStore) Add(ctx context.Context, record database.NewRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.records = append(s.records, record)
	return int64(len(s.records)), nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

var fixedBytes = []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}

func fixedEncoder() Encoder {
	return EncoderFunc(func(img image.Image) ([]byte, error) {
		return append([]byte(nil), fixedBytes...), nil
	})
}

func newStreamingSession(t *testing.T, store *fakeStore, encoder Encoder, opts ...Option) (*Session, *fakeCamera) {
	t.Helper()
	camera := newFakeCamera()
	session := NewSession(camera, store, encoder, opts...)
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	return session, camera
}

func TestSession_StartPrefersRearCamera(t *testing.T) {
	session, camera := newStreamingSession(t, &fakeStore{}, fixedEncoder())

	if session.State() != StateStreaming {
		t.Fatalf("expected streaming, got %s", session.State())
	}
	if len(camera.requested) != 1 || camera.requested[0] != FacingEnvironment {
		t.Errorf("expected a single rear-facing request, got %v", camera.requested)
	}
}

func TestSession_StartFallsBackWithoutFacingMode(t *testing.T) {
	camera := newFakeCamera()
	camera.supported = map[FacingMode]bool{FacingAny: true}
	session := NewSession(camera, &fakeStore{}, fixedEncoder())

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if session.State() != StateStreaming {
		t.Fatalf("expected streaming, got %s", session.State())
	}
	want := []FacingMode{FacingEnvironment, FacingAny}
	if len(camera.requested) != len(want) {
		t.Fatalf("expected requests %v, got %v", want, camera.requested)
	}
	for i := range want {
		if camera.requested[i] != want[i] {
			t.Errorf("request %d: expected %q, got %q", i, want[i], camera.requested[i])
		}
	}
}

func TestSession_StartCameraUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "permission denied", err: ErrPermissionDenied},
		{name: "no device", err: ErrNoDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			camera := newFakeCamera()
			camera.err = tt.err
			session := NewSession(camera, &fakeStore{}, fixedEncoder())

			err := session.Start(context.Background())
			if !errors.Is(err, ErrCameraUnavailable) {
				t.Fatalf("expected ErrCameraUnavailable, got %v", err)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("expected cause %v to be preserved, got %v", tt.err, err)
			}
			if session.State() != StateCameraUnavailable {
				t.Errorf("expected camera-unavailable, got %s", session.State())
			}

			// a later attempt succeeds once the camera is back
			camera.err = nil
			if err := session.Start(context.Background()); err != nil {
				t.Fatalf("retry Start error: %v", err)
			}
			if session.State() != StateStreaming {
				t.Errorf("expected streaming after retry, got %s", session.State())
			}
		})
	}
}

func TestSession_ShutterSaveRecordsExactBytes(t *testing.T) {
	store := &fakeStore{}
	session, _ := newStreamingSession(t, store, fixedEncoder())
	ctx := context.Background()

	before := time.Now()
	if err := session.Shutter(ctx); err != nil {
		t.Fatalf("Shutter error: %v", err)
	}
	if session.State() != StateStaged {
		t.Fatalf("expected staged, got %s", session.State())
	}

	id, err := session.Save(ctx)
	after := time.Now()
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if id != 1 {
		t.Errorf("expected id 1, got %d", id)
	}
	if session.State() != StateStreaming || session.Outcome() != OutcomeSaved {
		t.Errorf("expected streaming/saved, got %s/%s", session.State(), session.Outcome())
	}
	if store.count() != 1 {
		t.Fatalf("expected exactly one record, got %d", store.count())
	}
	record := store.records[0]
	if !bytes.Equal(record.Image, fixedBytes) {
		t.Errorf("stored bytes differ from encoded bytes")
	}
	if record.CreatedAt.Before(before) || record.CreatedAt.After(after) {
		t.Errorf("createdAt %v outside [%v, %v]", record.CreatedAt, before, after)
	}
}

func TestSession_RetakeDoesNotTouchStore(t *testing.T) {
	store := &fakeStore{}
	session, _ := newStreamingSession(t, store, fixedEncoder())
	ctx := context.Background()

	if err := session.Shutter(ctx); err != nil {
		t.Fatalf("Shutter error: %v", err)
	}
	if err := session.Retake(); err != nil {
		t.Fatalf("Retake error: %v", err)
	}
	if session.State() != StateStreaming || session.Outcome() != OutcomeDiscarded {
		t.Errorf("expected streaming/discarded, got %s/%s", session.State(), session.Outcome())
	}
	if store.count() != 0 {
		t.Errorf("expected no records after retake, got %d", store.count())
	}
	if _, err := session.Save(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for save after retake, got %v", err)
	}
}

func TestSession_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	session := NewSession(newFakeCamera(), &fakeStore{}, fixedEncoder())

	if err := session.Shutter(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Shutter while idle: expected ErrInvalidTransition, got %v", err)
	}
	if err := session.Retake(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Retake while idle: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := session.Save(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Save while idle: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := session.Frame(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Frame while idle: expected ErrInvalidTransition, got %v", err)
	}

	if err := session.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := session.Start(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Start while streaming: expected ErrInvalidTransition, got %v", err)
	}
	if err := session.Shutter(ctx); err != nil {
		t.Fatalf("Shutter error: %v", err)
	}
	if err := session.Shutter(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Shutter while staged: expected ErrInvalidTransition, got %v", err)
	}
}

func TestSession_SaveFailureStaysStaged(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	session, _ := newStreamingSession(t, store, fixedEncoder())
	ctx := context.Background()

	if err := session.Shutter(ctx); err != nil {
		t.Fatalf("Shutter error: %v", err)
	}
	if _, err := session.Save(ctx); err == nil {
		t.Fatal("expected save error")
	}
	if session.State() != StateStaged {
		t.Fatalf("expected staged after failed save, got %s", session.State())
	}
	if session.LastError() == nil {
		t.Error("expected LastError to be set")
	}

	// the staged image survives and can be saved once the store recovers
	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()
	if _, err := session.Save(ctx); err != nil {
		t.Fatalf("retry Save error: %v", err)
	}
	if store.count() != 1 {
		t.Errorf("expected one record after retry, got %d", store.count())
	}
}

func TestSession_SaveRejectsFailedEncoding(t *testing.T) {
	tests := []struct {
		name    string
		encoder Encoder
	}{
		{
			name: "encoder error",
			encoder: EncoderFunc(func(img image.Image) ([]byte, error) {
				return nil, errors.New("boom")
			}),
		},
		{
			name: "empty output",
			encoder: EncoderFunc(func(img image.Image) ([]byte, error) {
				return []byte{}, nil
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			session, _ := newStreamingSession(t, store, tt.encoder)
			ctx := context.Background()

			if err := session.Shutter(ctx); err != nil {
				t.Fatalf("Shutter error: %v", err)
			}
			_, err := session.Save(ctx)
			if !errors.Is(err, ErrNoPendingImage) {
				t.Fatalf("expected ErrNoPendingImage, got %v", err)
			}
			if !errors.Is(err, ErrEncodingFailed) {
				t.Errorf("expected ErrEncodingFailed cause, got %v", err)
			}
			if store.count() != 0 {
				t.Errorf("expected no records, got %d", store.count())
			}
			if err := session.Retake(); err != nil {
				t.Errorf("Retake after failed encoding: %v", err)
			}
		})
	}
}

func TestSession_SaveWaitsForSlowEncoding(t *testing.T) {
	release := make(chan struct{})
	encoder := EncoderFunc(func(img image.Image) ([]byte, error) {
		<-release
		return fixedBytes, nil
	})
	store := &fakeStore{}
	session, _ := newStreamingSession(t, store, encoder)
	ctx := context.Background()

	if err := session.Shutter(ctx); err != nil {
		t.Fatalf("Shutter error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := session.Save(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Save returned before encoding finished: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if store.count() != 1 || !bytes.Equal(store.records[0].Image, fixedBytes) {
		t.Errorf("expected the encoded bytes to be stored once")
	}
}

func TestSession_ConcurrentSavesStoreOnce(t *testing.T) {
	store := &fakeStore{}
	session, _ := newStreamingSession(t, store, fixedEncoder())
	ctx := context.Background()

	if err := session.Shutter(ctx); err != nil {
		t.Fatalf("Shutter error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := session.Save(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one successful save, got %d", succeeded)
	}
	if store.count() != 1 {
		t.Errorf("expected exactly one record, got %d", store.count())
	}
}

func TestSession_PendingAndFrame(t *testing.T) {
	session, _ := newStreamingSession(t, &fakeStore{}, fixedEncoder())
	ctx := context.Background()

	frame, err := session.Frame(ctx)
	if err != nil {
		t.Fatalf("Frame error: %v", err)
	}
	if frame.Bounds().Dx() != 4 {
		t.Errorf("expected frame width 4, got %d", frame.Bounds().Dx())
	}

	if err := session.Shutter(ctx); err != nil {
		t.Fatalf("Shutter error: %v", err)
	}
	data, err := session.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending error: %v", err)
	}
	if !bytes.Equal(data, fixedBytes) {
		t.Errorf("unexpected pending bytes")
	}
	if _, err := session.Frame(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Frame while staged: expected ErrInvalidTransition, got %v", err)
	}
}

func TestSession_ShutterFrameError(t *testing.T) {
	session, camera := newStreamingSession(t, &fakeStore{}, fixedEncoder())
	camera.stream.frameErr = errors.New("device lost")

	if err := session.Shutter(context.Background()); err == nil {
		t.Fatal("expected Shutter error")
	}
	if session.State() != StateStreaming {
		t.Errorf("expected streaming after failed shutter, got %s", session.State())
	}
}

func TestSession_StopReleasesCamera(t *testing.T) {
	session, camera := newStreamingSession(t, &fakeStore{}, fixedEncoder())

	if err := session.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if !camera.stream.closed {
		t.Error("expected stream to be closed")
	}
	if session.State() != StateIdle {
		t.Errorf("expected idle, got %s", session.State())
	}
}

func TestSession_WithClock(t *testing.T) {
	fixed := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	store := &fakeStore{}
	session, _ := newStreamingSession(t, store, fixedEncoder(), WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	if err := session.Shutter(ctx); err != nil {
		t.Fatalf("Shutter error: %v", err)
	}
	if _, err := session.Save(ctx); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if !store.records[0].CreatedAt.Equal(fixed) {
		t.Errorf("expected createdAt %v, got %v", fixed, store.records[0].CreatedAt)
	}
}
