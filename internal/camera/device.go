// Package camera implements the capture Camera boundary on top of OpenCV
// video capture devices.
package camera

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/jo-hoe/ecotrail/internal/capture"
	"gocv.io/x/gocv"
)

// DeviceConfig names the capture devices. A device is an index ("0") or a
// path/URL understood by OpenCV. Empty rear or front devices mean the
// machine has no camera facing that way.
type DeviceConfig struct {
	Device      string
	RearDevice  string
	FrontDevice string
}

type DeviceCamera struct {
	config DeviceConfig
}

func NewDeviceCamera(config DeviceConfig) *DeviceCamera {
	if config.Device == "" {
		config.Device = "0"
	}
	return &DeviceCamera{config: config}
}

func (c *DeviceCamera) resolveDevice(mode capture.FacingMode) (string, error) {
	switch mode {
	case capture.FacingEnvironment:
		if c.config.RearDevice == "" {
			return "", capture.ErrFacingModeUnsupported
		}
		return c.config.RearDevice, nil
	case capture.FacingUser:
		if c.config.FrontDevice == "" {
			return "", capture.ErrFacingModeUnsupported
		}
		return c.config.FrontDevice, nil
	case capture.FacingAny:
		return c.config.Device, nil
	default:
		return "", fmt.Errorf("%w: %q", capture.ErrFacingModeUnsupported, mode)
	}
}

func (c *DeviceCamera) Open(ctx context.Context, constraints capture.Constraints) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	device, err := c.resolveDevice(constraints.FacingMode)
	if err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", capture.ErrNoDevice, device, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w: %s could not be opened", capture.ErrNoDevice, device)
	}
	if constraints.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(constraints.Width))
	}
	if constraints.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(constraints.Height))
	}

	slog.Info("camera device opened",
		"device", device,
		"facing_mode", constraints.FacingMode,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight))

	return &deviceStream{device: device, vc: vc, mat: gocv.NewMat()}, nil
}

type deviceStream struct {
	mu     sync.Mutex
	device string
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

func (s *deviceStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("camera stream %s is closed", s.device)
	}
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, fmt.Errorf("failed to read frame from %s", s.device)
	}
	// ToImage copies the pixels, so the Mat can be reused for the next read
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame from %s: %w", s.device, err)
	}
	return img, nil
}

func (s *deviceStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	matErr := s.mat.Close()
	if err := s.vc.Close(); err != nil {
		return err
	}
	slog.Info("camera device released", "device", s.device)
	return matErr
}
