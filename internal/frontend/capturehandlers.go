package frontend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jo-hoe/ecotrail/internal/backend/commands"
	"github.com/jo-hoe/ecotrail/internal/capture"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

const (
	streamFrameInterval = 100 * time.Millisecond
	streamJPEGQuality   = 70
	streamPongWait      = 60 * time.Second
	streamWriteWait     = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 64 * 1024,
}

// htmxCaptureStartHandler boots the capture page: the store is opened first,
// then the camera. A store failure is logged and capture continues.
func (service *FrontendService) htmxCaptureStartHandler(ctx echo.Context) error {
	service.openStore(ctx, "htmxCaptureStartHandler")

	session := service.coreService.Session()
	state := session.State()
	if state == capture.StateStreaming || state == capture.StateStaged {
		// page reload while the session is already running
		return ctx.HTML(http.StatusOK, buildCapturePanelHTML(state, service.timestampNanoStr()))
	}

	if err := session.Start(ctx.Request().Context()); err != nil {
		slog.Error("htmxCaptureStartHandler: camera unavailable", "error", err)
		return ctx.HTML(http.StatusOK,
			buildCapturePanelHTML(session.State(), service.timestampNanoStr())+ackOOB(ackCameraUnavailable, true))
	}
	return ctx.HTML(http.StatusOK, buildCapturePanelHTML(session.State(), service.timestampNanoStr())+ackOOB("", false))
}

func (service *FrontendService) htmxCaptureShutterHandler(ctx echo.Context) error {
	session := service.coreService.Session()
	if err := session.Shutter(ctx.Request().Context()); err != nil {
		slog.Error("htmxCaptureShutterHandler: snapshot failed", "error", err)
		return ctx.HTML(http.StatusOK,
			buildCapturePanelHTML(session.State(), service.timestampNanoStr())+ackOOB("Failed to take photo.", true))
	}
	return ctx.HTML(http.StatusOK, buildCapturePanelHTML(session.State(), service.timestampNanoStr())+ackOOB("", false))
}

func (service *FrontendService) htmxCaptureRetakeHandler(ctx echo.Context) error {
	session := service.coreService.Session()
	if err := session.Retake(); err != nil {
		slog.Warn("htmxCaptureRetakeHandler: retake rejected", "error", err)
	}
	return ctx.HTML(http.StatusOK, buildCapturePanelHTML(session.State(), service.timestampNanoStr())+ackOOB("", false))
}

func (service *FrontendService) htmxCaptureSaveHandler(ctx echo.Context) error {
	session := service.coreService.Session()
	id, err := session.Save(ctx.Request().Context())
	if err != nil {
		slog.Error("htmxCaptureSaveHandler: failed to save photo", "error", err)
		return ctx.HTML(http.StatusOK,
			buildCapturePanelHTML(session.State(), service.timestampNanoStr())+ackOOB(ackPhotoSaveFailed, true))
	}

	slog.Info("htmxCaptureSaveHandler: photo saved", "id", id)
	return ctx.HTML(http.StatusOK, buildCapturePanelHTML(session.State(), service.timestampNanoStr())+ackOOB(ackPhotoSaved, false))
}

// capturePreviewHandler serves the frozen snapshot, waiting for its encoding.
func (service *FrontendService) capturePreviewHandler(ctx echo.Context) error {
	data, err := service.coreService.Session().Pending(ctx.Request().Context())
	if errors.Is(err, capture.ErrInvalidTransition) {
		return ctx.String(http.StatusNotFound, "No photo staged")
	}
	if err != nil {
		slog.Error("capturePreviewHandler: snapshot not available", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Snapshot not available")
	}

	service.setNoCache(ctx)
	return ctx.Blob(http.StatusOK, commands.ContentType(), data)
}

// captureStreamHandler pushes live JPEG frames over a websocket while the
// session is streaming. Frames pause while a snapshot is staged.
func (service *FrontendService) captureStreamHandler(ctx echo.Context) error {
	connection, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		slog.Error("captureStreamHandler: websocket upgrade failed", "error", err)
		return nil
	}
	slog.Debug("captureStreamHandler: viewer connected", "remote_ip", ctx.RealIP())

	group, groupCtx := errgroup.WithContext(ctx.Request().Context())
	group.Go(func() error {
		return readUntilClosed(connection)
	})
	group.Go(func() error {
		return service.writeFrames(groupCtx, connection)
	})
	// unblock the reader once either side is done
	group.Go(func() error {
		<-groupCtx.Done()
		_ = connection.Close()
		return nil
	})

	if err := group.Wait(); err != nil && !isExpectedClose(err) {
		slog.Warn("captureStreamHandler: stream ended", "error", err)
	}
	slog.Debug("captureStreamHandler: viewer disconnected")
	return nil
}

// readUntilClosed drains client messages so close and pong frames are processed.
func readUntilClosed(connection *websocket.Conn) error {
	connection.SetReadLimit(512)
	_ = connection.SetReadDeadline(time.Now().Add(streamPongWait))
	connection.SetPongHandler(func(string) error {
		return connection.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := connection.ReadMessage(); err != nil {
			return err
		}
	}
}

func (service *FrontendService) writeFrames(ctx context.Context, connection *websocket.Conn) error {
	ticker := time.NewTicker(streamFrameInterval)
	defer ticker.Stop()
	pingTicker := time.NewTicker(streamPongWait / 2)
	defer pingTicker.Stop()

	session := service.coreService.Session()
	for {
		select {
		case <-ctx.Done():
			_ = connection.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(streamWriteWait))
			return nil
		case <-pingTicker.C:
			if err := connection.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return err
			}
		case <-ticker.C:
			frame, err := session.Frame(ctx)
			if errors.Is(err, capture.ErrInvalidTransition) {
				continue
			}
			if err != nil {
				slog.Warn("captureStreamHandler: failed to read frame", "error", err)
				continue
			}
			data, err := commands.EncodeJPEG(frame, streamJPEGQuality)
			if err != nil {
				slog.Warn("captureStreamHandler: failed to encode frame", "error", err)
				continue
			}
			_ = connection.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := connection.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return err
			}
		}
	}
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
		errors.Is(err, context.Canceled)
}
