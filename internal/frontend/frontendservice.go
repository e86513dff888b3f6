package frontend

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jo-hoe/ecotrail/internal/core"
	"github.com/jo-hoe/ecotrail/internal/handles"
	"github.com/jo-hoe/ecotrail/internal/photolist"
	"github.com/labstack/echo/v4"
)

const (
	CapturePageName = "capture.html"
	PhotosPageName  = "photos.html"
)

type FrontendService struct {
	coreService *core.CoreService
}

func NewFrontendService(coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
	}
}

// rootRedirectHandler redirects root path to the capture page
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+CapturePageName)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = NewTemplate()

	e.GET("/", service.rootRedirectHandler)
	e.GET("/"+CapturePageName, service.capturePageHandler)
	e.GET("/"+PhotosPageName, service.photosPageHandler)

	// Capture session transitions
	e.POST("/htmx/capture/start", service.htmxCaptureStartHandler)
	e.POST("/htmx/capture/shutter", service.htmxCaptureShutterHandler)
	e.POST("/htmx/capture/retake", service.htmxCaptureRetakeHandler)
	e.POST("/htmx/capture/save", service.htmxCaptureSaveHandler)
	e.GET("/capture/preview", service.capturePreviewHandler)
	e.GET("/capture/stream", service.captureStreamHandler)

	// Photo list
	e.GET("/htmx/photos", service.htmxListPhotosHandler)
	e.GET("/htmx/photo/:id/edit", service.htmxEditTitleHandler)
	e.PUT("/htmx/photo/:id/title", service.htmxCommitTitleHandler)
	e.DELETE("/htmx/photo/:id", service.htmxDeletePhotoHandler)
	e.GET("/handle/:token", service.handleHandler)

	e.GET("/icon.svg", service.iconHandler)
	e.GET("/probe", service.probeHandler)
}

func (service *FrontendService) capturePageHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, CapturePageName, nil)
}

func (service *FrontendService) photosPageHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, PhotosPageName, nil)
}

type titleRequest struct {
	Title string `form:"title" validate:"max=200"`
}

func (service *FrontendService) htmxListPhotosHandler(ctx echo.Context) error {
	service.openStore(ctx, "htmxListPhotosHandler")

	photos := service.coreService.Photos()
	if err := photos.Load(ctx.Request().Context()); err != nil {
		slog.Error("htmxListPhotosHandler: failed to load photos", "error", err)
	}

	// Prevent caching so the latest photos and fresh handles are always shown
	service.setNoCache(ctx)
	return ctx.HTML(http.StatusOK, buildPhotoListHTML(photos.View()))
}

func (service *FrontendService) htmxEditTitleHandler(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		slog.Warn("htmxEditTitleHandler: invalid photo id", "status", http.StatusBadRequest, "id", ctx.Param("id"))
		return ctx.String(http.StatusBadRequest, "Invalid photo ID")
	}

	entry, err := service.coreService.Photos().BeginEdit(id)
	if err != nil {
		slog.Warn("htmxEditTitleHandler: photo not in list", "status", http.StatusNotFound, "id", id, "error", err)
		return ctx.String(http.StatusNotFound, "Photo not found")
	}
	return ctx.HTML(http.StatusOK, buildTitleHTML(entry))
}

func (service *FrontendService) htmxCommitTitleHandler(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		slog.Warn("htmxCommitTitleHandler: invalid photo id", "status", http.StatusBadRequest, "id", ctx.Param("id"))
		return ctx.String(http.StatusBadRequest, "Invalid photo ID")
	}

	var request titleRequest
	if err := ctx.Bind(&request); err != nil {
		slog.Warn("htmxCommitTitleHandler: failed to bind request", "status", http.StatusBadRequest, "error", err)
		return ctx.String(http.StatusBadRequest, "Invalid title")
	}
	if err := ctx.Validate(&request); err != nil {
		slog.Warn("htmxCommitTitleHandler: invalid title", "status", http.StatusBadRequest, "id", id, "error", err)
		return ctx.String(http.StatusBadRequest, "Title is too long")
	}

	entry, err := service.coreService.Photos().CommitTitle(ctx.Request().Context(), id, request.Title)
	if errors.Is(err, photolist.ErrEntryNotFound) {
		return ctx.String(http.StatusNotFound, "Photo not found")
	}
	if err != nil {
		// the entry has been rolled back, swap the restored label in and explain
		return ctx.HTML(http.StatusOK, buildTitleHTML(entry)+ackOOB(ackTitleSaveFailed, true))
	}
	return ctx.HTML(http.StatusOK, buildTitleHTML(entry))
}

func (service *FrontendService) htmxDeletePhotoHandler(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		slog.Warn("htmxDeletePhotoHandler: invalid photo id", "status", http.StatusBadRequest, "id", ctx.Param("id"))
		return ctx.String(http.StatusBadRequest, "Invalid photo ID")
	}
	confirmed, _ := strconv.ParseBool(ctx.QueryParam("confirm"))

	photos := service.coreService.Photos()
	err = photos.Delete(ctx.Request().Context(), id, confirmed)
	switch {
	case errors.Is(err, photolist.ErrDeleteNotConfirmed):
		return ctx.String(http.StatusBadRequest, "Delete must be confirmed")
	case errors.Is(err, photolist.ErrEntryNotFound):
		return ctx.String(http.StatusNotFound, "Photo not found")
	case err != nil:
		// non-2xx responses are not swapped, so the entry stays visible
		return ctx.String(http.StatusInternalServerError, ackDeleteFailed)
	}

	service.setNoCache(ctx)
	if photos.View().Status == photolist.StatusEmpty {
		return ctx.HTML(http.StatusOK, fmt.Sprintf(`<div id="photo-list" hx-swap-oob="true">%s</div>`, emptyPhotoListHTML()))
	}
	return ctx.HTML(http.StatusOK, "")
}

// handleHandler serves a thumbnail handle once. The handle is released as it is read.
func (service *FrontendService) handleHandler(ctx echo.Context) error {
	token := ctx.Param("token")
	data, contentType, err := service.coreService.Photos().ConsumeHandle(ctx.Request().Context(), token)
	if errors.Is(err, handles.ErrHandleNotFound) {
		slog.Debug("handleHandler: handle not available", "status", http.StatusNotFound, "token", token)
		return ctx.String(http.StatusNotFound, "Image not available")
	}
	if err != nil {
		slog.Error("handleHandler: failed to read handle", "status", http.StatusInternalServerError, "token", token, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load image")
	}

	service.setNoCache(ctx)
	return ctx.Blob(http.StatusOK, contentType, data)
}

func (service *FrontendService) openStore(ctx echo.Context, handler string) {
	if err := service.coreService.OpenStore(ctx.Request().Context()); err != nil {
		slog.Error(handler+": record store unavailable", "error", err)
	}
}

func (service *FrontendService) probeHandler(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "ok")
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

func (service *FrontendService) timestampNanoStr() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

func parseID(ctx echo.Context) (int64, error) {
	return strconv.ParseInt(ctx.Param("id"), 10, 64)
}
