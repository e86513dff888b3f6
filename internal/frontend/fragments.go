package frontend

import (
	"fmt"
	"html"
	"strings"

	"github.com/jo-hoe/ecotrail/internal/capture"
	"github.com/jo-hoe/ecotrail/internal/photolist"
)

const (
	ackPhotoSaved        = "Photo saved."
	ackPhotoSaveFailed   = "Failed to save photo."
	ackCameraUnavailable = "The camera could not be started. Please allow camera access for this page and make sure a camera is connected."
	ackTitleSaveFailed   = "Failed to save title."
	ackDeleteFailed      = "Failed to delete photo."
)

// ackOOB replaces the acknowledgment line out of band.
func ackOOB(message string, isError bool) string {
	class := ""
	if isError {
		class = ` class="error"`
	}
	return fmt.Sprintf(`<p id="ack" role="status" hx-swap-oob="true"%s>%s</p>`, class, html.EscapeString(message))
}

func buildCapturePanelHTML(state capture.State, ts string) string {
	switch state {
	case capture.StateStreaming:
		return `<figure><img id="live" alt="Live camera preview" style="width:100%;background:#222;min-height:12rem"></figure>
<div role="group">
	<button hx-post="/htmx/capture/shutter" hx-target="#capture" hx-swap="innerHTML">Take photo</button>
</div>`
	case capture.StateStaged:
		return fmt.Sprintf(`<figure><img id="snapshot" src="/capture/preview?ts=%s" alt="Captured photo" style="width:100%%"></figure>
<div role="group">
	<button hx-post="/htmx/capture/retake" hx-target="#capture" hx-swap="innerHTML" class="secondary">Retake</button>
	<button hx-post="/htmx/capture/save" hx-target="#capture" hx-swap="innerHTML" hx-disabled-elt="this">Save</button>
</div>`, html.EscapeString(ts))
	case capture.StateCameraUnavailable:
		return fmt.Sprintf(`<article class="error" role="alert">%s</article>
<button hx-post="/htmx/capture/start" hx-target="#capture" hx-swap="innerHTML">Try again</button>`,
			html.EscapeString(ackCameraUnavailable))
	default:
		return `<p class="placeholder">Camera is off.</p>
<button hx-post="/htmx/capture/start" hx-target="#capture" hx-swap="innerHTML">Start camera</button>`
	}
}

func buildPhotoListHTML(view photolist.View) string {
	switch view.Status {
	case photolist.StatusError:
		return `<p class="placeholder error">Photos could not be loaded.</p>`
	case photolist.StatusEmpty, photolist.StatusUnloaded:
		return emptyPhotoListHTML()
	}

	var b strings.Builder
	for _, entry := range view.Entries {
		b.WriteString(buildPhotoEntryHTML(entry))
	}
	return b.String()
}

func emptyPhotoListHTML() string {
	return `<p class="placeholder">No photos yet.</p>`
}

func buildPhotoEntryHTML(entry photolist.Entry) string {
	image := `<p class="placeholder">No preview</p>`
	if entry.Thumbnail.Token != "" {
		image = fmt.Sprintf(`<img src="%s" alt="%s" loading="lazy">`,
			html.EscapeString(entry.Thumbnail.URL()), html.EscapeString(entry.Label()))
	}

	return fmt.Sprintf(`<article class="photo-entry" id="photo-%d">
	%s
	<footer style="display:flex;gap:0.5rem;align-items:center;flex-wrap:wrap">
		%s
		<small>%s</small>
		<div style="display:flex;gap:0.5rem;margin-left:auto">
			<button class="outline" disabled aria-label="Pin on map" title="Pin on map">Pin</button>
			<button class="outline" disabled aria-label="Upload" title="Upload">Upload</button>
			<button hx-delete="/htmx/photo/%d?confirm=true" hx-confirm="Delete this photo?" hx-target="#photo-%d" hx-swap="outerHTML swap:300ms" class="secondary">Delete</button>
		</div>
	</footer>
</article>`, entry.ID, image, buildTitleHTML(entry), html.EscapeString(entry.Date), entry.ID, entry.ID)
}

// buildTitleHTML renders either the title label or its inline editor.
func buildTitleHTML(entry photolist.Entry) string {
	if entry.Editing {
		return fmt.Sprintf(`<form id="photo-%d-title" hx-put="/htmx/photo/%d/title" hx-trigger="submit, focusout" hx-swap="outerHTML" style="margin:0">
	<input type="text" name="title" value="%s" maxlength="200" aria-label="Photo title" autofocus onfocus="this.select()">
</form>`, entry.ID, entry.ID, html.EscapeString(entry.Title))
	}
	return fmt.Sprintf(`<span id="photo-%d-title">
	<strong class="photo-title" hx-get="/htmx/photo/%d/edit" hx-target="#photo-%d-title" hx-swap="outerHTML">%s</strong>
	<button class="outline" hx-get="/htmx/photo/%d/edit" hx-target="#photo-%d-title" hx-swap="outerHTML" aria-label="Edit title" title="Edit title">Edit</button>
</span>`, entry.ID, entry.ID, entry.ID, html.EscapeString(entry.Label()), entry.ID, entry.ID)
}
