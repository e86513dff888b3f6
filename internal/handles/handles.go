// Package handles issues short-lived, revocable references to image bytes so
// a rendering surface can address a thumbnail without the page holding the
// bytes. A handle is released either when it is consumed or when its owner
// revokes it.
package handles

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrHandleNotFound = errors.New("handle not found or already released")

type Handle struct {
	Token       string
	ContentType string
	Size        int
}

// URL is the path the frontend serves the handle from.
func (h Handle) URL() string {
	return "/handle/" + h.Token
}

type Registry interface {
	Create(ctx context.Context, data []byte, contentType string) (Handle, error)
	// Consume returns the bytes and releases the handle in one step.
	Consume(ctx context.Context, token string) ([]byte, string, error)
	// Release revokes a handle. Releasing an unknown token is not an error.
	Release(ctx context.Context, token string) error
	Outstanding(ctx context.Context) (int, error)
	Close() error
}

func newToken() string {
	return uuid.NewString()
}
