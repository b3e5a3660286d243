package core

import (
	"context"
	"io"
)

// ImageStore is any service that can persist uploaded images.
type ImageStore interface {
	// Save stores the content under a unique name derived from filename and returns its public reference.
	Save(ctx context.Context, filename, contentType string, content io.Reader) (string, error)
	// Delete removes a previously saved image by reference.
	Delete(ctx context.Context, ref string) error
}
