package policies

import (
	"context"
	"io"
)

// PhotoStorage keeps uploaded originals and returns their public URL.
type PhotoStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (publicURL string, err error)
	// Remove deletes an object. Missing objects are not an error.
	Remove(ctx context.Context, key string) error
}
