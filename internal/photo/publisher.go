package photo

import (
	"context"
	"io"
)

// Publisher provides an interface for gallery publishing targets.
// All operations use io.Reader for streaming so large photos are not
// loaded into memory.
type Publisher interface {
	// Name identifies the target in logs.
	Name() string

	// PutObject stores r under key. size is the number of bytes that will be
	// read from r. Storing the same key again replaces the object.
	PutObject(ctx context.Context, key string, r io.Reader, size int64) error

	// ValidateSetup verifies that the target is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}
