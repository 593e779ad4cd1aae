package organize

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"eventphoto/internal/photo"
)

// LockFileName is created in the destination root while a run executes.
const LockFileName = ".eventphoto.lock"

// DestinationLock is an exclusive, cross-process lock on a destination root.
type DestinationLock struct {
	path string
	fl   *flock.Flock
}

// LockDestination takes the lock for root without blocking. It returns an
// error wrapping photo.ErrDestinationBusy when another run holds it.
func LockDestination(root string) (*DestinationLock, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating destination root: %w", err)
	}
	path := filepath.Join(root, LockFileName)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", photo.ErrDestinationBusy, root)
	}
	return &DestinationLock{path: path, fl: fl}, nil
}

// Path returns the lock file path.
func (l *DestinationLock) Path() string {
	return l.path
}

// Unlock releases the lock.
func (l *DestinationLock) Unlock() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
