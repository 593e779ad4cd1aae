package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"eventphoto/internal/photo"
)

// FileSystemPublisher copies published objects into a directory tree:
//
//	<root>/
//	  <prefix>/<event>/index.html
//	  <prefix>/<event>/thumbnails/...
type FileSystemPublisher struct {
	name string
	root string
}

// NewFileSystemPublisher creates a publisher rooted at root, creating the
// directory if needed.
func NewFileSystemPublisher(name, root string) (*FileSystemPublisher, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create publish root: %w", err)
	}
	return &FileSystemPublisher{name: name, root: root}, nil
}

func (p *FileSystemPublisher) Name() string {
	return p.name
}

// Root returns the directory objects are written under.
func (p *FileSystemPublisher) Root() string {
	return p.root
}

// PutObject writes r to <root>/<key>. Existing objects are replaced.
func (p *FileSystemPublisher) PutObject(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	destPath, err := p.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return p.writeFile(destPath, r, size)
}

// ValidateSetup verifies that the root directory is accessible.
func (p *FileSystemPublisher) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(p.root)
	if err != nil {
		return fmt.Errorf("publish root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("publish root is not a directory: %s", p.root)
	}
	return nil
}

// objectPath maps a slash-separated key to a path inside root.
func (p *FileSystemPublisher) objectPath(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return filepath.Join(p.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (p *FileSystemPublisher) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemPublisher implements photo.Publisher interface
var _ photo.Publisher = (*FileSystemPublisher)(nil)
