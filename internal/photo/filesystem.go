package photo

import "io"

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path, stats it, and validates
	// it's a regular file or directory (not a symlink, device, etc.).
	Resolve(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path *Path) (io.ReadCloser, error)

	// FindFiles discovers candidate photo files under root. Files rejected by
	// the manager's extension filter or ignore patterns are not returned.
	// The result is sorted by path. Entries below root that cannot be read
	// are reported as UnreadableFile errors and the walk continues; the
	// error return is only for a root that cannot be scanned at all.
	FindFiles(root *Path, recursive bool) ([]*Path, []*Error, error)

	// Exists reports whether anything exists at absPath.
	Exists(absPath string) (bool, error)

	// WriteFile atomically writes r to absPath, creating parent directories.
	// An existing file at absPath is replaced.
	WriteFile(absPath string, r io.Reader) (int64, error)

	// Copy copies src to dst, creating parent directories. The destination
	// only becomes visible once fully written.
	Copy(src *Path, dst string) error

	// Move moves src to dst, creating parent directories. When a rename is
	// not possible (e.g. across devices) it falls back to copy and remove.
	Move(src *Path, dst string) error
}
