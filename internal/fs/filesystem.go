package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"eventphoto/internal/photo"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// Discovery applies an extension filter plus ignore patterns from config and
// from an .epoignore file at the scanned root.
type OSFilesystemManager struct {
	filter *ExtensionFilter
	ignore []string
}

// NewOSFilesystemManager creates a filesystem manager that operates on the real filesystem.
// A nil filter accepts DefaultExtensions.
func NewOSFilesystemManager(filter *ExtensionFilter, ignorePatterns []string) *OSFilesystemManager {
	if filter == nil {
		filter = NewExtensionFilter(DefaultExtensions, nil)
	}
	return &OSFilesystemManager{
		filter: filter,
		ignore: ignorePatterns,
	}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*photo.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	// Check for special file types we don't support
	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return photo.NewPath(absPath, info.IsDir(), info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *photo.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// FindFiles discovers candidate photo files under the given directory path.
// An unreadable subdirectory or file is recorded and skipped.
func (m *OSFilesystemManager) FindFiles(root *photo.Path, recursive bool) ([]*photo.Path, []*photo.Error, error) {
	if !root.IsDir() {
		return nil, nil, fmt.Errorf("path is not a directory: %s", root.String())
	}

	filePatterns, err := ParseIgnoreFile(filepath.Join(root.String(), IgnoreFileName))
	if err != nil {
		return nil, nil, err
	}
	matcher := NewIgnoreMatcher(append(append([]string{}, m.ignore...), filePatterns...))

	var paths []*photo.Path
	var failures []*photo.Error
	err = filepath.WalkDir(root.String(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root.String() {
				return err
			}
			failures = append(failures, photo.NewError(photo.KindUnreadableFile, p, err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root.String() {
			return nil
		}
		rel, err := filepath.Rel(root.String(), p)
		if err != nil {
			return fmt.Errorf("calculating relative path: %w", err)
		}
		if d.IsDir() {
			if !recursive || matcher.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matcher.Match(rel) || !m.filter.Allow(filepath.Ext(p)) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			failures = append(failures, photo.NewError(photo.KindUnreadableFile, p, fmt.Errorf("stat: %w", err)))
			return nil
		}
		paths = append(paths, photo.NewPath(p, false, info))
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })
	return paths, failures, nil
}

// Exists reports whether anything exists at absPath.
func (m *OSFilesystemManager) Exists(absPath string) (bool, error) {
	_, err := os.Lstat(absPath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// WriteFile writes data from r to absPath using atomic write (temp file + rename).
func (m *OSFilesystemManager) WriteFile(absPath string, r io.Reader) (int64, error) {
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("creating directory: %w", err)
	}

	// Create temp file in the same directory to ensure atomic rename works
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
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
		return written, fmt.Errorf("writing data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return written, fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return written, fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, absPath); err != nil {
		return written, fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return written, nil
}

// Copy copies src to dst and carries over the modification time so later
// runs see the same file age.
func (m *OSFilesystemManager) Copy(src *photo.Path, dst string) error {
	in, err := m.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	written, err := m.WriteFile(dst, in)
	if err != nil {
		return err
	}
	if info := src.Info(); info != nil {
		if written != info.Size() {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", info.Size(), written)
		}
		if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
			return fmt.Errorf("setting modification time: %w", err)
		}
	}
	return nil
}

// Move renames src to dst, falling back to copy and remove across devices.
func (m *OSFilesystemManager) Move(src *photo.Path, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	err := os.Rename(src.String(), dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("renaming: %w", err)
	}

	if err := m.Copy(src, dst); err != nil {
		return fmt.Errorf("copying across devices: %w", err)
	}
	if err := os.Remove(src.String()); err != nil {
		return fmt.Errorf("removing source after copy: %w", err)
	}
	return nil
}

// Compile-time check that OSFilesystemManager implements photo.FilesystemManager interface
var _ photo.FilesystemManager = (*OSFilesystemManager)(nil)
