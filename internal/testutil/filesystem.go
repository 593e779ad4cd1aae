package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"eventphoto/internal/photo"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing.
// It is safe for concurrent use so executor tests can run with workers.
type MockFilesystemManager struct {
	mu    sync.Mutex
	files map[string]*MockFile

	// failures maps a source path to the error Move/Copy return for it.
	failures map[string]error
	// scanFailures maps a file or directory to the error FindFiles reports
	// for it; everything below a failed directory is left out.
	scanFailures map[string]error
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:        make(map[string]*MockFile),
		failures:     make(map[string]error),
		scanFailures: make(map[string]error),
	}
}

// AddFile adds a file with the current time as modification time.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.AddFileWithTime(path, content, time.Now())
}

// AddFileWithTime adds a file with the given modification time.
func (m *MockFilesystemManager) AddFileWithTime(path string, content []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     modTime,
	}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{
		Permissions: 0755,
		ModTime:     time.Now(),
		IsDirectory: true,
	}
}

// FailTransfer makes Move and Copy of src fail with err.
func (m *MockFilesystemManager) FailTransfer(src string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[src] = err
}

// FailScan makes FindFiles report path as unreadable instead of listing it
// or anything below it.
func (m *MockFilesystemManager) FailScan(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanFailures[path] = err
}

// Content returns the content stored at path.
func (m *MockFilesystemManager) Content(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok || f.IsDirectory {
		return nil, false
	}
	return f.Content, true
}

// Paths returns every file (not directory) path, sorted.
func (m *MockFilesystemManager) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var paths []string
	for p, f := range m.files {
		if !f.IsDirectory {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*photo.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s: %w", absPath, fs.ErrNotExist)
	}
	return photo.NewPath(absPath, file.IsDirectory, newMockFileInfo(absPath, file)), nil
}

func (m *MockFilesystemManager) Open(path *photo.Path) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s: %w", path.String(), fs.ErrNotExist)
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path.String())
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

// FindFiles returns the files under root, sorted. No extension filtering is
// applied; tests add only the files they want discovered.
func (m *MockFilesystemManager) FindFiles(root *photo.Path, recursive bool) ([]*photo.Path, []*photo.Error, error) {
	if !root.IsDir() {
		return nil, nil, fmt.Errorf("path is not a directory: %s", root.String())
	}
	prefix := strings.TrimSuffix(root.String(), "/") + "/"

	m.mu.Lock()
	defer m.mu.Unlock()

	var failures []*photo.Error
	for p, err := range m.scanFailures {
		if strings.HasPrefix(p, prefix) {
			failures = append(failures, photo.NewError(photo.KindUnreadableFile, p, err))
		}
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })

	var paths []*photo.Path
	for p, f := range m.files {
		if f.IsDirectory || !strings.HasPrefix(p, prefix) || m.scanFailed(p) {
			continue
		}
		if !recursive && strings.Contains(strings.TrimPrefix(p, prefix), "/") {
			continue
		}
		paths = append(paths, photo.NewPath(p, false, newMockFileInfo(p, f)))
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })
	return paths, failures, nil
}

// scanFailed reports whether p or one of its parents was marked by FailScan.
// Callers hold m.mu.
func (m *MockFilesystemManager) scanFailed(p string) bool {
	for failed := range m.scanFailures {
		if p == failed || strings.HasPrefix(p, strings.TrimSuffix(failed, "/")+"/") {
			return true
		}
	}
	return false
}

func (m *MockFilesystemManager) Exists(absPath string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[absPath]
	return ok, nil
}

func (m *MockFilesystemManager) WriteFile(absPath string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[absPath] = &MockFile{Content: data, Permissions: 0644, ModTime: time.Now()}
	return int64(len(data)), nil
}

func (m *MockFilesystemManager) Copy(src *photo.Path, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[src.String()]; err != nil {
		return err
	}
	file, ok := m.files[src.String()]
	if !ok {
		return fmt.Errorf("file not found: %s: %w", src.String(), fs.ErrNotExist)
	}
	clone := *file
	clone.Content = append([]byte(nil), file.Content...)
	m.files[dst] = &clone
	return nil
}

func (m *MockFilesystemManager) Move(src *photo.Path, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[src.String()]; err != nil {
		return err
	}
	file, ok := m.files[src.String()]
	if !ok {
		return fmt.Errorf("file not found: %s: %w", src.String(), fs.ErrNotExist)
	}
	m.files[dst] = file
	delete(m.files, src.String())
	return nil
}

// ErrInjected is a convenience error for FailTransfer.
var ErrInjected = errors.New("injected failure")

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func newMockFileInfo(path string, f *MockFile) *mockFileInfo {
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(f.Content)),
		mode:    f.Permissions,
		modTime: f.ModTime,
		isDir:   f.IsDirectory,
	}
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ photo.FilesystemManager = (*MockFilesystemManager)(nil)
