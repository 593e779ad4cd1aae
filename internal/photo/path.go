package photo

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// Path is a resolved, absolute filesystem path with the stat info captured
// when it was discovered. Paths come from FilesystemManager.Resolve or
// FilesystemManager.FindFiles.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath creates a Path from its components.
// This is primarily for use by FilesystemManager implementations.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{
		absPath: absPath,
		isDir:   isDir,
		info:    info,
	}
}

func (p *Path) String() string {
	return p.absPath
}

func (p *Path) IsDir() bool {
	return p.isDir
}

// Info returns the cached file info from when the path was resolved.
func (p *Path) Info() fs.FileInfo {
	return p.info
}

// Base returns the last element of the path.
func (p *Path) Base() string {
	return filepath.Base(p.absPath)
}

// Ext returns the lowercased extension including the dot, e.g. ".jpg".
func (p *Path) Ext() string {
	return strings.ToLower(filepath.Ext(p.absPath))
}

// Size returns the cached size, or 0 when no info was captured.
func (p *Path) Size() int64 {
	if p.info == nil {
		return 0
	}
	return p.info.Size()
}

// ModTime returns the cached modification time, or the zero time when no
// info was captured.
func (p *Path) ModTime() time.Time {
	if p.info == nil {
		return time.Time{}
	}
	return p.info.ModTime()
}
