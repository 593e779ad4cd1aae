package fs

import "strings"

// DefaultExtensions are the photo formats the extractor can decode.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".tif", ".tiff"}

// ExtensionFilter decides which files are candidate photos by extension.
// An empty include list accepts every extension not excluded.
type ExtensionFilter struct {
	include map[string]bool
	exclude map[string]bool
}

// NewExtensionFilter builds a filter. Extensions are matched case-insensitively
// and may be given with or without the leading dot.
func NewExtensionFilter(include, exclude []string) *ExtensionFilter {
	return &ExtensionFilter{
		include: extensionSet(include),
		exclude: extensionSet(exclude),
	}
}

// Allow reports whether a file with extension ext should be processed.
func (f *ExtensionFilter) Allow(ext string) bool {
	ext = NormalizeExtension(ext)
	if f.exclude[ext] {
		return false
	}
	if len(f.include) == 0 {
		return ext != ""
	}
	return f.include[ext]
}

// NormalizeExtension lowercases ext and adds a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		if n := NormalizeExtension(e); n != "" {
			set[n] = true
		}
	}
	return set
}
