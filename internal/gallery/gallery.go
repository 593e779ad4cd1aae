// Package gallery writes a browsable web gallery next to an organized event:
// JPEG thumbnails, an index.html and an event-info.txt summary.
package gallery

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"image"
	"image/jpeg"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/image/draw"

	"eventphoto/internal/extract"
	"eventphoto/internal/photo"
)

//go:embed templates/index.html.tmpl
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html.tmpl"))

const (
	// ThumbnailDir is the event subdirectory holding thumbnails.
	ThumbnailDir = "thumbnails"
	// IndexFile and InfoFile are written at the event root.
	IndexFile = "index.html"
	InfoFile  = "event-info.txt"

	DefaultQuality = 85
	notSpecified   = "Not specified"
)

// EventInfo describes the event a gallery belongs to.
type EventInfo struct {
	Name         string
	Venue        string
	Location     string
	Date         string
	Photographer string
}

// Title is the gallery headline: "venue, location - name", leaving out
// empty parts.
func (e EventInfo) Title() string {
	var place []string
	for _, s := range []string{e.Venue, e.Location} {
		if s = strings.TrimSpace(s); s != "" {
			place = append(place, s)
		}
	}
	head := strings.Join(place, ", ")
	name := strings.TrimSpace(e.Name)
	switch {
	case head == "":
		return name
	case name == "":
		return head
	default:
		return head + " - " + name
	}
}

// Options controls gallery output.
type Options struct {
	// Quality in 1..100 scales thumbnail dimensions and sets JPEG quality.
	Quality int
	Event   EventInfo
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Quality < 1 || o.Quality > 100 {
		return fmt.Errorf("thumbnail quality must be within 1..100, got %d", o.Quality)
	}
	return nil
}

// Result summarizes one generated gallery.
type Result struct {
	Dir        string
	Photos     int
	Thumbnails int
	Errors     []*photo.Error
}

// Generator writes galleries through a FilesystemManager.
type Generator struct {
	fsmgr    photo.FilesystemManager
	decoders *extract.Registry
	clock    photo.Clock
	logger   photo.Logger
}

// NewGenerator creates a Generator. A nil registry means the default decoders.
func NewGenerator(fsmgr photo.FilesystemManager, decoders *extract.Registry, clock photo.Clock, logger photo.Logger) *Generator {
	if decoders == nil {
		decoders = extract.NewDefaultRegistry()
	}
	return &Generator{fsmgr: fsmgr, decoders: decoders, clock: clock, logger: logger}
}

// Generate writes thumbnails for photos (absolute paths inside dir), then
// index.html and event-info.txt. Photos already in dir from earlier runs stay
// in the index; their existing thumbnails are reused. A photo whose thumbnail
// fails is recorded in Result.Errors and left out of the index; only failures
// to write the index or info file abort.
func (g *Generator) Generate(ctx context.Context, dir string, photos []string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	fresh := make(map[string]bool, len(photos))
	all := append([]string{}, photos...)
	for _, p := range photos {
		fresh[p] = true
	}
	for _, p := range g.existingPhotos(dir) {
		if !fresh[p] {
			all = append(all, p)
		}
	}
	sort.Strings(all)
	res := &Result{Dir: dir, Photos: len(all)}

	type item struct {
		Src   string
		Thumb string
	}
	var items []item
	for _, p := range all {
		if ctx.Err() != nil {
			return res, fmt.Errorf("generating gallery: %w", photo.ErrCancelled)
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return res, fmt.Errorf("photo outside gallery dir: %w", err)
		}
		thumbRel := filepath.ToSlash(filepath.Join(ThumbnailDir, thumbnailName(filepath.Base(p))))
		thumbPath := filepath.Join(dir, filepath.FromSlash(thumbRel))
		if !fresh[p] {
			if ok, _ := g.fsmgr.Exists(thumbPath); ok {
				res.Thumbnails++
				items = append(items, item{Src: filepath.ToSlash(rel), Thumb: thumbRel})
				continue
			}
		}
		if err := g.thumbnail(p, thumbPath, opts.Quality); err != nil {
			res.Errors = append(res.Errors, photo.NewError(photo.KindUnreadableFile, p, err))
			g.logger.Warn("thumbnail failed", "path", p, "error", err)
			continue
		}
		res.Thumbnails++
		items = append(items, item{Src: filepath.ToSlash(rel), Thumb: thumbRel})
	}

	now := g.clock.Now()
	var page bytes.Buffer
	err := indexTemplate.Execute(&page, map[string]any{
		"Title":        opts.Event.Title(),
		"Photographer": strings.TrimSpace(opts.Event.Photographer),
		"Year":         now.Year(),
		"Items":        items,
	})
	if err != nil {
		return res, fmt.Errorf("rendering %s: %w", IndexFile, err)
	}
	if _, err := g.fsmgr.WriteFile(filepath.Join(dir, IndexFile), &page); err != nil {
		return res, fmt.Errorf("writing %s: %w", IndexFile, err)
	}

	info := eventInfoText(opts.Event, len(all), now)
	if _, err := g.fsmgr.WriteFile(filepath.Join(dir, InfoFile), strings.NewReader(info)); err != nil {
		return res, fmt.Errorf("writing %s: %w", InfoFile, err)
	}

	g.logger.Info("gallery written", "dir", dir, "photos", len(all), "thumbnails", res.Thumbnails)
	return res, nil
}

// existingPhotos lists the photos at the top level of dir. A directory that
// does not exist yet has none.
func (g *Generator) existingPhotos(dir string) []string {
	root, err := g.fsmgr.Resolve(dir)
	if err != nil || !root.IsDir() {
		return nil
	}
	found, failures, err := g.fsmgr.FindFiles(root, false)
	if err != nil {
		g.logger.Warn("listing gallery dir", "dir", dir, "error", err)
		return nil
	}
	for _, f := range failures {
		g.logger.Warn("gallery entry not readable", "path", f.Path, "error", f.Err)
	}
	paths := make([]string, 0, len(found))
	for _, p := range found {
		if base := p.Base(); base == IndexFile || base == InfoFile {
			continue
		}
		paths = append(paths, p.String())
	}
	return paths
}

func (g *Generator) thumbnail(src, dst string, quality int) error {
	path, err := g.fsmgr.Resolve(src)
	if err != nil {
		return err
	}
	f, err := g.fsmgr.Open(path)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("reading: %w", err)
	}

	img, _, err := g.decoders.DecodeImage(data, path.Ext())
	if err != nil {
		return err
	}
	thumb := Scale(img, quality)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("encoding thumbnail: %w", err)
	}
	if _, err := g.fsmgr.WriteFile(dst, &buf); err != nil {
		return fmt.Errorf("writing thumbnail: %w", err)
	}
	return nil
}

// Scale resizes img to quality percent of its size, at least 1x1.
func Scale(img image.Image, quality int) image.Image {
	b := img.Bounds()
	w := max(1, b.Dx()*quality/100)
	h := max(1, b.Dy()*quality/100)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// thumbnailName maps "a.jpg" to "a.jpg" and "a.png" to "a.png.jpg", so
// thumbnails stay unique per event.
func thumbnailName(base string) string {
	switch strings.ToLower(filepath.Ext(base)) {
	case ".jpg", ".jpeg":
		return base
	default:
		return base + ".jpg"
	}
}

func eventInfoText(e EventInfo, count int, now time.Time) string {
	orDefault := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return notSpecified
		}
		return s
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Event Name: %s\n", orDefault(e.Name))
	fmt.Fprintf(&b, "Venue: %s\n", orDefault(e.Venue))
	fmt.Fprintf(&b, "Location: %s\n", orDefault(e.Location))
	fmt.Fprintf(&b, "Event Date: %s\n", orDefault(e.Date))
	fmt.Fprintf(&b, "Photographer: %s\n", orDefault(e.Photographer))
	fmt.Fprintf(&b, "Number of Photos: %d\n", count)
	fmt.Fprintf(&b, "Organized on: %s\n", now.Format("2006-01-02 15:04:05"))
	return b.String()
}
