package pipeline

import (
	"fmt"
	"runtime"
	"time"

	"eventphoto/internal/extract"
	"eventphoto/internal/gallery"
	"eventphoto/internal/group"
	"eventphoto/internal/photo"
)

// Options is the configuration bundle for one run.
type Options struct {
	Workers   int // extraction and transfer parallelism; < 1 means runtime.NumCPU()
	Recursive bool

	EventGap time.Duration
	Label    string // event name prefix, e.g. the venue

	// DedupThreshold enables near-duplicate flagging when > 0.
	DedupThreshold float64
	// SkipOrganized treats content organized by an earlier run as a
	// duplicate. Needs a journal.
	SkipOrganized bool

	Conflict     photo.ConflictPolicy
	Transfer     photo.TransferMode
	Photographer string // enables credit file naming

	FileTimeFallback bool
	MaxDecodeBytes   int64

	Gallery        bool
	GalleryQuality int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Workers:          runtime.NumCPU(),
		Recursive:        true,
		EventGap:         group.DefaultGap,
		Conflict:         photo.ConflictRename,
		Transfer:         photo.TransferMove,
		FileTimeFallback: true,
		MaxDecodeBytes:   extract.DefaultMaxDecodeBytes,
		GalleryQuality:   gallery.DefaultQuality,
	}
}

// Validate checks the options before any stage runs.
func (o Options) Validate() error {
	if o.EventGap <= 0 {
		return fmt.Errorf("event gap must be positive, got %s", o.EventGap)
	}
	if o.DedupThreshold < 0 || o.DedupThreshold > 1 {
		return fmt.Errorf("dedup threshold must be between 0 and 1, got %g", o.DedupThreshold)
	}
	if _, err := photo.ParseConflictPolicy(string(o.Conflict)); err != nil {
		return err
	}
	if _, err := photo.ParseTransferMode(string(o.Transfer)); err != nil {
		return err
	}
	if o.Gallery && (o.GalleryQuality < 1 || o.GalleryQuality > 100) {
		return fmt.Errorf("gallery quality must be between 1 and 100, got %d", o.GalleryQuality)
	}
	return nil
}

func (o Options) workers() int {
	if o.Workers < 1 {
		return runtime.NumCPU()
	}
	return o.Workers
}

// Request is one submission from the caller.
type Request struct {
	// Sources are directories to scan or individual files. Explicitly named
	// files bypass the extension filter.
	Sources     []string
	Destination string
	Options     Options

	// DryRun computes and returns the plan without touching the filesystem.
	DryRun bool

	// Event describes the shoot for galleries. Empty fields fall back to the
	// group name and date.
	Event gallery.EventInfo

	// Progress may be called from several goroutines at once.
	Progress photo.ProgressFunc
}

func (r Request) operation() string {
	if r.DryRun {
		return "plan"
	}
	return "organize"
}
