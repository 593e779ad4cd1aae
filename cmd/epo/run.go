package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"eventphoto/internal/config"
	"eventphoto/internal/photo"
	"eventphoto/internal/pipeline"
)

var planCmd = &cobra.Command{
	Use:   "plan SOURCE... --dest DIR",
	Short: "Show how sources would be organized without touching any file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, args, true)
	},
}

var organizeCmd = &cobra.Command{
	Use:   "organize SOURCE... --dest DIR",
	Short: "Deduplicate, group and organize photos into per-event folders",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, args, false)
	},
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("dest", "d", "", "Destination root for event folders (required)")
	f.Bool("copy", false, "Copy files instead of moving them")
	f.String("conflict", "", "Conflict policy: rename, skip or overwrite")
	f.Duration("gap", 0, "Time gap that starts a new event group, e.g. 90m")
	f.Float64("dedup-threshold", 0, "Perceptual similarity (0..1] for near-duplicate flags; 0 disables")
	f.StringSlice("include", nil, "Extensions to include, e.g. .jpg,.webp")
	f.StringSlice("exclude", nil, "Extensions to exclude")
	f.String("label", "", "Folder name prefix for event groups")
	f.String("photographer", "", "Photographer credit for file names")
	f.Bool("gallery", false, "Generate an HTML gallery per event folder")
	f.Int("quality", 0, "Gallery thumbnail quality (1..100)")
	f.IntP("workers", "j", 0, "Parallel extraction workers (0 means one per CPU)")
	f.Bool("skip-organized", false, "Treat content organized by earlier runs as duplicate")
	f.Bool("no-recursive", false, "Only scan the top level of source directories")
	f.String("event-name", "", "Event name for the gallery")
	f.String("venue", "", "Event venue")
	f.String("location", "", "Event location")
	f.String("date", "", "Event date as shown in the gallery")
	f.Bool("json", false, "Print the run result as JSON")
	_ = cmd.MarkFlagRequired("dest")
}

// applyDiscoveryFlags copies the flags that shape file discovery into cfg.
// They have to be set before the app builds its filesystem manager.
func applyDiscoveryFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("include") {
		cfg.Filesystem.Include, _ = f.GetStringSlice("include")
	}
	if f.Changed("exclude") {
		cfg.Filesystem.Exclude, _ = f.GetStringSlice("exclude")
	}
}

// applyRunFlags overrides request options with every flag the user set.
func applyRunFlags(cmd *cobra.Command, req *pipeline.Request) error {
	f := cmd.Flags()
	o := &req.Options

	if copyFiles, _ := f.GetBool("copy"); copyFiles {
		o.Transfer = photo.TransferCopy
	}
	if f.Changed("conflict") {
		s, _ := f.GetString("conflict")
		policy, err := photo.ParseConflictPolicy(s)
		if err != nil {
			return err
		}
		o.Conflict = policy
	}
	if f.Changed("gap") {
		o.EventGap, _ = f.GetDuration("gap")
	}
	if f.Changed("dedup-threshold") {
		o.DedupThreshold, _ = f.GetFloat64("dedup-threshold")
	}
	if f.Changed("label") {
		o.Label, _ = f.GetString("label")
	}
	if f.Changed("photographer") {
		o.Photographer, _ = f.GetString("photographer")
		req.Event.Photographer = o.Photographer
	}
	if f.Changed("gallery") {
		o.Gallery, _ = f.GetBool("gallery")
	}
	if f.Changed("quality") {
		o.GalleryQuality, _ = f.GetInt("quality")
	}
	if f.Changed("workers") {
		o.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("skip-organized") {
		o.SkipOrganized, _ = f.GetBool("skip-organized")
	}
	if noRecursive, _ := f.GetBool("no-recursive"); noRecursive {
		o.Recursive = false
	}
	if f.Changed("event-name") {
		req.Event.Name, _ = f.GetString("event-name")
	}
	if f.Changed("venue") {
		req.Event.Venue, _ = f.GetString("venue")
		if !f.Changed("label") {
			o.Label = req.Event.Venue
		}
	}
	if f.Changed("location") {
		req.Event.Location, _ = f.GetString("location")
	}
	if f.Changed("date") {
		req.Event.Date, _ = f.GetString("date")
	}
	return o.Validate()
}

func runPipeline(cmd *cobra.Command, args []string, dryRun bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyDiscoveryFlags(cmd, cfg)

	command := "organize"
	if dryRun {
		command = "plan"
	}
	a, err := newApp(cmd, cfg, command, args)
	if err != nil {
		return err
	}
	defer a.Close()

	rawDest, _ := cmd.Flags().GetString("dest")
	dest, err := filepath.Abs(rawDest)
	if err != nil {
		return fmt.Errorf("resolving destination: %w", err)
	}

	req := a.NewRequest(args, dest)
	req.DryRun = dryRun
	if err := applyRunFlags(cmd, &req); err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	var progress *progressPrinter
	if !asJSON && term.IsTerminal(int(os.Stderr.Fd())) {
		progress = newProgressPrinter(os.Stderr)
		req.Progress = progress.Report
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := a.Run(ctx, req)
	if progress != nil {
		progress.Finish()
	}
	if res == nil {
		return runErr
	}

	if asJSON {
		if err := writeJSON(os.Stdout, newResultJSON(res)); err != nil {
			return err
		}
	} else {
		printResult(os.Stdout, res)
	}

	if runErr != nil {
		return runErr
	}
	switch res.State {
	case photo.StageCancelled:
		return fmt.Errorf("run %s cancelled", res.RunID)
	case photo.StageFailed:
		return fmt.Errorf("run %s failed", res.RunID)
	}
	return nil
}

// progressPrinter rewrites a single status line on a terminal. Report is
// called from extraction workers, so output is serialized.
type progressPrinter struct {
	mu    sync.Mutex
	w     io.Writer
	last  time.Time
	stage photo.Stage
	dirty bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) Report(pr photo.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if pr.Stage == p.stage && pr.Done != pr.Total && now.Sub(p.last) < 100*time.Millisecond {
		return
	}
	p.stage = pr.Stage
	p.last = now

	line := string(pr.Stage)
	if pr.Total > 0 {
		line += " " + strconv.Itoa(pr.Done) + "/" + strconv.Itoa(pr.Total)
	}
	if pr.Path != "" {
		line += " " + filepath.Base(pr.Path)
	}
	fmt.Fprintf(p.w, "\r\033[K%s", line)
	p.dirty = true
}

// Finish clears the status line.
func (p *progressPrinter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dirty {
		fmt.Fprint(p.w, "\r\033[K")
		p.dirty = false
	}
}
