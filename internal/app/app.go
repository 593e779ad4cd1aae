package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"eventphoto/internal/config"
	"eventphoto/internal/extract"
	"eventphoto/internal/fs"
	"eventphoto/internal/gallery"
	"eventphoto/internal/journal"
	"eventphoto/internal/photo"
	"eventphoto/internal/pipeline"
	"eventphoto/internal/publish"
)

// Options adjusts how an EpoApp is built for one command.
type Options struct {
	// Stderr receives log output in addition to the log file. Nil keeps
	// the terminal quiet.
	Stderr io.Writer
	// Clock and IDs default to the real clock and UUIDs.
	Clock photo.Clock
	IDs   photo.IDGenerator
}

// EpoApp is the application layer between the CLI and the pipeline.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and closes the journal and log on Close.
type EpoApp struct {
	cfg      *config.Config
	journal  photo.Journal
	fsmgr    photo.FilesystemManager
	decoders *extract.Registry
	coord    *pipeline.Coordinator
	logger   photo.Logger
	op       *Operation
	logFile  *os.File
}

// NewEpoApp creates a fully wired EpoApp from the given config.
// command identifies the CLI command being run (e.g. "organize", "history").
// The caller must call Close when done.
func NewEpoApp(cfg *config.Config, command, parameters string, opts Options) (*EpoApp, error) {
	if opts.Clock == nil {
		opts.Clock = photo.RealClock{}
	}
	if opts.IDs == nil {
		opts.IDs = photo.UUIDGenerator{}
	}

	include := cfg.Filesystem.Include
	if len(include) == 0 {
		include = fs.DefaultExtensions
	}
	filter := fs.NewExtensionFilter(include, cfg.Filesystem.Exclude)
	fsmgr := fs.NewOSFilesystemManager(filter, cfg.Filesystem.Ignore)

	j, err := journal.NewJournalFromConfig(cfg.Journal, opts.Clock)
	if err != nil {
		return nil, fmt.Errorf("creating journal: %w", err)
	}
	closeJournal := func() {
		if j != nil {
			j.Close()
		}
	}

	op := NewOperation(command, parameters, opts.Clock.Now())
	slogger, logFile, err := newLogger(cfg.LogDir, op.ID, ParseLevel(cfg.LogLevel), opts.Stderr)
	if err != nil {
		closeJournal()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	decoders := extract.NewDefaultRegistry()
	galleries := gallery.NewGenerator(fsmgr, decoders, opts.Clock, logger)
	coord := pipeline.NewCoordinator(fsmgr, decoders, j, galleries, logger, opts.Clock, opts.IDs)

	logger.Info("operation started", "command", command, "parameters", parameters)
	return &EpoApp{
		cfg:      cfg,
		journal:  j,
		fsmgr:    fsmgr,
		decoders: decoders,
		coord:    coord,
		logger:   logger,
		op:       op,
		logFile:  logFile,
	}, nil
}

// NewRequest builds a pipeline request from the configured defaults.
// Callers override fields before passing it to Run.
func (a *EpoApp) NewRequest(sources []string, dest string) pipeline.Request {
	p := a.cfg.Pipeline
	ev := a.cfg.Event

	label := ev.Label
	if strings.TrimSpace(label) == "" {
		label = ev.Venue
	}

	opts := pipeline.DefaultOptions()
	opts.Recursive = p.Recursive
	opts.Label = label
	opts.DedupThreshold = p.DedupThreshold
	opts.SkipOrganized = p.SkipOrganized
	opts.Photographer = ev.Photographer
	opts.FileTimeFallback = p.FileTimeFallback
	opts.Gallery = a.cfg.Gallery.Enabled
	if p.Workers > 0 {
		opts.Workers = p.Workers
	}
	if p.EventGap.Duration > 0 {
		opts.EventGap = p.EventGap.Duration
	}
	if p.MaxDecodeBytes > 0 {
		opts.MaxDecodeBytes = p.MaxDecodeBytes
	}
	if a.cfg.Gallery.Quality > 0 {
		opts.GalleryQuality = a.cfg.Gallery.Quality
	}
	// Config was validated on load; Run validates the final options again.
	if conflict, err := photo.ParseConflictPolicy(p.Conflict); err == nil {
		opts.Conflict = conflict
	}
	if transfer, err := photo.ParseTransferMode(p.Transfer); err == nil {
		opts.Transfer = transfer
	}

	return pipeline.Request{
		Sources:     sources,
		Destination: dest,
		Options:     opts,
		Event: gallery.EventInfo{
			Name:         ev.Name,
			Venue:        ev.Venue,
			Location:     ev.Location,
			Date:         ev.Date,
			Photographer: ev.Photographer,
		},
	}
}

// Run executes a pipeline request. Before organizing, the journal schema is
// checked so a stale database fails before any file moves.
func (a *EpoApp) Run(ctx context.Context, req pipeline.Request) (*photo.RunResult, error) {
	if a.journal != nil {
		if err := a.journal.CheckMigrations(); err != nil {
			a.op.Fail()
			return nil, fmt.Errorf("journal schema out of date (run 'epo journal migrate'): %w", err)
		}
	}
	res, err := a.coord.Run(ctx, req)
	if res != nil {
		a.op.AddRun(res.RunID)
	}
	if err != nil {
		a.op.Fail()
	}
	return res, err
}

// Cancel requests cancellation of an active run.
func (a *EpoApp) Cancel(runID string) bool {
	return a.coord.Cancel(runID)
}

// Formats returns the image formats the extractor can decode.
func (a *EpoApp) Formats() []string {
	return a.decoders.Formats()
}

// History returns the most recent runs.
func (a *EpoApp) History(limit int) ([]*photo.RunRecord, error) {
	j, err := a.requireJournal()
	if err != nil {
		return nil, err
	}
	return j.ListRuns(limit)
}

// RunDetails is a recorded run with its actions and errors.
type RunDetails struct {
	Run     *photo.RunRecord
	Actions []*photo.ActionRecord
	Errors  []*photo.Error
}

// ShowRun returns the recorded details of one run.
func (a *EpoApp) ShowRun(runID string) (*RunDetails, error) {
	j, err := a.requireJournal()
	if err != nil {
		return nil, err
	}
	run, err := j.FindRun(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	actions, err := j.FindRunActions(runID)
	if err != nil {
		return nil, err
	}
	errs, err := j.FindRunErrors(runID)
	if err != nil {
		return nil, err
	}
	return &RunDetails{Run: run, Actions: actions, Errors: errs}, nil
}

// Publish uploads an organized event directory to the named publish target
// (the first configured target when name is empty).
func (a *EpoApp) Publish(ctx context.Context, rawDir, target string) (*publish.Report, error) {
	dir, err := filepath.Abs(rawDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	tc, err := a.cfg.PublishTarget(target)
	if err != nil {
		return nil, err
	}
	p, err := publish.NewPublisherFromConfig(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("creating publisher: %w", err)
	}
	if err := p.ValidateSetup(ctx); err != nil {
		a.op.Fail()
		return nil, fmt.Errorf("publish target %s: %w", p.Name(), err)
	}
	report, err := publish.Publish(ctx, p, dir, "", a.logger)
	if err != nil {
		a.op.Fail()
	}
	return report, err
}

// MigrateJournal applies pending journal schema migrations.
func (a *EpoApp) MigrateJournal() error {
	j, err := a.requireJournal()
	if err != nil {
		return err
	}
	if err := j.MigrateUp(); err != nil {
		return fmt.Errorf("migrating journal: %w", err)
	}
	a.logger.Info("journal migrated")
	return nil
}

// BackupJournal writes a snapshot of the journal to destPath.
func (a *EpoApp) BackupJournal(destPath string) error {
	j, err := a.requireJournal()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(destPath)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	if err := j.BackupTo(abs); err != nil {
		return err
	}
	a.logger.Info("journal backed up", "path", abs)
	return nil
}

func (a *EpoApp) requireJournal() (photo.Journal, error) {
	if a.journal == nil {
		return nil, fmt.Errorf("no journal configured (journal.type = %q)", a.cfg.Journal.Type)
	}
	return a.journal, nil
}

// Close finalizes the operation and closes all resources.
func (a *EpoApp) Close() error {
	var firstErr error

	a.logger.Info("operation finished", "command", a.op.Command, "status", a.op.Status, "runs", a.op.RunList())

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			firstErr = fmt.Errorf("closing journal: %w", err)
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
