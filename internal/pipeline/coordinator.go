package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"eventphoto/internal/dedup"
	"eventphoto/internal/extract"
	"eventphoto/internal/gallery"
	"eventphoto/internal/group"
	"eventphoto/internal/organize"
	"eventphoto/internal/photo"
)

// Coordinator runs the stages of the photo pipeline:
// scan, extract, deduplicate, group, organize and optionally gallery.
// It is safe to run several requests at once; runs against the same
// destination exclude each other through the destination lock.
type Coordinator struct {
	fsmgr    photo.FilesystemManager
	decoders *extract.Registry
	journal  photo.Journal
	gallery  *gallery.Generator
	logger   photo.Logger
	clock    photo.Clock
	idgen    photo.IDGenerator

	mu     sync.Mutex
	active map[string]*RunContext
}

// NewCoordinator creates a Coordinator with the provided dependencies.
// journal may be nil (no history, no cross-run deduplication) and galleries
// may be nil (gallery requests are ignored).
func NewCoordinator(fsmgr photo.FilesystemManager, decoders *extract.Registry, journal photo.Journal, galleries *gallery.Generator, logger photo.Logger, clock photo.Clock, idgen photo.IDGenerator) *Coordinator {
	if decoders == nil {
		decoders = extract.NewDefaultRegistry()
	}
	return &Coordinator{
		fsmgr:    fsmgr,
		decoders: decoders,
		journal:  journal,
		gallery:  galleries,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		active:   make(map[string]*RunContext),
	}
}

// Run executes req to completion, failure or cancellation. The returned
// result is never nil once the request has been validated; on cancellation
// it holds the partial outcome with State cancelled and the error wraps
// photo.ErrCancelled. Per-file and per-action failures are recorded in the
// result and do not make Run return an error.
func (c *Coordinator) Run(ctx context.Context, req Request) (*photo.RunResult, error) {
	if err := req.Options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if strings.TrimSpace(req.Destination) == "" {
		return nil, fmt.Errorf("destination is required")
	}
	dest, err := filepath.Abs(req.Destination)
	if err != nil {
		return nil, fmt.Errorf("resolving destination: %w", err)
	}
	req.Destination = dest

	rc := NewRunContext(ctx, c.idgen.New(), c.clock.Now(), req.Progress)
	rc.Result.DryRun = req.DryRun
	defer rc.release()

	if c.journal != nil {
		err := c.journal.CreateRun(&photo.RunRecord{
			ID:          rc.ID,
			Operation:   req.operation(),
			Sources:     strings.Join(req.Sources, "\n"),
			Destination: req.Destination,
			State:       photo.StageIdle,
			DryRun:      req.DryRun,
			StartedAt:   rc.Result.StartedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("creating run: %w", err)
		}
	}

	c.register(rc)
	defer c.unregister(rc.ID)

	c.logger.Info("run started", "run", rc.ID, "operation", req.operation(), "destination", req.Destination, "sources", len(req.Sources))
	runErr := c.runStages(rc, req)
	return c.finish(rc, runErr)
}

// Cancel requests cancellation of an active run. It reports whether the run
// was found.
func (c *Coordinator) Cancel(runID string) bool {
	c.mu.Lock()
	rc, ok := c.active[runID]
	c.mu.Unlock()
	if ok {
		rc.Cancel()
		c.logger.Info("cancellation requested", "run", runID)
	}
	return ok
}

// Active returns the IDs of the runs in progress, sorted.
func (c *Coordinator) Active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Coordinator) register(rc *RunContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[rc.ID] = rc
}

func (c *Coordinator) unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, id)
}

func (c *Coordinator) runStages(rc *RunContext, req Request) error {
	paths, err := c.scan(rc, req)
	if err != nil {
		return err
	}
	records, err := c.extract(rc, req.Options, paths)
	if err != nil {
		return err
	}
	canonical, err := c.deduplicate(rc, req.Options, records)
	if err != nil {
		return err
	}
	groups, err := c.group(rc, req.Options, canonical)
	if err != nil {
		return err
	}
	if err := c.organize(rc, req, groups); err != nil {
		return err
	}
	if req.Options.Gallery && c.gallery != nil && !req.DryRun {
		return c.galleries(rc, req)
	}
	return nil
}

// finish moves the run to its terminal stage and records it in the journal.
func (c *Coordinator) finish(rc *RunContext, runErr error) (*photo.RunResult, error) {
	res := rc.Result
	final := photo.StageDone
	switch {
	case runErr == nil:
	case errors.Is(runErr, photo.ErrCancelled):
		final = photo.StageCancelled
		res.AddError(photo.NewError(photo.KindCancellationRequested, "", fmt.Errorf("cancelled during %s", rc.Stage())))
	default:
		final = photo.StageFailed
	}
	if err := rc.Transition(final); err != nil {
		c.logger.Error("finishing run", "run", rc.ID, "error", err)
	}
	res.FinishedAt = c.clock.Now()
	res.Skipped = skipped(res)

	level := c.logger.Info
	if final != photo.StageDone {
		level = c.logger.Warn
	}
	level("run finished", "run", rc.ID, "state", res.State,
		"processed", res.Processed, "duplicates", res.Duplicates,
		"skipped", res.Skipped, "errors", len(res.Errors))

	if c.journal != nil {
		if err := c.record(res); err != nil {
			c.logger.Error("recording run", "run", rc.ID, "error", err)
			if runErr == nil {
				runErr = err
			}
		}
	}
	return res, runErr
}

func (c *Coordinator) record(res *photo.RunResult) error {
	if err := c.journal.RecordActions(res.RunID, res.Actions); err != nil {
		return fmt.Errorf("recording actions: %w", err)
	}
	if err := c.journal.RecordErrors(res.RunID, res.Errors); err != nil {
		return fmt.Errorf("recording errors: %w", err)
	}
	if err := c.journal.FinishRun(res); err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// scan resolves every source and lists the candidate files in source order.
// A source that cannot be resolved is recorded as unreadable.
func (c *Coordinator) scan(rc *RunContext, req Request) ([]*photo.Path, error) {
	if err := rc.Transition(photo.StageScanning); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var paths []*photo.Path
	add := func(p *photo.Path) {
		if seen[p.String()] {
			return
		}
		seen[p.String()] = true
		paths = append(paths, p)
	}

	for i, raw := range req.Sources {
		if err := rc.checkpoint(); err != nil {
			return nil, err
		}
		src, err := c.fsmgr.Resolve(raw)
		if err != nil {
			rc.Result.AddError(photo.NewError(photo.KindUnreadableFile, raw, err))
			c.logger.Warn("source not readable", "run", rc.ID, "path", raw, "error", err)
			continue
		}
		if !src.IsDir() {
			add(src)
		} else {
			found, failures, err := c.fsmgr.FindFiles(src, req.Options.Recursive)
			if err != nil {
				rc.Result.AddError(photo.NewError(photo.KindUnreadableFile, src.String(), err))
				c.logger.Warn("scanning source", "run", rc.ID, "path", src.String(), "error", err)
				continue
			}
			for _, f := range failures {
				rc.Result.AddError(f)
				c.logger.Warn("entry not readable", "run", rc.ID, "path", f.Path, "error", f.Err)
			}
			for _, p := range found {
				add(p)
			}
		}
		rc.Report(i+1, len(req.Sources), src.String())
	}

	c.logger.Debug("scan complete", "run", rc.ID, "files", len(paths))
	return paths, nil
}

// extract runs the extractor over a bounded worker pool. Records keep scan
// order regardless of which worker finished first.
func (c *Coordinator) extract(rc *RunContext, opts Options, paths []*photo.Path) ([]photo.PhotoRecord, error) {
	if err := rc.Transition(photo.StageExtracting); err != nil {
		return nil, err
	}

	exOpts := extract.DefaultOptions()
	exOpts.PerceptualHash = opts.DedupThreshold > 0
	exOpts.FileTimeFallback = opts.FileTimeFallback
	if opts.MaxDecodeBytes > 0 {
		exOpts.MaxDecodeBytes = opts.MaxDecodeBytes
	}
	ex := extract.New(c.fsmgr, c.decoders, exOpts, c.logger)

	type slot struct {
		rec photo.PhotoRecord
		err *photo.Error
	}
	slots := make([]slot, len(paths))
	var done atomic.Int64

	started := forEach(rc.Context(), len(paths), opts.workers(), func(i int) {
		slots[i].rec, slots[i].err = ex.Extract(paths[i])
		rc.Report(int(done.Add(1)), len(paths), paths[i].String())
	})

	var records []photo.PhotoRecord
	for i := 0; i < started; i++ {
		if slots[i].err != nil {
			rc.Result.AddError(slots[i].err)
			c.logger.Warn("extract failed", "run", rc.ID, "path", paths[i].String(), "kind", slots[i].err.Kind, "error", slots[i].err.Err)
			continue
		}
		records = append(records, slots[i].rec)
	}
	rc.Result.Processed = len(records)

	if err := rc.checkpoint(); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Coordinator) deduplicate(rc *RunContext, opts Options, records []photo.PhotoRecord) ([]photo.PhotoRecord, error) {
	if err := rc.Transition(photo.StageDeduplicating); err != nil {
		return nil, err
	}

	dopts := dedup.Options{NearThreshold: opts.DedupThreshold}
	if opts.SkipOrganized && c.journal != nil && len(records) > 0 {
		checksums := make([]string, len(records))
		for i := range records {
			checksums[i] = records[i].Checksum
		}
		organized, err := c.journal.FindOrganizedChecksums(checksums)
		if err != nil {
			return nil, fmt.Errorf("looking up organized content: %w", err)
		}
		dopts.Organized = organized
	}

	res, err := dedup.Deduplicate(records, dopts)
	if err != nil {
		return nil, err
	}
	rc.Result.DuplicateSets = res.Sets
	rc.Result.NearDuplicates = res.Near
	rc.Result.Duplicates = res.DuplicateCount()
	rc.Report(len(records), len(records), "")

	if err := rc.checkpoint(); err != nil {
		return nil, err
	}
	return res.Canonical, nil
}

func (c *Coordinator) group(rc *RunContext, opts Options, records []photo.PhotoRecord) ([]photo.EventGroup, error) {
	if err := rc.Transition(photo.StageGrouping); err != nil {
		return nil, err
	}
	groups, err := group.Group(records, group.Options{Gap: opts.EventGap, Label: opts.Label})
	if err != nil {
		return nil, err
	}
	rc.Result.Groups = groups
	rc.Report(len(groups), len(groups), "")

	if err := rc.checkpoint(); err != nil {
		return nil, err
	}
	return groups, nil
}

// organize plans the actions and, unless this is a dry run, executes them
// while holding the destination lock.
func (c *Coordinator) organize(rc *RunContext, req Request, groups []photo.EventGroup) error {
	if err := rc.Transition(photo.StageOrganizing); err != nil {
		return err
	}

	opts := req.Options
	actions, conflicts, err := organize.Plan(groups, organize.PlanOptions{
		Root:         req.Destination,
		Mode:         opts.Transfer,
		Conflict:     opts.Conflict,
		Photographer: opts.Photographer,
	}, c.fsmgr.Exists)
	if err != nil {
		return fmt.Errorf("planning: %w", err)
	}
	for _, e := range conflicts {
		rc.Result.AddError(e)
	}

	if req.DryRun {
		rc.Result.Actions = actions
		c.logger.Info("plan computed", "run", rc.ID, "actions", len(actions))
		return nil
	}
	if err := rc.checkpoint(); err != nil {
		rc.Result.Actions = cancelAll(actions)
		return err
	}

	lock, err := organize.LockDestination(req.Destination)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			c.logger.Warn("releasing destination lock", "run", rc.ID, "error", err)
		}
	}()

	exec := organize.NewExecutor(c.fsmgr, c.logger)
	out, execErr := exec.Execute(rc.Context(), actions, organize.ExecOptions{
		Workers: opts.workers(),
		Progress: func(done, total int, a *photo.OrganizeAction) {
			rc.Report(done, total, a.Source)
		},
	})
	rc.Result.Actions = out
	for i := range out {
		if out[i].Status == photo.StatusFailed {
			rc.Result.AddError(out[i].Err)
		}
		if out[i].Status == photo.StatusDone {
			c.logger.Info("organized", "run", rc.ID, "action", out[i].Kind, "source", out[i].Source, "destination", out[i].Destination)
		}
	}
	if execErr != nil {
		return execErr
	}
	return nil
}

// galleries writes one gallery per event directory that received photos.
func (c *Coordinator) galleries(rc *RunContext, req Request) error {
	if err := rc.Transition(photo.StageGallery); err != nil {
		return err
	}

	byGroup := make(map[string][]string)
	for _, a := range rc.Result.Actions {
		if a.Status == photo.StatusDone {
			byGroup[a.Group] = append(byGroup[a.Group], a.Destination)
		}
	}

	var made int
	for _, g := range rc.Result.Groups {
		photos := byGroup[g.Name]
		if len(photos) == 0 {
			continue
		}
		if err := rc.checkpoint(); err != nil {
			return err
		}
		sort.Strings(photos)
		dir := filepath.Join(req.Destination, g.Name)
		res, err := c.gallery.Generate(rc.Context(), dir, photos, gallery.Options{
			Quality: req.Options.GalleryQuality,
			Event:   eventInfo(req.Event, g),
		})
		if res != nil {
			for _, e := range res.Errors {
				rc.Result.AddError(e)
			}
		}
		if err != nil {
			if errors.Is(err, photo.ErrCancelled) {
				return err
			}
			return fmt.Errorf("gallery for %s: %w", g.Name, err)
		}
		made++
		rc.Report(made, len(byGroup), dir)
	}
	return nil
}

// eventInfo fills the event name and date from the group when the caller
// left them empty.
func eventInfo(base gallery.EventInfo, g photo.EventGroup) gallery.EventInfo {
	info := base
	if strings.TrimSpace(info.Name) == "" {
		info.Name = g.Name
	}
	if strings.TrimSpace(info.Date) == "" && !g.Unknown {
		info.Date = g.Start.Format("2006-01-02")
	}
	return info
}

// skipped counts skip actions: settled ones after execution, planned ones
// in a dry run.
func skipped(res *photo.RunResult) int {
	n := 0
	for i := range res.Actions {
		a := &res.Actions[i]
		if a.Status == photo.StatusSkipped || (res.DryRun && a.Kind == photo.ActionSkip) {
			n++
		}
	}
	return n
}

func cancelAll(actions []photo.OrganizeAction) []photo.OrganizeAction {
	out := make([]photo.OrganizeAction, len(actions))
	copy(out, actions)
	for i := range out {
		out[i].Status = photo.StatusCancelled
	}
	return out
}
