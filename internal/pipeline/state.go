package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"eventphoto/internal/photo"
)

// next lists the forward transitions of a run. Failed and cancelled are
// reachable from every non-terminal stage and are not listed.
var next = map[photo.Stage][]photo.Stage{
	photo.StageIdle:          {photo.StageScanning},
	photo.StageScanning:      {photo.StageExtracting},
	photo.StageExtracting:    {photo.StageDeduplicating},
	photo.StageDeduplicating: {photo.StageGrouping},
	photo.StageGrouping:      {photo.StageOrganizing},
	photo.StageOrganizing:    {photo.StageGallery, photo.StageDone},
	photo.StageGallery:       {photo.StageDone},
}

func isAllowedTransition(from, to photo.Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == photo.StageFailed || to == photo.StageCancelled {
		return true
	}
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// RunContext is the mutable state of one run, passed explicitly to every
// stage. Stage, cancellation and the result live here rather than on the
// Coordinator so stages can be driven individually.
type RunContext struct {
	ID     string
	Result *photo.RunResult

	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
	progress  photo.ProgressFunc

	mu    sync.Mutex
	stage photo.Stage
}

// NewRunContext creates a run in the idle stage. Cancelling parent cancels
// the run. progress may be nil.
func NewRunContext(parent context.Context, id string, startedAt time.Time, progress photo.ProgressFunc) *RunContext {
	ctx, cancel := context.WithCancel(parent)
	return &RunContext{
		ID:       id,
		Result:   photo.NewRunResult(id, startedAt),
		ctx:      ctx,
		cancel:   cancel,
		progress: progress,
		stage:    photo.StageIdle,
	}
}

// Context returns the run's context. It is done once the run is cancelled.
func (rc *RunContext) Context() context.Context {
	return rc.ctx
}

// Stage returns the current stage.
func (rc *RunContext) Stage() photo.Stage {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.stage
}

// Transition moves the run to stage to, rejecting transitions the state
// machine does not allow.
func (rc *RunContext) Transition(to photo.Stage) error {
	rc.mu.Lock()
	from := rc.stage
	if !isAllowedTransition(from, to) {
		rc.mu.Unlock()
		return fmt.Errorf("disallowed transition for run %s: %s -> %s", rc.ID, from, to)
	}
	rc.stage = to
	rc.Result.State = to
	rc.mu.Unlock()

	rc.Report(0, 0, "")
	return nil
}

// Cancel requests cooperative cancellation. Stages notice it at the next
// file boundary.
func (rc *RunContext) Cancel() {
	rc.cancelled.Store(true)
	rc.cancel()
}

// Cancelled reports whether Cancel was called or the parent context ended.
func (rc *RunContext) Cancelled() bool {
	return rc.cancelled.Load() || rc.ctx.Err() != nil
}

// checkpoint returns an error wrapping photo.ErrCancelled once the run has
// been cancelled.
func (rc *RunContext) checkpoint() error {
	if rc.Cancelled() {
		return fmt.Errorf("run %s cancelled during %s: %w", rc.ID, rc.Stage(), photo.ErrCancelled)
	}
	return nil
}

// Report sends a progress update for the current stage.
func (rc *RunContext) Report(done, total int, path string) {
	if rc.progress == nil {
		return
	}
	rc.progress(photo.Progress{
		RunID: rc.ID,
		Stage: rc.Stage(),
		Done:  done,
		Total: total,
		Path:  path,
	})
}

// release frees the context's resources once the run is over.
func (rc *RunContext) release() {
	rc.cancel()
}
