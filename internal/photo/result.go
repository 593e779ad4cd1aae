package photo

import "time"

// Stage is a state of the pipeline coordinator.
type Stage string

const (
	StageIdle          Stage = "idle"
	StageScanning      Stage = "scanning"
	StageExtracting    Stage = "extracting"
	StageDeduplicating Stage = "deduplicating"
	StageGrouping      Stage = "grouping"
	StageOrganizing    Stage = "organizing"
	StageGallery       Stage = "gallery"
	StageDone          Stage = "done"
	StageFailed        Stage = "failed"
	StageCancelled     Stage = "cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s Stage) Terminal() bool {
	switch s {
	case StageDone, StageFailed, StageCancelled:
		return true
	default:
		return false
	}
}

// Progress is reported to the caller as a run advances.
type Progress struct {
	RunID string
	Stage Stage
	Done  int
	Total int
	Path  string // file being reported on, if any
}

// ProgressFunc receives progress updates. It is called from the goroutine
// running the pipeline and from extraction workers, so it must be safe for
// concurrent use.
type ProgressFunc func(Progress)

// RunResult is the machine-readable outcome of a pipeline run.
// It is created when the run starts and finalized when it reaches a terminal stage.
type RunResult struct {
	RunID      string
	State      Stage
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool

	Processed  int // records successfully extracted
	Skipped    int // files or actions skipped (excluded, conflicts)
	Duplicates int // records marked as exact duplicates

	DuplicateSets  []DuplicateSet
	NearDuplicates []NearDuplicate
	Groups         []EventGroup
	Actions        []OrganizeAction
	Errors         []*Error
}

// NewRunResult creates an empty result for a run starting at startedAt.
func NewRunResult(runID string, startedAt time.Time) *RunResult {
	return &RunResult{
		RunID:     runID,
		State:     StageIdle,
		StartedAt: startedAt,
	}
}

// AddError records a per-file or per-action failure.
func (r *RunResult) AddError(err *Error) {
	if err == nil {
		return
	}
	r.Errors = append(r.Errors, err)
}

// ErrorCount returns the number of recorded errors of the given kinds,
// or of all kinds when none are given.
func (r *RunResult) ErrorCount(kinds ...ErrorKind) int {
	if len(kinds) == 0 {
		return len(r.Errors)
	}
	n := 0
	for _, e := range r.Errors {
		for _, k := range kinds {
			if e.Kind == k {
				n++
				break
			}
		}
	}
	return n
}

// ActionCount returns the number of actions that ended in status.
func (r *RunResult) ActionCount(status ActionStatus) int {
	n := 0
	for i := range r.Actions {
		if r.Actions[i].Status == status {
			n++
		}
	}
	return n
}
