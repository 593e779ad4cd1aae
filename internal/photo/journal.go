package photo

import "time"

// RunRecord is the persisted summary of one pipeline run.
type RunRecord struct {
	ID          string     `json:"id"`
	Operation   string     `json:"operation"` // "organize" or "plan"
	Sources     string     `json:"sources"`   // newline-separated source roots
	Destination string     `json:"destination"`
	State       Stage      `json:"state"`
	DryRun      bool       `json:"dry_run"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Processed   int        `json:"processed"`
	Skipped     int        `json:"skipped"`
	Duplicates  int        `json:"duplicates"`
	Errors      int        `json:"errors"`
}

// ActionRecord is the persisted form of an executed OrganizeAction.
type ActionRecord struct {
	RunID       string       `json:"run_id"`
	Source      string       `json:"source"`
	Destination string       `json:"destination"`
	Checksum    string       `json:"checksum"`
	Group       string       `json:"group"`
	Kind        ActionKind   `json:"kind"`
	Status      ActionStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
}

// ContentIndex looks up content already organized by earlier runs.
type ContentIndex interface {
	// FindOrganizedChecksums returns checksum -> destination for every
	// checksum in the input that an earlier run organized successfully.
	FindOrganizedChecksums(checksums []string) (map[string]string, error)
}

// Journal records run history. Runs work without one; the journal only
// adds history and cross-run deduplication.
type Journal interface {
	ContentIndex

	CreateRun(run *RunRecord) error
	FinishRun(result *RunResult) error
	RecordActions(runID string, actions []OrganizeAction) error
	RecordErrors(runID string, errs []*Error) error

	FindRun(id string) (*RunRecord, error)
	ListRuns(limit int) ([]*RunRecord, error)
	FindRunActions(runID string) ([]*ActionRecord, error)
	FindRunErrors(runID string) ([]*Error, error)

	// BackupTo writes a consistent snapshot of the journal to destPath.
	BackupTo(destPath string) error

	// CheckMigrations verifies the schema is up-to-date.
	CheckMigrations() error
	// MigrateUp applies pending schema migrations.
	MigrateUp() error
	Close() error
}
