package photo

import (
	"fmt"
	"strings"
)

// ActionKind is what the organizer will do with one source file.
type ActionKind string

const (
	ActionMove   ActionKind = "move"
	ActionCopy   ActionKind = "copy"
	ActionSkip   ActionKind = "skip"
	ActionRename ActionKind = "rename" // transfer to a suffixed destination after a conflict
)

// ActionStatus tracks an action through execution.
type ActionStatus string

const (
	StatusPlanned   ActionStatus = "planned"
	StatusDone      ActionStatus = "done"
	StatusFailed    ActionStatus = "failed"
	StatusSkipped   ActionStatus = "skipped"
	StatusCancelled ActionStatus = "cancelled"
)

// TransferMode selects whether organized files are moved or copied.
type TransferMode string

const (
	TransferMove TransferMode = "move"
	TransferCopy TransferMode = "copy"
)

// ParseTransferMode parses "move" or "copy".
func ParseTransferMode(s string) (TransferMode, error) {
	switch TransferMode(strings.ToLower(strings.TrimSpace(s))) {
	case TransferMove:
		return TransferMove, nil
	case TransferCopy:
		return TransferCopy, nil
	default:
		return "", fmt.Errorf("unknown transfer mode: %q (want move or copy)", s)
	}
}

// ConflictPolicy decides what happens when a destination path is taken.
type ConflictPolicy string

const (
	ConflictOverwrite ConflictPolicy = "overwrite"
	ConflictSkip      ConflictPolicy = "skip"
	ConflictRename    ConflictPolicy = "rename"
)

// ParseConflictPolicy parses "overwrite", "skip" or "rename".
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case ConflictOverwrite:
		return ConflictOverwrite, nil
	case ConflictSkip:
		return ConflictSkip, nil
	case ConflictRename, "rename-with-suffix":
		return ConflictRename, nil
	default:
		return "", fmt.Errorf("unknown conflict policy: %q (want overwrite, skip or rename)", s)
	}
}

// OrganizeAction is one planned filesystem operation for one PhotoRecord.
type OrganizeAction struct {
	Source      string
	Destination string // empty for skip actions that never got a destination
	Kind        ActionKind
	Mode        TransferMode // how a transferring action moves the bytes
	Overwrite   bool         // destination exists and the policy allows replacing it
	Group       string
	Reason      string
	Record      PhotoRecord
	Status      ActionStatus
	Err         *Error
}

// Transfers reports whether executing the action touches the filesystem.
func (a *OrganizeAction) Transfers() bool {
	return a.Kind != ActionSkip
}
