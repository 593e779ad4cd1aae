package app

import (
	"strings"
	"time"
)

// Operation tracks one CLI command. Its ID tags every log line the command
// writes; the runs it starts are recorded so the summary line can name them.
type Operation struct {
	ID         string
	Command    string
	Parameters string
	Status     string // "success" or "error"
	Runs       []string
}

// NewOperation creates an operation for command started at now.
func NewOperation(command, parameters string, now time.Time) *Operation {
	return &Operation{
		ID:         now.UTC().Format("20060102T150405Z"),
		Command:    command,
		Parameters: parameters,
		Status:     "success",
	}
}

// AddRun records a pipeline run started by this operation.
func (op *Operation) AddRun(runID string) {
	op.Runs = append(op.Runs, runID)
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = "error"
}

// Failed reports whether Fail was called.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}

// RunList returns the recorded run IDs as a comma-separated list.
func (op *Operation) RunList() string {
	return strings.Join(op.Runs, ",")
}
