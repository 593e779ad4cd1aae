package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"eventphoto/internal/photo"
)

const timeLayout = "2006-01-02 15:04:05"

func printResult(w io.Writer, res *photo.RunResult) {
	mode := "organize"
	if res.DryRun {
		mode = "plan"
	}
	fmt.Fprintf(w, "Run %s (%s): %s\n", res.RunID, mode, res.State)
	fmt.Fprintf(w, "Processed: %s  Duplicates: %s  Skipped: %s  Errors: %s\n",
		formatCount(int64(res.Processed)), formatCount(int64(res.Duplicates)),
		formatCount(int64(res.Skipped)), formatCount(int64(len(res.Errors))))

	if len(res.Groups) > 0 {
		rows := make([][]string, 0, len(res.Groups))
		for _, g := range res.Groups {
			start, end := "-", "-"
			if !g.Unknown {
				start = g.Start.Format(timeLayout)
				end = g.End.Format(timeLayout)
			}
			rows = append(rows, []string{g.Name, strconv.Itoa(g.Len()), start, end})
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, renderTable([]string{"Group", "Files", "Start", "End"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft}))
	}

	if len(res.Actions) > 0 {
		rows := make([][]string, 0, len(res.Actions))
		for _, act := range res.Actions {
			rows = append(rows, []string{string(act.Kind), string(act.Status), act.Source, act.Destination, act.Reason})
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, renderTable([]string{"Action", "Status", "Source", "Destination", "Reason"}, rows, nil))
	}

	if len(res.DuplicateSets) > 0 {
		rows := make([][]string, 0, len(res.DuplicateSets))
		for _, set := range res.DuplicateSets {
			kept := set.Canonical.Path
			if set.PreviousDestination != "" {
				kept = set.PreviousDestination + " (earlier run)"
			}
			for _, d := range set.Duplicates {
				rows = append(rows, []string{d.Path, kept})
			}
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, renderTable([]string{"Duplicate", "Duplicate of"}, rows, nil))
	}

	if len(res.NearDuplicates) > 0 {
		rows := make([][]string, 0, len(res.NearDuplicates))
		for _, nd := range res.NearDuplicates {
			rows = append(rows, []string{nd.A, nd.B, strconv.FormatFloat(nd.Similarity, 'f', 3, 64)})
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, renderTable([]string{"Photo", "Similar to", "Similarity"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight}))
	}

	if len(res.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Errors:")
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  %s\n", e.Error())
		}
	}
}

// resultJSON is the --json form of a RunResult. Errors are flattened to
// strings since wrapped errors do not marshal.
type resultJSON struct {
	RunID          string              `json:"run_id"`
	State          photo.Stage         `json:"state"`
	DryRun         bool                `json:"dry_run"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     time.Time           `json:"finished_at"`
	Processed      int                 `json:"processed"`
	Skipped        int                 `json:"skipped"`
	Duplicates     int                 `json:"duplicates"`
	Groups         []groupJSON         `json:"groups"`
	Actions        []actionJSON        `json:"actions"`
	DuplicateSets  []duplicateSetJSON  `json:"duplicate_sets"`
	NearDuplicates []nearDuplicateJSON `json:"near_duplicates"`
	Errors         []errorJSON         `json:"errors"`
}

type groupJSON struct {
	Name    string     `json:"name"`
	Unknown bool       `json:"unknown"`
	Start   *time.Time `json:"start,omitempty"`
	End     *time.Time `json:"end,omitempty"`
	Files   []string   `json:"files"`
}

type actionJSON struct {
	Kind        photo.ActionKind   `json:"kind"`
	Status      photo.ActionStatus `json:"status"`
	Source      string             `json:"source"`
	Destination string             `json:"destination,omitempty"`
	Group       string             `json:"group"`
	Reason      string             `json:"reason,omitempty"`
	Checksum    string             `json:"checksum"`
	Error       string             `json:"error,omitempty"`
}

type duplicateSetJSON struct {
	Checksum            string   `json:"checksum"`
	Canonical           string   `json:"canonical"`
	Duplicates          []string `json:"duplicates"`
	PreviousDestination string   `json:"previous_destination,omitempty"`
}

type nearDuplicateJSON struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	Similarity float64 `json:"similarity"`
}

type errorJSON struct {
	Kind    photo.ErrorKind `json:"kind"`
	Path    string          `json:"path,omitempty"`
	Message string          `json:"message"`
}

func newResultJSON(res *photo.RunResult) resultJSON {
	out := resultJSON{
		RunID:          res.RunID,
		State:          res.State,
		DryRun:         res.DryRun,
		StartedAt:      res.StartedAt,
		FinishedAt:     res.FinishedAt,
		Processed:      res.Processed,
		Skipped:        res.Skipped,
		Duplicates:     res.Duplicates,
		Groups:         []groupJSON{},
		Actions:        []actionJSON{},
		DuplicateSets:  []duplicateSetJSON{},
		NearDuplicates: []nearDuplicateJSON{},
		Errors:         []errorJSON{},
	}
	for _, g := range res.Groups {
		gj := groupJSON{Name: g.Name, Unknown: g.Unknown, Files: make([]string, 0, g.Len())}
		if !g.Unknown {
			start, end := g.Start, g.End
			gj.Start, gj.End = &start, &end
		}
		for _, r := range g.Records {
			gj.Files = append(gj.Files, r.Path)
		}
		out.Groups = append(out.Groups, gj)
	}
	for _, act := range res.Actions {
		aj := actionJSON{
			Kind:        act.Kind,
			Status:      act.Status,
			Source:      act.Source,
			Destination: act.Destination,
			Group:       act.Group,
			Reason:      act.Reason,
			Checksum:    act.Record.Checksum,
		}
		if act.Err != nil {
			aj.Error = act.Err.Error()
		}
		out.Actions = append(out.Actions, aj)
	}
	for _, set := range res.DuplicateSets {
		sj := duplicateSetJSON{
			Checksum:            set.Checksum,
			Canonical:           set.Canonical.Path,
			Duplicates:          make([]string, 0, len(set.Duplicates)),
			PreviousDestination: set.PreviousDestination,
		}
		for _, d := range set.Duplicates {
			sj.Duplicates = append(sj.Duplicates, d.Path)
		}
		out.DuplicateSets = append(out.DuplicateSets, sj)
	}
	for _, nd := range res.NearDuplicates {
		out.NearDuplicates = append(out.NearDuplicates, nearDuplicateJSON(nd))
	}
	for _, e := range res.Errors {
		ej := errorJSON{Kind: e.Kind, Path: e.Path, Message: e.Error()}
		if e.Err != nil {
			ej.Message = e.Err.Error()
		}
		out.Errors = append(out.Errors, ej)
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}
