// Package organize turns event groups into filesystem actions and applies
// them under a destination root.
package organize

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"eventphoto/internal/photo"
)

// PlanOptions controls destination naming and conflict handling.
type PlanOptions struct {
	Root     string
	Mode     photo.TransferMode
	Conflict photo.ConflictPolicy

	// Photographer switches to credit naming:
	// "Credit <photographer> - <n><ext>", numbered per event.
	Photographer string
}

// Validate checks the options.
func (o PlanOptions) Validate() error {
	if o.Root == "" {
		return fmt.Errorf("destination root is required")
	}
	if _, err := photo.ParseTransferMode(string(o.Mode)); err != nil {
		return err
	}
	if _, err := photo.ParseConflictPolicy(string(o.Conflict)); err != nil {
		return err
	}
	return nil
}

// ExistsFunc reports whether a destination path is already taken on disk.
type ExistsFunc func(absPath string) (bool, error)

// Plan computes one action per record of every group. Candidates are
// processed in source path order; a destination already claimed by an earlier
// candidate or present on disk is resolved by the conflict policy. No two
// transferring actions share a destination. Unresolved conflicts become skip
// actions with a DestinationConflictUnresolved error and no destination, so
// non-empty destinations are unique within the plan.
func Plan(groups []photo.EventGroup, opts PlanOptions, exists ExistsFunc) ([]photo.OrganizeAction, []*photo.Error, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}

	type candidate struct {
		record photo.PhotoRecord
		group  string
		name   string
	}
	var candidates []candidate
	for _, g := range groups {
		for i, r := range g.Records {
			candidates = append(candidates, candidate{record: r, group: g.Name, name: fileName(r.Path, i+1, opts.Photographer)})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].record.Path < candidates[j].record.Path })

	transferKind := photo.ActionMove
	if opts.Mode == photo.TransferCopy {
		transferKind = photo.ActionCopy
	}

	claimed := make(map[string]bool)
	actions := make([]photo.OrganizeAction, 0, len(candidates))
	var errs []*photo.Error

	for _, c := range candidates {
		dest := filepath.Join(opts.Root, c.group, c.name)
		a := photo.OrganizeAction{
			Source:      c.record.Path,
			Destination: dest,
			Kind:        transferKind,
			Mode:        opts.Mode,
			Group:       c.group,
			Record:      c.record,
			Status:      photo.StatusPlanned,
		}

		if filepath.Clean(dest) == filepath.Clean(c.record.Path) {
			a.Kind = photo.ActionSkip
			a.Reason = "already in place"
			actions = append(actions, a)
			claimed[dest] = true
			continue
		}

		onDisk, err := exists(dest)
		if err != nil {
			unresolved(&a, "destination check failed", fmt.Errorf("checking %s: %w", dest, err))
			errs = append(errs, a.Err)
			actions = append(actions, a)
			continue
		}
		inRun := claimed[dest]

		if inRun || onDisk {
			switch opts.Conflict {
			case photo.ConflictRename:
				renamed, err := nextFree(dest, claimed, exists)
				if err != nil {
					unresolved(&a, "no free name", err)
					errs = append(errs, a.Err)
					actions = append(actions, a)
					continue
				}
				a.Destination = renamed
				a.Kind = photo.ActionRename
				a.Reason = fmt.Sprintf("%s taken", filepath.Base(dest))
			case photo.ConflictOverwrite:
				if inRun {
					unresolved(&a, "destination claimed by another file in this run", fmt.Errorf("%w: %s", photo.ErrConflict, dest))
					errs = append(errs, a.Err)
					actions = append(actions, a)
					continue
				}
				a.Overwrite = true
				a.Reason = "overwriting existing file"
			default:
				unresolved(&a, "destination exists", fmt.Errorf("%w: %s", photo.ErrConflict, dest))
				errs = append(errs, a.Err)
				actions = append(actions, a)
				continue
			}
		}

		claimed[a.Destination] = true
		actions = append(actions, a)
	}

	return actions, errs, nil
}

// unresolved turns a into a skip without a destination. The attempted path
// is kept in the reason and the error.
func unresolved(a *photo.OrganizeAction, reason string, err error) {
	a.Kind = photo.ActionSkip
	a.Reason = fmt.Sprintf("%s: %s", reason, a.Destination)
	a.Err = photo.NewError(photo.KindDestinationConflictUnresolved, a.Source, err)
	a.Destination = ""
}

var separators = strings.NewReplacer("/", "-", "\\", "-")

// maxSuffix bounds the rename search.
const maxSuffix = 10000

// nextFree returns dest with the first _N suffix (N >= 2) that is neither
// claimed in this run nor present on disk.
func nextFree(dest string, claimed map[string]bool, exists ExistsFunc) (string, error) {
	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	for n := 2; n < maxSuffix; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if claimed[candidate] {
			continue
		}
		onDisk, err := exists(candidate)
		if err != nil {
			return "", fmt.Errorf("checking %s: %w", candidate, err)
		}
		if !onDisk {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free name for %s", photo.ErrConflict, dest)
}

// fileName returns the destination file name for the n-th record of a group.
func fileName(source string, n int, photographer string) string {
	if photographer == "" {
		return filepath.Base(source)
	}
	name := separators.Replace(strings.TrimSpace(photographer))
	return fmt.Sprintf("Credit %s - %d%s", name, n, strings.ToLower(filepath.Ext(source)))
}
