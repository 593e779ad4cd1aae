// Package group partitions photo records into events separated by gaps in
// capture time.
package group

import (
	"fmt"
	"sort"
	"time"

	"eventphoto/internal/photo"
)

// DefaultGap is the gap used when none is configured.
const DefaultGap = 2 * time.Hour

// UnknownName names the group of records without a timestamp.
const UnknownName = "unknown-date"

const (
	dayLayout   = "2006-01-02"
	rangeFormat = "%s_to_%s"
)

// Options controls grouping and group naming.
type Options struct {
	// Gap is the largest time between consecutive photos of one event.
	// A larger gap starts a new event. Must be positive.
	Gap time.Duration
	// Label is an optional event label (e.g. a venue) prefixed to every
	// group name in slug form.
	Label string
}

// Validate checks that the options can be used.
func (o Options) Validate() error {
	if o.Gap <= 0 {
		return fmt.Errorf("event gap must be positive, got %s", o.Gap)
	}
	return nil
}

// Group sorts timestamped records by (timestamp, path) and splits them
// wherever two consecutive records are more than opts.Gap apart. Records
// without a timestamp form a trailing unknown group. Every record appears
// in exactly one group; the input slice is not modified.
func Group(records []photo.PhotoRecord, opts Options) ([]photo.EventGroup, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var timed, unknown []photo.PhotoRecord
	for _, r := range records {
		if r.HasTimestamp() {
			timed = append(timed, r)
		} else {
			unknown = append(unknown, r)
		}
	}

	sort.SliceStable(timed, func(i, j int) bool {
		a, b := *timed[i].CapturedAt, *timed[j].CapturedAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return timed[i].Path < timed[j].Path
	})

	var groups []photo.EventGroup
	var current []photo.PhotoRecord
	flush := func() {
		if len(current) == 0 {
			return
		}
		groups = append(groups, photo.EventGroup{
			Start:   *current[0].CapturedAt,
			End:     *current[len(current)-1].CapturedAt,
			Records: current,
		})
		current = nil
	}
	for _, r := range timed {
		if len(current) > 0 && r.CapturedAt.Sub(*current[len(current)-1].CapturedAt) > opts.Gap {
			flush()
		}
		current = append(current, r)
	}
	flush()

	if len(unknown) > 0 {
		sort.SliceStable(unknown, func(i, j int) bool { return unknown[i].Path < unknown[j].Path })
		groups = append(groups, photo.EventGroup{Unknown: true, Records: unknown})
	}

	nameGroups(groups, Slug(opts.Label))
	return groups, nil
}

// nameGroups assigns "<label>-<date or range>" names, making repeats unique
// with -2, -3 suffixes in group order.
func nameGroups(groups []photo.EventGroup, label string) {
	seen := make(map[string]int)
	for i := range groups {
		name := baseName(&groups[i])
		if label != "" {
			name = label + "-" + name
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		groups[i].Name = name
	}
}

func baseName(g *photo.EventGroup) string {
	if g.Unknown {
		return UnknownName
	}
	start := g.Start.Format(dayLayout)
	end := g.End.Format(dayLayout)
	if start == end {
		return start
	}
	return fmt.Sprintf(rangeFormat, start, end)
}
