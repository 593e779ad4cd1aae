package group

import (
	"fmt"
	"testing"
	"time"

	"eventphoto/internal/photo"
)

func at(path string, tm time.Time) photo.PhotoRecord {
	return photo.PhotoRecord{Path: path, CapturedAt: &tm}
}

func day(d, h, m int) time.Time {
	return time.Date(2024, 6, d, h, m, 0, 0, time.UTC)
}

func TestGroup_GapSplitsEvents(t *testing.T) {
	records := []photo.PhotoRecord{
		at("/src/c.jpg", day(1, 14, 0)),
		at("/src/a.jpg", day(1, 10, 0)),
		at("/src/b.jpg", day(1, 10, 5)),
	}
	groups, err := Group(records, Options{Gap: time.Hour})
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if groups[0].Len() != 2 || groups[0].Records[0].Path != "/src/a.jpg" || groups[0].Records[1].Path != "/src/b.jpg" {
		t.Errorf("groups[0] = %+v", groups[0].Records)
	}
	if groups[1].Len() != 1 || groups[1].Records[0].Path != "/src/c.jpg" {
		t.Errorf("groups[1] = %+v", groups[1].Records)
	}
	if groups[0].Name != "2024-06-01" || groups[1].Name != "2024-06-01-2" {
		t.Errorf("names = %q, %q", groups[0].Name, groups[1].Name)
	}
}

func TestGroup_GapIsInclusive(t *testing.T) {
	records := []photo.PhotoRecord{
		at("/src/a.jpg", day(1, 10, 0)),
		at("/src/b.jpg", day(1, 11, 0)),
	}
	groups, err := Group(records, Options{Gap: time.Hour})
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if len(groups) != 1 {
		t.Errorf("len(groups) = %d, want 1 (a gap equal to the threshold does not split)", len(groups))
	}
}

func TestGroup_Empty(t *testing.T) {
	groups, err := Group(nil, Options{Gap: time.Hour})
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("len(groups) = %d, want 0", len(groups))
	}
}

func TestGroup_InvalidGap(t *testing.T) {
	for _, gap := range []time.Duration{0, -time.Minute} {
		if _, err := Group(nil, Options{Gap: gap}); err == nil {
			t.Errorf("Group(gap=%s) expected error", gap)
		}
	}
}

func TestGroup_UnknownTrails(t *testing.T) {
	records := []photo.PhotoRecord{
		{Path: "/src/z.jpg"},
		at("/src/a.jpg", day(2, 9, 0)),
		{Path: "/src/m.jpg"},
	}
	groups, err := Group(records, Options{Gap: time.Hour})
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	last := groups[len(groups)-1]
	if !last.Unknown || last.Name != UnknownName {
		t.Errorf("last group = %+v, want unknown group", last)
	}
	if last.Records[0].Path != "/src/m.jpg" || last.Records[1].Path != "/src/z.jpg" {
		t.Errorf("unknown records not sorted by path: %s, %s", last.Records[0].Path, last.Records[1].Path)
	}
}

func TestGroup_Partition(t *testing.T) {
	gap := 30 * time.Minute
	var records []photo.PhotoRecord
	offsets := []int{0, 5, 50, 51, 52, 200, 225, 250, 1000, 1000}
	for i, off := range offsets {
		records = append(records, at(fmt.Sprintf("/src/%02d.jpg", len(offsets)-i), day(3, 0, 0).Add(time.Duration(off)*time.Minute)))
	}
	records = append(records, photo.PhotoRecord{Path: "/src/none.jpg"})

	groups, err := Group(records, Options{Gap: gap})
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}

	seen := make(map[string]int)
	for gi, g := range groups {
		for i, r := range g.Records {
			seen[r.Path]++
			if g.Unknown || i == 0 {
				continue
			}
			prev := g.Records[i-1]
			if r.CapturedAt.Before(*prev.CapturedAt) {
				t.Errorf("group %d not ordered at %d", gi, i)
			}
			if r.CapturedAt.Sub(*prev.CapturedAt) > gap {
				t.Errorf("group %d contains a gap larger than %s", gi, gap)
			}
		}
		if gi > 0 && !g.Unknown && !groups[gi-1].Unknown {
			if g.Start.Sub(groups[gi-1].End) <= gap {
				t.Errorf("groups %d and %d should have been merged", gi-1, gi)
			}
		}
	}
	if len(seen) != len(records) {
		t.Errorf("%d distinct records grouped, want %d", len(seen), len(records))
	}
	for p, n := range seen {
		if n != 1 {
			t.Errorf("%s appears in %d groups", p, n)
		}
	}
	// 0-5, 50-52, 200-250, 1000, unknown
	if len(groups) != 5 {
		t.Errorf("len(groups) = %d, want 5", len(groups))
	}
}

func TestGroup_Naming(t *testing.T) {
	records := []photo.PhotoRecord{
		at("/src/a.jpg", day(1, 22, 0)),
		at("/src/b.jpg", day(2, 1, 0)),
		at("/src/c.jpg", day(9, 12, 0)),
	}
	groups, err := Group(records, Options{Gap: 4 * time.Hour, Label: "Café Müller, Köln"})
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	want := []string{"cafe-muller-koln-2024-06-01_to_2024-06-02", "cafe-muller-koln-2024-06-09"}
	if len(groups) != len(want) {
		t.Fatalf("len(groups) = %d, want %d", len(groups), len(want))
	}
	for i, w := range want {
		if groups[i].Name != w {
			t.Errorf("groups[%d].Name = %q, want %q", i, groups[i].Name, w)
		}
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"Grand Hall", "grand-hall"},
		{"Café Müller, Köln", "cafe-muller-koln"},
		{"  --Rock & Roll!!--", "rock-roll"},
		{"under_score-ok", "under_score-ok"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slug(tt.in); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
