package organize

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"eventphoto/internal/photo"
)

func groupOf(name string, paths ...string) photo.EventGroup {
	g := photo.EventGroup{Name: name}
	for _, p := range paths {
		g.Records = append(g.Records, photo.PhotoRecord{Path: p})
	}
	return g
}

func existsIn(paths ...string) ExistsFunc {
	set := make(map[string]bool)
	for _, p := range paths {
		set[p] = true
	}
	return func(p string) (bool, error) { return set[p], nil }
}

func baseOptions(policy photo.ConflictPolicy) PlanOptions {
	return PlanOptions{Root: "/dest", Mode: photo.TransferMove, Conflict: policy}
}

func TestPlan_Empty(t *testing.T) {
	actions, errs, err := Plan(nil, baseOptions(photo.ConflictRename), existsIn())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(actions) != 0 || len(errs) != 0 {
		t.Errorf("Plan(nil) = %d actions, %d errors, want none", len(actions), len(errs))
	}
}

func TestPlan_Destinations(t *testing.T) {
	groups := []photo.EventGroup{
		groupOf("2024-06-01", "/src/b/IMG_2.jpg", "/src/a/IMG_1.jpg"),
		groupOf("2024-06-02", "/src/c/IMG_3.jpg"),
	}
	actions, errs, err := Plan(groups, baseOptions(photo.ConflictRename), existsIn())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("Plan() errors = %v", errs)
	}
	want := []struct{ src, dst string }{
		{"/src/a/IMG_1.jpg", "/dest/2024-06-01/IMG_1.jpg"},
		{"/src/b/IMG_2.jpg", "/dest/2024-06-01/IMG_2.jpg"},
		{"/src/c/IMG_3.jpg", "/dest/2024-06-02/IMG_3.jpg"},
	}
	for i, w := range want {
		a := actions[i]
		if a.Source != w.src || a.Destination != w.dst {
			t.Errorf("actions[%d] = %s -> %s, want %s -> %s", i, a.Source, a.Destination, w.src, w.dst)
		}
		if a.Kind != photo.ActionMove || a.Status != photo.StatusPlanned {
			t.Errorf("actions[%d] kind=%s status=%s", i, a.Kind, a.Status)
		}
	}
}

func TestPlan_CopyMode(t *testing.T) {
	opts := baseOptions(photo.ConflictRename)
	opts.Mode = photo.TransferCopy
	actions, _, err := Plan([]photo.EventGroup{groupOf("e", "/src/a.jpg")}, opts, existsIn())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if actions[0].Kind != photo.ActionCopy || actions[0].Mode != photo.TransferCopy {
		t.Errorf("action = %s/%s, want copy/copy", actions[0].Kind, actions[0].Mode)
	}
}

func TestPlan_ConflictPolicies(t *testing.T) {
	// two sources share a base name; the first destination also exists on disk
	groups := []photo.EventGroup{groupOf("e", "/src/x/a.jpg", "/src/y/a.jpg")}
	onDisk := existsIn("/dest/e/a.jpg")

	tests := []struct {
		policy    photo.ConflictPolicy
		wantKinds []photo.ActionKind
		wantDests []string
		wantErrs  int
	}{
		{
			policy:    photo.ConflictRename,
			wantKinds: []photo.ActionKind{photo.ActionRename, photo.ActionRename},
			wantDests: []string{"/dest/e/a_2.jpg", "/dest/e/a_3.jpg"},
		},
		{
			policy:    photo.ConflictOverwrite,
			wantKinds: []photo.ActionKind{photo.ActionMove, photo.ActionSkip},
			wantDests: []string{"/dest/e/a.jpg", ""},
			wantErrs:  1,
		},
		{
			policy:    photo.ConflictSkip,
			wantKinds: []photo.ActionKind{photo.ActionSkip, photo.ActionSkip},
			wantDests: []string{"", ""},
			wantErrs:  2,
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			actions, errs, err := Plan(groups, baseOptions(tt.policy), onDisk)
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if len(errs) != tt.wantErrs {
				t.Errorf("len(errs) = %d, want %d", len(errs), tt.wantErrs)
			}
			for _, e := range errs {
				if !errors.Is(e, photo.ErrConflict) {
					t.Errorf("error %v is not a conflict", e)
				}
			}
			for i := range actions {
				if actions[i].Kind != tt.wantKinds[i] {
					t.Errorf("actions[%d].Kind = %s, want %s", i, actions[i].Kind, tt.wantKinds[i])
				}
				if actions[i].Destination != tt.wantDests[i] {
					t.Errorf("actions[%d].Destination = %s, want %s", i, actions[i].Destination, tt.wantDests[i])
				}
			}
			if tt.policy == photo.ConflictOverwrite && !actions[0].Overwrite {
				t.Error("first action should overwrite the existing file")
			}
		})
	}
}

func TestPlan_RenameNeverDuplicatesDestinations(t *testing.T) {
	var paths []string
	for i := 0; i < 50; i++ {
		paths = append(paths, fmt.Sprintf("/src/%02d/IMG.jpg", i))
	}
	// a few suffixed names are already taken on disk
	onDisk := existsIn("/dest/e/IMG.jpg", "/dest/e/IMG_2.jpg", "/dest/e/IMG_5.jpg")

	actions, errs, err := Plan([]photo.EventGroup{groupOf("e", paths...)}, baseOptions(photo.ConflictRename), onDisk)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("Plan() errors = %v", errs)
	}
	seen := make(map[string]string)
	for _, a := range actions {
		if prev, ok := seen[a.Destination]; ok {
			t.Fatalf("%s planned for both %s and %s", a.Destination, prev, a.Source)
		}
		if ok, _ := onDisk(a.Destination); ok {
			t.Errorf("%s planned onto an existing file", a.Destination)
		}
		seen[a.Destination] = a.Source
	}
	if actions[0].Destination != "/dest/e/IMG_3.jpg" {
		t.Errorf("first destination = %s, want /dest/e/IMG_3.jpg", actions[0].Destination)
	}
}

func TestPlan_DestinationsUniqueForEveryPolicy(t *testing.T) {
	groups := []photo.EventGroup{
		groupOf("2024-06-01", "/src/a/IMG_1.jpg", "/src/b/IMG_1.jpg", "/src/c/IMG_1.jpg", "/src/d/IMG_2.jpg"),
	}
	tests := []struct {
		name   string
		onDisk ExistsFunc
	}{
		{"empty destination", existsIn()},
		{"name taken on disk", existsIn("/dest/2024-06-01/IMG_1.jpg")},
		{"check fails", func(p string) (bool, error) {
			if p == "/dest/2024-06-01/IMG_2.jpg" {
				return false, errors.New("permission denied")
			}
			return false, nil
		}},
	}
	for _, policy := range []photo.ConflictPolicy{photo.ConflictRename, photo.ConflictOverwrite, photo.ConflictSkip} {
		for _, tt := range tests {
			t.Run(string(policy)+"/"+tt.name, func(t *testing.T) {
				actions, errs, err := Plan(groups, baseOptions(policy), tt.onDisk)
				if err != nil {
					t.Fatalf("Plan() error = %v", err)
				}
				if len(actions) != 4 {
					t.Fatalf("len(actions) = %d, want 4", len(actions))
				}
				seen := make(map[string]string)
				for _, a := range actions {
					if a.Kind == photo.ActionSkip && a.Err != nil {
						if a.Destination != "" {
							t.Errorf("unresolved skip of %s keeps destination %s", a.Source, a.Destination)
						}
						if a.Reason == "" {
							t.Errorf("unresolved skip of %s has no reason", a.Source)
						}
						continue
					}
					if a.Destination == "" {
						t.Errorf("%s action for %s has no destination", a.Kind, a.Source)
						continue
					}
					if prev, ok := seen[a.Destination]; ok {
						t.Errorf("%s used by %s and %s", a.Destination, prev, a.Source)
					}
					seen[a.Destination] = a.Source
				}
				for _, e := range errs {
					if e.Kind != photo.KindDestinationConflictUnresolved {
						t.Errorf("error kind = %s, want %s", e.Kind, photo.KindDestinationConflictUnresolved)
					}
				}
			})
		}
	}
}

func TestPlan_Deterministic(t *testing.T) {
	groups := []photo.EventGroup{groupOf("e", "/src/c.jpg", "/src/a.jpg", "/src/b/a.jpg")}
	first, _, _ := Plan(groups, baseOptions(photo.ConflictRename), existsIn())
	for i := 0; i < 5; i++ {
		again, _, _ := Plan(groups, baseOptions(photo.ConflictRename), existsIn())
		for j := range first {
			if first[j].Source != again[j].Source || first[j].Destination != again[j].Destination {
				t.Fatalf("run %d differs at %d: %s vs %s", i, j, first[j].Destination, again[j].Destination)
			}
		}
	}
}

func TestPlan_CreditNaming(t *testing.T) {
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	g := photo.EventGroup{Name: "hall-2024-06-01", Start: ts, End: ts, Records: []photo.PhotoRecord{
		{Path: "/src/z.JPG"},
		{Path: "/src/a.png"},
	}}
	opts := baseOptions(photo.ConflictRename)
	opts.Photographer = "Ann/Lee"

	actions, _, err := Plan([]photo.EventGroup{g}, opts, existsIn())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	// numbered in group order, reported in source order
	want := map[string]string{
		"/src/z.JPG": "/dest/hall-2024-06-01/Credit Ann-Lee - 1.jpg",
		"/src/a.png": "/dest/hall-2024-06-01/Credit Ann-Lee - 2.png",
	}
	for _, a := range actions {
		if a.Destination != want[a.Source] {
			t.Errorf("%s -> %s, want %s", a.Source, a.Destination, want[a.Source])
		}
	}
}

func TestPlan_AlreadyInPlace(t *testing.T) {
	actions, errs, err := Plan([]photo.EventGroup{groupOf("e", "/dest/e/a.jpg")}, baseOptions(photo.ConflictSkip), existsIn("/dest/e/a.jpg"))
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(errs) != 0 {
		t.Errorf("errs = %v, want none", errs)
	}
	if actions[0].Kind != photo.ActionSkip || actions[0].Err != nil {
		t.Errorf("action = %+v, want a plain skip", actions[0])
	}
}

func TestPlan_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts PlanOptions
	}{
		{"no root", PlanOptions{Mode: photo.TransferMove, Conflict: photo.ConflictSkip}},
		{"bad mode", PlanOptions{Root: "/d", Mode: "teleport", Conflict: photo.ConflictSkip}},
		{"bad policy", PlanOptions{Root: "/d", Mode: photo.TransferMove, Conflict: "ask"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Plan(nil, tt.opts, existsIn()); err == nil {
				t.Error("Plan() expected error")
			}
		})
	}
}
