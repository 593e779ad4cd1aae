package journal

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"eventphoto/internal/photo"
	"eventphoto/internal/testutil"
)

// newTestJournal creates an in-memory journal with the schema applied.
func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()

	j, err := NewSQLiteJournal(":memory:", testutil.FixedClock())
	if err != nil {
		t.Fatalf("NewSQLiteJournal() error = %v", err)
	}
	if err := j.MigrateUp(); err != nil {
		j.Close()
		t.Fatalf("MigrateUp() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func createRun(t *testing.T, j *SQLiteJournal, id string, started time.Time) {
	t.Helper()
	err := j.CreateRun(&photo.RunRecord{
		ID:          id,
		Operation:   "organize",
		Sources:     "/src",
		Destination: "/dest",
		State:       photo.StageScanning,
		StartedAt:   started,
	})
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
}

func TestSQLiteJournal_Runs(t *testing.T) {
	t.Run("returns nil for unknown run", func(t *testing.T) {
		j := newTestJournal(t)
		run, err := j.FindRun("missing")
		if err != nil {
			t.Fatalf("FindRun() error = %v", err)
		}
		if run != nil {
			t.Errorf("FindRun() = %+v, want nil", run)
		}
	})

	t.Run("create and finish", func(t *testing.T) {
		j := newTestJournal(t)
		started := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
		createRun(t, j, "run-1", started)

		result := photo.NewRunResult("run-1", started)
		result.State = photo.StageDone
		result.Processed = 4
		result.Skipped = 1
		result.Duplicates = 2
		result.FinishedAt = started.Add(time.Minute)
		result.AddError(photo.NewError(photo.KindUnreadableFile, "/src/x.jpg", nil))
		if err := j.FinishRun(result); err != nil {
			t.Fatalf("FinishRun() error = %v", err)
		}

		run, err := j.FindRun("run-1")
		if err != nil || run == nil {
			t.Fatalf("FindRun() = %v, %v", run, err)
		}
		if run.State != photo.StageDone || run.Processed != 4 || run.Skipped != 1 || run.Duplicates != 2 || run.Errors != 1 {
			t.Errorf("run = %+v", run)
		}
		if !run.StartedAt.Equal(started) {
			t.Errorf("StartedAt = %v, want %v", run.StartedAt, started)
		}
		if run.FinishedAt == nil || !run.FinishedAt.Equal(started.Add(time.Minute)) {
			t.Errorf("FinishedAt = %v", run.FinishedAt)
		}
	})

	t.Run("finish unknown run fails", func(t *testing.T) {
		j := newTestJournal(t)
		if err := j.FinishRun(photo.NewRunResult("nope", time.Now())); err == nil {
			t.Error("FinishRun() expected error")
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		j := newTestJournal(t)
		base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
		for i := 1; i <= 3; i++ {
			createRun(t, j, fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Hour))
		}
		runs, err := j.ListRuns(2)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 2 || runs[0].ID != "run-3" || runs[1].ID != "run-2" {
			t.Errorf("ListRuns(2) = %v", runs)
		}
	})
}

func TestSQLiteJournal_ActionsAndContentIndex(t *testing.T) {
	j := newTestJournal(t)
	createRun(t, j, "run-1", time.Now())

	actions := []photo.OrganizeAction{
		{Source: "/src/a.jpg", Destination: "/dest/e/a.jpg", Kind: photo.ActionMove, Status: photo.StatusDone, Group: "e", Record: photo.PhotoRecord{Checksum: "aaa"}},
		{Source: "/src/b.jpg", Destination: "/dest/e/b.jpg", Kind: photo.ActionMove, Status: photo.StatusFailed, Group: "e", Record: photo.PhotoRecord{Checksum: "bbb"},
			Err: photo.NewError(photo.KindFilesystemMoveFailure, "/src/b.jpg", errors.New("disk full"))},
		{Source: "/src/c.jpg", Kind: photo.ActionSkip, Status: photo.StatusSkipped, Group: "e", Record: photo.PhotoRecord{Checksum: "ccc"}},
	}
	if err := j.RecordActions("run-1", actions); err != nil {
		t.Fatalf("RecordActions() error = %v", err)
	}

	got, err := j.FindRunActions("run-1")
	if err != nil {
		t.Fatalf("FindRunActions() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(FindRunActions()) = %d, want 3", len(got))
	}
	if got[1].Status != photo.StatusFailed || got[1].Error == "" || got[1].Checksum != "bbb" {
		t.Errorf("actions[1] = %+v", got[1])
	}

	organized, err := j.FindOrganizedChecksums([]string{"aaa", "bbb", "ccc", "zzz"})
	if err != nil {
		t.Fatalf("FindOrganizedChecksums() error = %v", err)
	}
	if len(organized) != 1 || organized["aaa"] != "/dest/e/a.jpg" {
		t.Errorf("FindOrganizedChecksums() = %v, want only aaa", organized)
	}

	t.Run("later run wins", func(t *testing.T) {
		createRun(t, j, "run-2", time.Now())
		err := j.RecordActions("run-2", []photo.OrganizeAction{
			{Source: "/src2/a.jpg", Destination: "/dest/f/a.jpg", Kind: photo.ActionCopy, Status: photo.StatusDone, Record: photo.PhotoRecord{Checksum: "aaa"}},
		})
		if err != nil {
			t.Fatalf("RecordActions() error = %v", err)
		}
		organized, _ := j.FindOrganizedChecksums([]string{"aaa"})
		if organized["aaa"] != "/dest/f/a.jpg" {
			t.Errorf("destination = %q, want /dest/f/a.jpg", organized["aaa"])
		}
	})

	t.Run("large lookups are batched", func(t *testing.T) {
		sums := make([]string, lookupBatch*2+7)
		for i := range sums {
			sums[i] = fmt.Sprintf("sum-%d", i)
		}
		sums[len(sums)-1] = "aaa"
		organized, err := j.FindOrganizedChecksums(sums)
		if err != nil {
			t.Fatalf("FindOrganizedChecksums() error = %v", err)
		}
		if len(organized) != 1 {
			t.Errorf("len = %d, want 1", len(organized))
		}
	})

	t.Run("empty lookup", func(t *testing.T) {
		organized, err := j.FindOrganizedChecksums(nil)
		if err != nil || len(organized) != 0 {
			t.Errorf("FindOrganizedChecksums(nil) = %v, %v", organized, err)
		}
	})
}

func TestSQLiteJournal_Errors(t *testing.T) {
	j := newTestJournal(t)
	createRun(t, j, "run-1", time.Now())

	errs := []*photo.Error{
		photo.NewError(photo.KindUnreadableFile, "/src/a.jpg", errors.New("bad header")),
		photo.NewError(photo.KindCancellationRequested, "", nil),
	}
	if err := j.RecordErrors("run-1", errs); err != nil {
		t.Fatalf("RecordErrors() error = %v", err)
	}
	got, err := j.FindRunErrors("run-1")
	if err != nil {
		t.Fatalf("FindRunErrors() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Kind != photo.KindUnreadableFile || got[0].Err.Error() != "bad header" {
		t.Errorf("errors[0] = %v", got[0])
	}
	if !errors.Is(got[1], photo.ErrCancelled) {
		t.Errorf("errors[1] = %v, want cancellation", got[1])
	}
}

func TestSQLiteJournal_CheckMigrations(t *testing.T) {
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "j.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLiteJournal() error = %v", err)
	}
	defer j.Close()

	if err := j.CheckMigrations(); err == nil {
		t.Error("CheckMigrations() on fresh journal expected error")
	}
	if err := j.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	if err := j.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() error = %v", err)
	}
}

func TestSQLiteJournal_BackupTo(t *testing.T) {
	j := newTestJournal(t)
	createRun(t, j, "run-1", time.Now())

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := j.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	copyJ, err := NewSQLiteJournal(dest, nil)
	if err != nil {
		t.Fatalf("NewSQLiteJournal() error = %v", err)
	}
	defer copyJ.Close()
	run, err := copyJ.FindRun("run-1")
	if err != nil || run == nil {
		t.Errorf("FindRun() on backup = %v, %v", run, err)
	}
}
