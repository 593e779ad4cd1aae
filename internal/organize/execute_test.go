package organize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"eventphoto/internal/photo"
	"eventphoto/internal/testutil"
)

func planFor(t *testing.T, fsmgr *testutil.MockFilesystemManager, mode photo.TransferMode, paths ...string) []photo.OrganizeAction {
	t.Helper()
	for _, p := range paths {
		fsmgr.AddFile(p, []byte("content of "+p))
	}
	opts := PlanOptions{Root: "/dest", Mode: mode, Conflict: photo.ConflictRename}
	actions, _, err := Plan([]photo.EventGroup{groupOf("e", paths...)}, opts, fsmgr.Exists)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	return actions
}

func TestExecute_Move(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	actions := planFor(t, fsmgr, photo.TransferMove, "/src/a.jpg", "/src/b.jpg", "/src/sub/a.jpg")

	var calls atomic.Int32
	out, err := NewExecutor(fsmgr, nil).Execute(context.Background(), actions, ExecOptions{
		Workers:  3,
		Progress: func(done, total int, a *photo.OrganizeAction) { calls.Add(1) },
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("progress called %d times, want 3", calls.Load())
	}
	for _, a := range out {
		if a.Status != photo.StatusDone {
			t.Errorf("%s status = %s, want done", a.Source, a.Status)
		}
		if _, ok := fsmgr.Content(a.Destination); !ok {
			t.Errorf("%s missing", a.Destination)
		}
		if _, ok := fsmgr.Content(a.Source); ok {
			t.Errorf("%s still present after move", a.Source)
		}
	}
	if got := []string{out[0].Destination, out[1].Destination, out[2].Destination}; got[0] != "/dest/e/a.jpg" || got[2] != "/dest/e/a_2.jpg" {
		t.Errorf("destinations = %v", got)
	}
}

func TestExecute_CopyKeepsSource(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	actions := planFor(t, fsmgr, photo.TransferCopy, "/src/a.jpg")

	out, err := NewExecutor(fsmgr, nil).Execute(context.Background(), actions, ExecOptions{Workers: 1})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out[0].Status != photo.StatusDone {
		t.Fatalf("status = %s, want done", out[0].Status)
	}
	if _, ok := fsmgr.Content("/src/a.jpg"); !ok {
		t.Error("source removed by copy")
	}
}

func TestExecute_FailureIsIsolated(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	actions := planFor(t, fsmgr, photo.TransferMove, "/src/a.jpg", "/src/b.jpg", "/src/c.jpg")
	fsmgr.FailTransfer("/src/b.jpg", testutil.ErrInjected)

	out, err := NewExecutor(fsmgr, nil).Execute(context.Background(), actions, ExecOptions{Workers: 2})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out[0].Status != photo.StatusDone || out[2].Status != photo.StatusDone {
		t.Errorf("statuses = %s, %s, want done", out[0].Status, out[2].Status)
	}
	if out[1].Status != photo.StatusFailed {
		t.Fatalf("failing action status = %s, want failed", out[1].Status)
	}
	if out[1].Err == nil || out[1].Err.Kind != photo.KindFilesystemMoveFailure {
		t.Errorf("Err = %v, want FilesystemMoveFailure", out[1].Err)
	}
	if !errors.Is(out[1].Err, photo.ErrMove) {
		t.Error("errors.Is(err, ErrMove) = false")
	}
}

func TestExecute_SkipsAreNotTransferred(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/src/a.jpg", []byte("a"))
	actions := []photo.OrganizeAction{{Source: "/src/a.jpg", Destination: "/dest/e/a.jpg", Kind: photo.ActionSkip, Status: photo.StatusPlanned}}

	out, err := NewExecutor(fsmgr, nil).Execute(context.Background(), actions, ExecOptions{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out[0].Status != photo.StatusSkipped {
		t.Errorf("status = %s, want skipped", out[0].Status)
	}
	if _, ok := fsmgr.Content("/dest/e/a.jpg"); ok {
		t.Error("skip action transferred the file")
	}
}

func TestExecute_DestinationAppearedAfterPlanning(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	actions := planFor(t, fsmgr, photo.TransferMove, "/src/a.jpg")
	fsmgr.AddFile("/dest/e/a.jpg", []byte("someone else"))

	out, _ := NewExecutor(fsmgr, nil).Execute(context.Background(), actions, ExecOptions{})
	if out[0].Status != photo.StatusFailed || out[0].Err.Kind != photo.KindDestinationConflictUnresolved {
		t.Errorf("action = %s/%v, want failed conflict", out[0].Status, out[0].Err)
	}
	if got, _ := fsmgr.Content("/dest/e/a.jpg"); string(got) != "someone else" {
		t.Error("existing destination was overwritten")
	}
}

func TestExecute_Cancelled(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	var paths []string
	for i := 0; i < 10; i++ {
		paths = append(paths, fmt.Sprintf("/src/%02d.jpg", i))
	}
	actions := planFor(t, fsmgr, photo.TransferMove, paths...)

	ctx, cancel := context.WithCancel(context.Background())
	out, err := NewExecutor(fsmgr, nil).Execute(ctx, actions, ExecOptions{
		Workers: 1,
		Progress: func(done, total int, a *photo.OrganizeAction) {
			if done == 3 {
				cancel()
			}
		},
	})
	if !errors.Is(err, photo.ErrCancelled) {
		t.Fatalf("Execute() error = %v, want ErrCancelled", err)
	}

	var doneCount, cancelledCount int
	for _, a := range out {
		switch a.Status {
		case photo.StatusDone:
			doneCount++
			if _, ok := fsmgr.Content(a.Destination); !ok {
				t.Errorf("done action %s has no destination file", a.Source)
			}
		case photo.StatusCancelled:
			cancelledCount++
			if _, ok := fsmgr.Content(a.Source); !ok {
				t.Errorf("cancelled action %s moved its source", a.Source)
			}
		default:
			t.Errorf("%s has status %s", a.Source, a.Status)
		}
	}
	if doneCount < 3 || cancelledCount == 0 || doneCount+cancelledCount != len(out) {
		t.Errorf("done = %d, cancelled = %d", doneCount, cancelledCount)
	}
}

func TestExecute_Empty(t *testing.T) {
	out, err := NewExecutor(testutil.NewMockFilesystemManager(), nil).Execute(context.Background(), nil, ExecOptions{})
	if err != nil || len(out) != 0 {
		t.Errorf("Execute(nil) = %v, %v", out, err)
	}
}

func TestLockDestination(t *testing.T) {
	root := t.TempDir()

	first, err := LockDestination(root)
	if err != nil {
		t.Fatalf("LockDestination() error = %v", err)
	}

	if _, err := LockDestination(root); !errors.Is(err, photo.ErrDestinationBusy) {
		t.Errorf("second LockDestination() error = %v, want ErrDestinationBusy", err)
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	again, err := LockDestination(root)
	if err != nil {
		t.Fatalf("LockDestination() after unlock error = %v", err)
	}
	again.Unlock()
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	unlockB := k.Lock("b") // independent key does not block
	unlockB()
	unlock()
	if len(k.locks) != 0 {
		t.Errorf("len(locks) = %d, want 0 after release", len(k.locks))
	}
}

func TestKeyedMutex_SameKeyWaits(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")

	acquired := make(chan struct{})
	go func() {
		release := k.Lock("a")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock(\"a\") returned while the first was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock(\"a\") never returned after unlock")
	}
}

// overlapFS records whether two transfers to one destination ever ran at
// the same time.
type overlapFS struct {
	*testutil.MockFilesystemManager
	mu      sync.Mutex
	active  map[string]int
	overlap atomic.Bool
}

func (f *overlapFS) Move(src *photo.Path, dst string) error {
	f.mu.Lock()
	f.active[dst]++
	if f.active[dst] > 1 {
		f.overlap.Store(true)
	}
	f.mu.Unlock()

	time.Sleep(10 * time.Millisecond)
	err := f.MockFilesystemManager.Move(src, dst)

	f.mu.Lock()
	f.active[dst]--
	f.mu.Unlock()
	return err
}

func TestExecute_SerializesSharedDestination(t *testing.T) {
	fsmgr := &overlapFS{MockFilesystemManager: testutil.NewMockFilesystemManager(), active: make(map[string]int)}
	var actions []photo.OrganizeAction
	for i := 0; i < 4; i++ {
		src := fmt.Sprintf("/src/%d.jpg", i)
		fsmgr.AddFile(src, []byte(src))
		actions = append(actions, photo.OrganizeAction{
			Source:      src,
			Destination: "/dest/e/same.jpg",
			Kind:        photo.ActionMove,
			Mode:        photo.TransferMove,
			Overwrite:   true,
			Status:      photo.StatusPlanned,
		})
	}

	out, err := NewExecutor(fsmgr, nil).Execute(context.Background(), actions, ExecOptions{Workers: 4})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if fsmgr.overlap.Load() {
		t.Error("transfers to the same destination overlapped")
	}
	for _, a := range out {
		if a.Status != photo.StatusDone {
			t.Errorf("%s status = %s, want done", a.Source, a.Status)
		}
	}
}
