package organize

import (
	"context"
	"fmt"
	"sync"

	"eventphoto/internal/photo"
)

// ExecOptions controls action execution.
type ExecOptions struct {
	// Workers bounds the number of concurrent transfers. Values < 1 mean 1.
	Workers int
	// Progress, if set, is called after each action settles. It may be
	// called from several goroutines.
	Progress func(done, total int, a *photo.OrganizeAction)
}

// Executor applies planned actions through a FilesystemManager.
type Executor struct {
	fsmgr  photo.FilesystemManager
	logger photo.Logger
	locks  *keyedMutex
}

// NewExecutor creates an Executor. A nil logger discards output.
func NewExecutor(fsmgr photo.FilesystemManager, logger photo.Logger) *Executor {
	if logger == nil {
		logger = photo.NewNopLogger()
	}
	return &Executor{fsmgr: fsmgr, logger: logger, locks: newKeyedMutex()}
}

// Execute runs the actions with bounded parallelism and returns them with
// Status and Err filled in, in the input order. A failing action never stops
// the others. Cancellation is checked before each action starts: actions
// already running finish, the rest are marked cancelled, and the returned
// error wraps photo.ErrCancelled. Nothing is rolled back.
func (e *Executor) Execute(ctx context.Context, actions []photo.OrganizeAction, opts ExecOptions) ([]photo.OrganizeAction, error) {
	out := make([]photo.OrganizeAction, len(actions))
	copy(out, actions)
	if len(out) == 0 {
		return out, nil
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu   sync.Mutex
		done int
	)
	settle := func(i int) {
		if opts.Progress == nil {
			return
		}
		mu.Lock()
		done++
		n := done
		mu.Unlock()
		opts.Progress(n, len(out), &out[i])
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					e.cancel(&out[i])
				} else {
					e.apply(&out[i])
				}
				settle(i)
			}
		}()
	}

	cancelled := false
	for i := range out {
		if !cancelled && ctx.Err() != nil {
			cancelled = true
		}
		if cancelled {
			e.cancel(&out[i])
			settle(i)
			continue
		}
		if !out[i].Transfers() {
			out[i].Status = photo.StatusSkipped
			settle(i)
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		return out, fmt.Errorf("executing actions: %w", photo.ErrCancelled)
	}
	return out, nil
}

func (e *Executor) cancel(a *photo.OrganizeAction) {
	if a.Status != photo.StatusPlanned {
		return
	}
	a.Status = photo.StatusCancelled
}

// apply performs one transfer. Transfers to the same destination are
// serialized.
func (e *Executor) apply(a *photo.OrganizeAction) {
	unlock := e.locks.Lock(a.Destination)
	defer unlock()

	fail := func(kind photo.ErrorKind, err error) {
		a.Status = photo.StatusFailed
		a.Err = photo.NewError(kind, a.Source, err)
		e.logger.Warn("action failed", "source", a.Source, "destination", a.Destination, "error", err)
	}

	if !a.Overwrite {
		taken, err := e.fsmgr.Exists(a.Destination)
		if err != nil {
			fail(photo.KindFilesystemMoveFailure, fmt.Errorf("checking destination: %w", err))
			return
		}
		if taken {
			fail(photo.KindDestinationConflictUnresolved, fmt.Errorf("%w: %s appeared after planning", photo.ErrConflict, a.Destination))
			return
		}
	}

	src, err := e.fsmgr.Resolve(a.Source)
	if err != nil {
		fail(photo.KindFilesystemMoveFailure, fmt.Errorf("resolving source: %w", err))
		return
	}

	if a.Mode == photo.TransferCopy {
		err = e.fsmgr.Copy(src, a.Destination)
	} else {
		err = e.fsmgr.Move(src, a.Destination)
	}
	if err != nil {
		fail(photo.KindFilesystemMoveFailure, fmt.Errorf("%w: %v", photo.ErrMove, err))
		return
	}

	a.Status = photo.StatusDone
	e.logger.Info("organized", "kind", a.Kind, "source", a.Source, "destination", a.Destination)
}
