package pipeline

import (
	"context"
	"sync"
)

// forEach calls fn(i) for every i in [0, n) on at most workers goroutines.
// Once ctx is done no new index is handed out; calls already running finish.
// It returns how many indexes were handed out.
func forEach(ctx context.Context, n, workers int, fn func(i int)) int {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}

	started := 0
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- i:
			started++
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
	return started
}
