package utils

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Job pairs an input with its position in the batch so results can be
// put back in order.
type Job[T any] struct {
	Index int
	Item  T
}

type Result[R any] struct {
	Index int
	Value R
}

// WorkerPool runs a fixed number of goroutines over a job queue.
type WorkerPool[T, R any] struct {
	NumWorkers int
	JobQueue   chan Job[T]
	Results    chan Result[R]
	wg         sync.WaitGroup
	started    bool
	mu         sync.Mutex
}

func NewWorkerPool[T, R any](numWorkers int, jobBufferSize int, resultBufferSize int) *WorkerPool[T, R] {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	return &WorkerPool[T, R]{
		NumWorkers: numWorkers,
		JobQueue:   make(chan Job[T], jobBufferSize),
		Results:    make(chan Result[R], resultBufferSize),
	}
}

// StartWorkers starts the workers once; later calls are ignored.
func (wp *WorkerPool[T, R]) StartWorkers(ctx context.Context, workFunc func(context.Context, T) R) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return
	}

	wp.started = true
	wp.wg.Add(wp.NumWorkers)

	for i := 0; i < wp.NumWorkers; i++ {
		go wp.worker(ctx, workFunc)
	}
}

func (wp *WorkerPool[T, R]) worker(ctx context.Context, workFunc func(context.Context, T) R) {
	defer wp.wg.Done()

	for job := range wp.JobQueue {
		// Always send a result, even for skipped jobs, so the collector
		// can count on one result per job.
		var value R
		if ctx.Err() == nil {
			value = workFunc(ctx, job.Item)
		}
		wp.Results <- Result[R]{Index: job.Index, Value: value}
	}
}

func (wp *WorkerPool[T, R]) SubmitJob(job Job[T]) {
	wp.JobQueue <- job
}

// Wait blocks until every worker has drained the closed job queue.
func (wp *WorkerPool[T, R]) Wait() {
	wp.wg.Wait()
}

// ProgressTracker logs the progress of a batch.
type ProgressTracker struct {
	Total     int64
	Processed int64
	StartTime time.Time
	Name      string
	log       zerolog.Logger
}

func NewProgressTracker(total int64, name string, log zerolog.Logger) *ProgressTracker {
	return &ProgressTracker{
		Total:     total,
		StartTime: time.Now(),
		Name:      name,
		log:       log,
	}
}

// Increment counts one processed item, logging every 100 items and at
// completion.
func (pt *ProgressTracker) Increment() {
	processed := atomic.AddInt64(&pt.Processed, 1)

	if processed%100 == 0 || processed == pt.Total {
		elapsed := time.Since(pt.StartTime)
		pt.log.Debug().
			Str("batch", pt.Name).
			Int64("processed", processed).
			Int64("total", pt.Total).
			Float64("percent", float64(processed)/float64(pt.Total)*100).
			Float64("rate", float64(processed)/elapsed.Seconds()).
			Msg("Batch progress")
	}
}

func (pt *ProgressTracker) GetProgress() (int64, int64, float64) {
	processed := atomic.LoadInt64(&pt.Processed)
	percentage := float64(processed) / float64(pt.Total) * 100
	return processed, pt.Total, percentage
}

// ParallelProcessor fans a batch out over a worker pool.
type ParallelProcessor struct {
	NumWorkers int
	log        zerolog.Logger
}

func NewParallelProcessor(numWorkers int, log zerolog.Logger) *ParallelProcessor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	return &ParallelProcessor{
		NumWorkers: numWorkers,
		log:        log,
	}
}

// ProcessBatch runs workFunc over items in parallel and returns the results
// in input order. Once ctx is done the remaining items are not started and
// their results are zero values; the context error is returned.
func ProcessBatch[T, R any](ctx context.Context, pp *ParallelProcessor, items []T, workFunc func(context.Context, T) R, progressName string) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	tracker := NewProgressTracker(int64(len(items)), progressName, pp.log)
	wp := NewWorkerPool[T, R](pp.NumWorkers, len(items), len(items))

	wp.StartWorkers(ctx, func(ctx context.Context, item T) R {
		result := workFunc(ctx, item)
		tracker.Increment()
		return result
	})

	for i, item := range items {
		wp.SubmitJob(Job[T]{Index: i, Item: item})
	}
	close(wp.JobQueue)

	for i := 0; i < len(items); i++ {
		r := <-wp.Results
		results[r.Index] = r.Value
	}

	wp.Wait()
	close(wp.Results)

	pp.log.Debug().Str("batch", progressName).Int("items", len(items)).Msg("Batch complete")
	return results, ctx.Err()
}
