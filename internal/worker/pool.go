package worker

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

// Task is a unit of work producing a value
type Task[T any] func(ctx context.Context) (T, error)

// Result holds a task's outcome and its submission index
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

type indexedTask[T any] struct {
	index int
	task  Task[T]
}

// Pool runs tasks on a fixed number of goroutines
type Pool[T any] struct {
	workers    int
	jobQueue   chan indexedTask[T]
	results    chan Result[T]
	submitted  atomic.Int64
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a pool bound to ctx. workers <= 0 means one worker.
func NewPool[T any](ctx context.Context, workers int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool[T]{
		workers:    workers,
		jobQueue:   make(chan indexedTask[T], workers*2),
		results:    make(chan Result[T], workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers
func (p *Pool[T]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool[T]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			value, err := job.task(p.ctx)
			select {
			case p.results <- Result[T]{Index: job.index, Value: value, Err: err}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a task and returns its index, or -1 once the pool is shut down.
// Submit must not be called after Wait.
func (p *Pool[T]) Submit(task Task[T]) int {
	index := int(p.submitted.Add(1) - 1)
	select {
	case <-p.ctx.Done():
		return -1
	case p.jobQueue <- indexedTask[T]{index: index, task: task}:
		return index
	}
}

// Wait closes the queue, waits for the workers and returns results in submission order
func (p *Pool[T]) Wait() []Result[T] {
	close(p.jobQueue)

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []Result[T]
	for result := range p.results {
		results = append(results, result)
	}
	p.cancelFunc()

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

// Shutdown cancels in-flight tasks and stops the workers
func (p *Pool[T]) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool[T]) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
