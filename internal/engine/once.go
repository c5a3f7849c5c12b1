package engine

import (
	"context"
	"fmt"
	"sync"
)

type onceState int

const (
	onceIdle onceState = iota
	onceRunning
	onceDone
)

// Once runs a one-time initialization shared by every caller.
//
// Overlapping Do calls collapse onto the single in-flight attempt and all of
// them observe the same result. The result, including a failure, is memoized:
// a failed initialization is not retried. A panic in the initialization is
// recovered and memoized as an error.
type Once struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state onceState
	err   error
	fn    func(ctx context.Context) error
}

// NewOnce creates a Once around fn. A nil fn always succeeds.
func NewOnce(fn func(ctx context.Context) error) *Once {
	o := &Once{fn: fn}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Do runs the initialization if nobody has yet, otherwise waits for the
// in-flight attempt, and returns its result.
func (o *Once) Do(ctx context.Context) error {
	o.mu.Lock()
	for o.state == onceRunning {
		o.cond.Wait()
	}
	if o.state == onceDone {
		err := o.err
		o.mu.Unlock()
		return err
	}
	o.state = onceRunning
	o.mu.Unlock()

	return o.run(ctx)
}

func (o *Once) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("initialization panicked: %v", r)
		}
		o.mu.Lock()
		o.err = err
		o.state = onceDone
		o.cond.Broadcast()
		o.mu.Unlock()
	}()

	if o.fn != nil {
		err = o.fn(ctx)
	}
	return err
}

// Done reports whether initialization has completed (successfully or not)
func (o *Once) Done() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == onceDone
}
