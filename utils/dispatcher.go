package utils

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"
)

// Dispatcher runs fire-and-forget tasks in their own goroutines. Failures and
// panics are reported to OnError and never reach the caller.
type Dispatcher struct {
	Timeout time.Duration
	OnError func(task string, err error)

	wg sync.WaitGroup
}

func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{Timeout: timeout}
}

func (d *Dispatcher) Go(task string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
		defer cancel()
		if err := d.run(ctx, fn); err != nil {
			d.report(task, err)
		}
	}()
}

func (d *Dispatcher) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
	}()
	return fn(ctx)
}

func (d *Dispatcher) report(task string, err error) {
	if d.OnError != nil {
		d.OnError(task, err)
		return
	}
	log.Printf("[task] %s failed: %v", task, err)
}

// Wait blocks until every dispatched task returns or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
