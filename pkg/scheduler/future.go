package scheduler

import "context"

// Future is the pending result of submitted work.
type Future[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	value  T
	err    error
}

func submit[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	ctx, cancel := context.WithCancel(ctx)
	f := &Future[T]{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(f.done)
		defer cancel()
		f.value, f.err = fn(ctx)
	}()
	return f
}

// Wait blocks until the work finishes and returns its result. Results
// gathered before a cancellation are returned along with the context error.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.value, f.err
}

// Done is closed when the work finishes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Cancel stops dispatch of work not yet started and cancels in-flight steps.
// Committed steps are kept. Safe to call more than once.
func (f *Future[T]) Cancel() {
	f.cancel()
}
