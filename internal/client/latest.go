package client

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrSuperseded is returned by Latest.Fetch when a newer fetch started
// before this one finished. Its result has been discarded.
var ErrSuperseded = errors.New("superseded by a newer request")

// Latest keeps the result of the most recently started fetch. Results of
// fetches that were overtaken are dropped, so a slow old response never
// replaces a newer one.
type Latest[T any] struct {
	mu    sync.Mutex
	seq   uint64
	value T
	ok    bool
}

// Fetch runs fn and stores its result if no other fetch started meanwhile.
func (l *Latest[T]) Fetch(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.mu.Unlock()

	v, err := fn(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.seq {
		var zero T
		return zero, ErrSuperseded
	}
	if err != nil {
		var zero T
		return zero, err
	}
	l.value, l.ok = v, true
	return v, nil
}

// Value returns the last accepted result.
func (l *Latest[T]) Value() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.ok
}
