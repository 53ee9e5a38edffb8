// Package provider bridges callback-style payment provider SDKs into plain
// blocking calls.
package provider

import (
	"context"
	"sync/atomic"
)

type outcome[T any] struct {
	value T
	err   error
}

// Latch is a one-shot result slot. The first Settle wins; later calls are
// dropped and counted.
type Latch[T any] struct {
	settled atomic.Bool
	dropped atomic.Int64
	ch      chan outcome[T]
}

// NewLatch returns an unsettled latch.
func NewLatch[T any]() *Latch[T] {
	return &Latch[T]{ch: make(chan outcome[T], 1)}
}

// Settle records the outcome. It reports false if the latch was already settled.
func (l *Latch[T]) Settle(value T, err error) bool {
	if !l.settled.CompareAndSwap(false, true) {
		l.dropped.Add(1)
		return false
	}
	l.ch <- outcome[T]{value: value, err: err}
	return true
}

// Wait blocks until the latch is settled or ctx is done.
func (l *Latch[T]) Wait(ctx context.Context) (T, error) {
	select {
	case o := <-l.ch:
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Dropped returns how many Settle calls arrived after the first.
func (l *Latch[T]) Dropped() int64 {
	return l.dropped.Load()
}

// Await starts a callback-style operation and waits for its single completion.
// If ctx ends first the zero value and ctx.Err() are returned and a late
// callback is discarded.
func Await[T any](ctx context.Context, start func(done func(T, error))) (T, error) {
	latch := NewLatch[T]()
	start(func(value T, err error) {
		latch.Settle(value, err)
	})
	return latch.Wait(ctx)
}
