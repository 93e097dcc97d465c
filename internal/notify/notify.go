// Package notify fans values out to in-process subscribers.
package notify

import (
	"context"
	"sync"

	"github.com/aretw0/lifecycle"
)

// Latest delivers values to subscribers. A slow subscriber skips
// intermediate values and receives the most recent one.
type Latest[T any] struct {
	mu   sync.Mutex
	subs map[chan T]struct{}
}

// Subscribe returns a channel closed once ctx is done.
func (l *Latest[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)
	l.mu.Lock()
	if l.subs == nil {
		l.subs = make(map[chan T]struct{})
	}
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	context.AfterFunc(ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, ok := l.subs[ch]; ok {
			delete(l.subs, ch)
			close(ch)
		}
	})
	return ch
}

// Publish hands v to every subscriber without blocking.
func (l *Latest[T]) Publish(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Every delivers each published value to every subscriber in publish order.
// Values wait in a per-subscriber backlog until read, so transitions are
// never merged.
type Every[T any] struct {
	mu   sync.Mutex
	subs map[*backlog[T]]struct{}
}

type backlog[T any] struct {
	mu      sync.Mutex
	pending []T
	wake    chan struct{}
}

func (b *backlog[T]) next() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var zero T
	if len(b.pending) == 0 {
		return zero, false
	}
	v := b.pending[0]
	b.pending[0] = zero
	b.pending = b.pending[1:]
	return v, true
}

// Subscribe returns a channel closed once ctx is done.
func (e *Every[T]) Subscribe(ctx context.Context) <-chan T {
	b := &backlog[T]{wake: make(chan struct{}, 1)}
	e.mu.Lock()
	if e.subs == nil {
		e.subs = make(map[*backlog[T]]struct{})
	}
	e.subs[b] = struct{}{}
	e.mu.Unlock()

	out := make(chan T)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(out)
		defer func() {
			e.mu.Lock()
			delete(e.subs, b)
			e.mu.Unlock()
		}()
		for {
			v, ok := b.next()
			if !ok {
				select {
				case <-ctx.Done():
					return nil
				case <-b.wake:
					continue
				}
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return nil
			}
		}
	})
	return out
}

// Publish appends v to every subscriber's backlog without blocking.
func (e *Every[T]) Publish(v T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for b := range e.subs {
		b.mu.Lock()
		b.pending = append(b.pending, v)
		b.mu.Unlock()
		select {
		case b.wake <- struct{}{}:
		default:
		}
	}
}
