// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

// Package latest provides latest-wins asynchronous operations and
// clock-driven debouncing for single-owner state.
//
// Both types cooperate with an owner lock (any sync.Locker). Methods must be
// called with that lock held, and completions and timer callbacks acquire it
// before touching owner state. An owner that guards all of its state with one
// mutex therefore sees every mutation serialized, in the order completions
// are accepted, and never observes a result whose request was superseded.
//
//	op := latest.NewOperation[geo.Place]("forward-geocode", &s.mu)
//	s.mu.Lock()
//	op.Start(ctx, lookup, func(p geo.Place, err error) { s.apply(p, err) })
//	s.mu.Unlock()
package latest

import (
	"context"
	"sync"
)

// Token identifies one issued request of an Operation or Fence.
type Token uint64

// Fence is a generation counter. Issue a token per request and accept a
// result only while Current reports true for it. Not safe for concurrent
// use on its own; guard it with the owner lock.
type Fence struct {
	gen uint64
}

// Issue starts a new generation and returns its token. Every earlier token
// becomes stale.
func (f *Fence) Issue() Token {
	f.gen++
	return Token(f.gen)
}

// Current reports whether t is the most recently issued token.
func (f *Fence) Current(t Token) bool {
	return t != 0 && uint64(t) == f.gen
}

// Invalidate makes every issued token stale without issuing a new one.
func (f *Fence) Invalidate() {
	f.gen++
}

// Option configures an Operation.
type Option func(*options)

type options struct {
	onDiscard func(name string)
}

// WithDiscardHook registers fn to run (with the owner lock held) whenever a
// completion is dropped as stale. Used for metrics.
func WithDiscardHook(fn func(name string)) Option {
	return func(o *options) { o.onDiscard = fn }
}

// Operation runs requests in goroutines and commits only the result of the
// latest one. Results of superseded or invalidated requests are discarded,
// whatever order they arrive in.
type Operation[T any] struct {
	name   string
	locker sync.Locker
	fence  Fence
	closed bool
	opts   options
	wg     sync.WaitGroup
}

// NewOperation creates an operation whose commits run under locker.
func NewOperation[T any](name string, locker sync.Locker, opts ...Option) *Operation[T] {
	op := &Operation[T]{name: name, locker: locker}
	for _, o := range opts {
		o(&op.opts)
	}
	return op
}

// Name returns the operation name.
func (o *Operation[T]) Name() string { return o.name }

// Start issues a new request, superseding any in flight, and runs fn in a
// new goroutine. When fn returns, commit is called with the owner lock held
// if and only if the request is still current and the operation is open.
// Must be called with the owner lock held. After Close, Start is a no-op
// that returns a stale token.
func (o *Operation[T]) Start(ctx context.Context, fn func(context.Context) (T, error), commit func(T, error)) Token {
	tok := o.fence.Issue()
	if o.closed {
		return 0
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		v, err := fn(ctx)

		o.locker.Lock()
		defer o.locker.Unlock()
		if o.closed || !o.fence.Current(tok) {
			if o.opts.onDiscard != nil {
				o.opts.onDiscard(o.name)
			}
			return
		}
		commit(v, err)
	}()
	return tok
}

// Current reports whether t is the latest request. Owner lock held.
func (o *Operation[T]) Current(t Token) bool {
	return !o.closed && o.fence.Current(t)
}

// Invalidate discards every in-flight request. Owner lock held.
func (o *Operation[T]) Invalidate() {
	o.fence.Invalidate()
}

// Close invalidates in-flight requests and refuses new ones. Owner lock held.
func (o *Operation[T]) Close() {
	o.closed = true
	o.fence.Invalidate()
}

// Wait blocks until every started goroutine has returned. Must be called
// without the owner lock, otherwise completions waiting for it deadlock.
func (o *Operation[T]) Wait() {
	o.wg.Wait()
}
