package provider

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Exclusive grants one generation session at a time access to a shared
// Backend. A session holds the lease for all of its chunk calls, so two
// interleaved sessions can never mix prompts on a stateful local server.
type Exclusive struct {
	backend Backend
	sem     *semaphore.Weighted
}

func NewExclusive(b Backend) *Exclusive {
	return &Exclusive{backend: b, sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the backend is free or ctx ends. The returned release
// func must be called exactly once.
func (e *Exclusive) Acquire(ctx context.Context) (Backend, func(), error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}
	return e.backend, func() { e.sem.Release(1) }, nil
}

// TryAcquire is the non-blocking form of Acquire.
func (e *Exclusive) TryAcquire() (Backend, func(), bool) {
	if !e.sem.TryAcquire(1) {
		return nil, nil, false
	}
	return e.backend, func() { e.sem.Release(1) }, true
}

// Backend returns the wrapped backend without taking the lease, for
// metadata such as Name.
func (e *Exclusive) Backend() Backend { return e.backend }
