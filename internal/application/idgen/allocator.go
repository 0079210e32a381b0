// Package idgen allocates the human-facing 6-digit request identifiers.
package idgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/srmops/approval-flow/internal/domain/workflow"
)

const (
	idMin = 100000
	idMax = 999999

	// DefaultMaxAttempts bounds collision retries per allocation
	DefaultMaxAttempts = 100
)

// Prober answers whether a candidate request id is already persisted
type Prober interface {
	RequestIDExists(ctx context.Context, requestID string) (bool, error)
}

// Allocator draws candidates uniformly from the 6-digit space and probes the
// store for collisions. The probe is advisory: the authoritative
// check-and-reserve is the store's unique constraint on insert, so callers
// that lose an insert race re-allocate with a fresh candidate.
type Allocator struct {
	store       Prober
	maxAttempts int
}

// Option configures the allocator
type Option func(*Allocator)

// WithMaxAttempts overrides the collision retry budget
func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		a.maxAttempts = n
	}
}

// NewAllocator creates an allocator backed by the given store
func NewAllocator(store Prober, opts ...Option) *Allocator {
	a := &Allocator{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Allocate returns a 6-digit request id not currently persisted, or
// workflow.ErrIdExhaustion after the attempt budget is spent.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		candidate, err := randomID()
		if err != nil {
			return "", fmt.Errorf("draw candidate: %w", err)
		}

		exists, err := a.store.RequestIDExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("probe candidate: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}

	return "", workflow.ErrIdExhaustion
}

// randomID draws uniformly from [100000, 999999]
func randomID() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(idMax-idMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", idMin+n.Int64()), nil
}
