// Package engine implements the transition engine: the sole mutator of
// request workflow state. It validates actor actions against the workflow
// definition, applies them under optimistic concurrency, appends the audit
// trail, and emits status-change events.
package engine

import (
	"context"

	"github.com/srmops/approval-flow/internal/domain/entity"
)

// SubmitInput carries the attributes of a new request
type SubmitInput struct {
	RequesterID string
	Title       string
	Description string
	College     string
	Department  string
}

// TransitionEngine routes requests through the approval pipeline. Every
// operation is atomic with respect to a single request and either completes
// or fails synchronously with a typed error.
type TransitionEngine interface {
	// Submit creates a request at the initial stage with an allocated
	// 6-digit request id and an implicit submit history entry
	Submit(ctx context.Context, input SubmitInput) (*entity.Request, error)

	// Approve records the actor's approval. At a parallel stage the request
	// advances only once every required role has approved.
	Approve(ctx context.Context, requestID, actorID, notes string) (*entity.Request, error)

	// Reject moves the request to the rejected terminal stage, discarding
	// any pending parallel approvals
	Reject(ctx context.Context, requestID, actorID, reason string) (*entity.Request, error)

	// RequestClarification freezes the request until the requester responds
	RequestClarification(ctx context.Context, requestID, actorID, message string) (*entity.Request, error)

	// RespondClarification clears an outstanding clarification; only the
	// original requester may respond
	RespondClarification(ctx context.Context, requestID, actorID, response string) (*entity.Request, error)

	// Get returns the request and its full audit trail
	Get(ctx context.Context, requestID string) (*entity.Request, []*entity.HistoryEntry, error)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
