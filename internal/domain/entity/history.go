package entity

import (
	"time"

	"github.com/srmops/approval-flow/internal/domain/workflow"
)

// HistoryEntry is one immutable audit record of an accepted action.
// Entries are append-only: never mutated or reordered after insert.
type HistoryEntry struct {
	ID        int64           `json:"id"`
	RequestID string          `json:"request_id"`
	ActorID   string          `json:"actor_id"`
	ActorRole workflow.Role   `json:"actor_role"`
	Action    workflow.Action `json:"action"`
	Notes     string          `json:"notes,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
