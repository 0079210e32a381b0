package entity

import (
	"time"

	"github.com/srmops/approval-flow/internal/domain/workflow"
)

// Request is an expense/approval request routed through the workflow.
// It is mutated exclusively by the transition engine; Version backs the
// optimistic concurrency control on every write.
type Request struct {
	// ID is the immutable internal identity
	ID string `json:"id"`

	// RequestID is the human-facing 6-digit identifier, assigned exactly
	// once before the request becomes externally visible. Empty only for
	// legacy rows awaiting backfill.
	RequestID string `json:"request_id"`

	Title       string `json:"title"`
	Description string `json:"description"`
	College     string `json:"college"`
	Department  string `json:"department"`

	RequesterID string `json:"requester_id"`

	Stage   workflow.Stage `json:"stage"`
	Version int64          `json:"version"`

	// ParallelApprovals records which roles have approved during the
	// current parallel stage. Empty unless Stage is parallel_verification.
	ParallelApprovals workflow.RoleSet `json:"parallel_approvals"`

	// PendingQuery is true while a clarification is outstanding; QueryLevel
	// then names the role owed a response.
	PendingQuery bool          `json:"pending_query"`
	QueryLevel   workflow.Role `json:"query_level,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Attributes projects the metadata institutional routing rules branch on
func (r *Request) Attributes() workflow.Attributes {
	return workflow.Attributes{
		College:    r.College,
		Department: r.Department,
	}
}

// Clone returns an independent copy of the request, including its
// parallel-approval set.
func (r *Request) Clone() *Request {
	c := *r
	if r.ParallelApprovals != nil {
		c.ParallelApprovals = r.ParallelApprovals.Clone()
	}
	return &c
}
