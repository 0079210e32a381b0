package port

import (
	"context"

	"github.com/srmops/approval-flow/internal/domain/entity"
	"github.com/srmops/approval-flow/internal/domain/workflow"
)

// ListFilter narrows request listings. Zero values mean "no constraint".
type ListFilter struct {
	Stage       workflow.Stage
	College     string
	Department  string
	RequesterID string

	// Text matches against title, description, and request id
	Text string

	Limit  int
	Offset int
}

// RequestRepository defines persistence operations for Request.
//
// Create and Update are the only writers of workflow state. Update is a
// conditional write: it succeeds only if the stored version still equals
// expectedVersion, then increments it, returning
// workflow.ErrConcurrentModification otherwise. Create relies on the store's
// uniqueness guarantee for request ids and returns
// workflow.ErrDuplicateRequestID when a candidate is already reserved.
type RequestRepository interface {
	Create(ctx context.Context, request *entity.Request) error
	GetByRequestID(ctx context.Context, requestID string) (*entity.Request, error)
	RequestIDExists(ctx context.Context, requestID string) (bool, error)
	Update(ctx context.Context, request *entity.Request, expectedVersion int64) error
	List(ctx context.Context, filter ListFilter) ([]*entity.Request, error)

	// ListMissingRequestID and AssignRequestID support the legacy id
	// backfill; AssignRequestID carries the same uniqueness guarantee as
	// Create.
	ListMissingRequestID(ctx context.Context) ([]*entity.Request, error)
	AssignRequestID(ctx context.Context, id string, requestID string) error
}

// HistoryRepository defines persistence operations for the audit trail.
// Entries are insert-only; there is no update or delete.
type HistoryRepository interface {
	Append(ctx context.Context, entry *entity.HistoryEntry) error
	ListByRequestID(ctx context.Context, requestID string) ([]*entity.HistoryEntry, error)
}

// NotificationRepository defines persistence operations for in-app
// notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.Notification, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, userID string) error
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errorMsg string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
