package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/srmops/approval-flow/internal/application/port"
	"github.com/srmops/approval-flow/internal/domain/entity"
	"github.com/srmops/approval-flow/internal/domain/workflow"
)

// RequestRepository implements port.RequestRepository on SQLite.
//
// The requests.request_id column carries a UNIQUE index; that index is the
// authoritative reservation for 6-digit ids. Version conflicts surface as
// workflow.ErrConcurrentModification from the conditional Update.
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

const requestColumns = `
	id, request_id, title, description, college, department,
	requester_id, stage, version, parallel_approvals,
	pending_query, query_level, created_at, updated_at
`

// Create inserts a new request. A duplicate 6-digit id violates the UNIQUE
// index and is reported as workflow.ErrDuplicateRequestID so the caller can
// re-draw.
func (r *RequestRepository) Create(ctx context.Context, request *entity.Request) error {
	query := `
		INSERT INTO requests (
			id, request_id, title, description, college, department,
			requester_id, stage, version, parallel_approvals,
			pending_query, query_level, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		request.ID,
		nullIfEmpty(request.RequestID),
		request.Title,
		request.Description,
		request.College,
		request.Department,
		request.RequesterID,
		request.Stage.String(),
		request.Version,
		request.ParallelApprovals.Encode(),
		request.PendingQuery,
		request.QueryLevel.String(),
		request.CreatedAt,
		request.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: request id %s", workflow.ErrDuplicateRequestID, request.RequestID)
		}
		r.logger.Error("Failed to create request", zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	return nil
}

// GetByRequestID retrieves a request by its 6-digit public id
func (r *RequestRepository) GetByRequestID(ctx context.Context, requestID string) (*entity.Request, error) {
	query := `SELECT` + requestColumns + `FROM requests WHERE request_id = ?`

	request, err := r.scanRequest(getExecutor(ctx, r.db).QueryRowContext(ctx, query, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: request %s", workflow.ErrNotFound, requestID)
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	return request, nil
}

// RequestIDExists reports whether a 6-digit id is already taken. This is an
// advisory check; the UNIQUE index remains the authority.
func (r *RequestRepository) RequestIDExists(ctx context.Context, requestID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM requests WHERE request_id = ?)`

	var exists bool
	if err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, requestID).Scan(&exists); err != nil {
		r.logger.Error("Failed to check request id", zap.String("request_id", requestID), zap.Error(err))
		return false, fmt.Errorf("failed to check request id: %w", err)
	}

	return exists, nil
}

// Update writes the request back only if the stored version still equals
// expectedVersion, incrementing it in the same statement. A lost race
// surfaces as workflow.ErrConcurrentModification.
func (r *RequestRepository) Update(ctx context.Context, request *entity.Request, expectedVersion int64) error {
	query := `
		UPDATE requests SET
			title = ?, description = ?, college = ?, department = ?,
			stage = ?, parallel_approvals = ?,
			pending_query = ?, query_level = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		request.Title,
		request.Description,
		request.College,
		request.Department,
		request.Stage.String(),
		request.ParallelApprovals.Encode(),
		request.PendingQuery,
		request.QueryLevel.String(),
		request.UpdatedAt,
		request.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update request", zap.String("id", request.ID), zap.Error(err))
		return fmt.Errorf("failed to update request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: request %s at version %d", workflow.ErrConcurrentModification, request.ID, expectedVersion)
	}

	request.Version = expectedVersion + 1
	return nil
}

// List retrieves requests matching the filter, newest first
func (r *RequestRepository) List(ctx context.Context, filter port.ListFilter) ([]*entity.Request, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Stage != "" {
		conditions = append(conditions, "stage = ?")
		args = append(args, filter.Stage.String())
	}
	if filter.College != "" {
		conditions = append(conditions, "college = ?")
		args = append(args, filter.College)
	}
	if filter.Department != "" {
		conditions = append(conditions, "department = ?")
		args = append(args, filter.Department)
	}
	if filter.RequesterID != "" {
		conditions = append(conditions, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.Text != "" {
		conditions = append(conditions, "(title LIKE ? OR description LIKE ? OR request_id LIKE ?)")
		pattern := "%" + filter.Text + "%"
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT` + requestColumns + `FROM requests`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	return r.collectRequests(rows)
}

// ListMissingRequestID returns legacy rows that predate id assignment
func (r *RequestRepository) ListMissingRequestID(ctx context.Context) ([]*entity.Request, error) {
	query := `SELECT` + requestColumns + `FROM requests WHERE request_id IS NULL OR request_id = '' ORDER BY created_at`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list requests missing id", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests missing id: %w", err)
	}
	defer rows.Close()

	return r.collectRequests(rows)
}

// AssignRequestID backfills a 6-digit id onto a legacy row. The UNIQUE index
// still arbitrates collisions, reported as workflow.ErrDuplicateRequestID.
func (r *RequestRepository) AssignRequestID(ctx context.Context, id string, requestID string) error {
	query := `
		UPDATE requests SET request_id = ?, updated_at = ?
		WHERE id = ? AND (request_id IS NULL OR request_id = '')
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, requestID, time.Now().UTC(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: request id %s", workflow.ErrDuplicateRequestID, requestID)
		}
		r.logger.Error("Failed to assign request id", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to assign request id: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: request %s has no missing id", workflow.ErrNotFound, id)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *RequestRepository) scanRequest(row rowScanner) (*entity.Request, error) {
	var (
		request           entity.Request
		requestID         sql.NullString
		stage             string
		parallelApprovals string
		queryLevel        string
	)

	err := row.Scan(
		&request.ID,
		&requestID,
		&request.Title,
		&request.Description,
		&request.College,
		&request.Department,
		&request.RequesterID,
		&stage,
		&request.Version,
		&parallelApprovals,
		&request.PendingQuery,
		&queryLevel,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	request.RequestID = requestID.String
	request.Stage = workflow.Stage(stage)
	request.QueryLevel = workflow.Role(queryLevel)

	request.ParallelApprovals = workflow.ParseRoleSet(parallelApprovals)

	return &request, nil
}

func (r *RequestRepository) collectRequests(rows *sql.Rows) ([]*entity.Request, error) {
	var requests []*entity.Request
	for rows.Next() {
		request, err := r.scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

// nullIfEmpty keeps unassigned ids as NULL so the UNIQUE index ignores them
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation recognizes SQLite unique constraint failures
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Verify interface compliance
var _ port.RequestRepository = (*RequestRepository)(nil)
