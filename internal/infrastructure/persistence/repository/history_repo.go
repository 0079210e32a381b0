package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/srmops/approval-flow/internal/application/port"
	"github.com/srmops/approval-flow/internal/domain/entity"
	"github.com/srmops/approval-flow/internal/domain/workflow"
)

// HistoryRepository implements port.HistoryRepository on SQLite.
// The history_entries table is insert-only.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append records one audit entry
func (r *HistoryRepository) Append(ctx context.Context, entry *entity.HistoryEntry) error {
	query := `
		INSERT INTO history_entries (
			request_id, actor_id, actor_role, action, notes, timestamp
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		entry.RequestID,
		entry.ActorID,
		entry.ActorRole.String(),
		entry.Action.String(),
		entry.Notes,
		entry.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append history entry", zap.String("request_id", entry.RequestID), zap.Error(err))
		return fmt.Errorf("failed to append history entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// ListByRequestID returns the audit trail in insertion order
func (r *HistoryRepository) ListByRequestID(ctx context.Context, requestID string) ([]*entity.HistoryEntry, error) {
	query := `
		SELECT id, request_id, actor_id, actor_role, action, notes, timestamp
		FROM history_entries
		WHERE request_id = ?
		ORDER BY id
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*entity.HistoryEntry
	for rows.Next() {
		var (
			entry entity.HistoryEntry
			role  string
			act   string
		)
		err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.ActorID,
			&role,
			&act,
			&entry.Notes,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.ActorRole = workflow.Role(role)
		entry.Action = workflow.Action(act)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
