package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/srmops/approval-flow/internal/application/port"
	"github.com/srmops/approval-flow/internal/domain/entity"
	"github.com/srmops/approval-flow/internal/domain/workflow"
)

// ActorRepository implements port.ActorDirectory on SQLite
type ActorRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewActorRepository creates a new actor directory backed by the actors table
func NewActorRepository(db *sql.DB, logger *zap.Logger) port.ActorDirectory {
	return &ActorRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves an actor by id
func (r *ActorRepository) Get(ctx context.Context, actorID string) (*entity.Actor, error) {
	query := `
		SELECT id, name, email, role, active, created_at
		FROM actors
		WHERE id = ?
	`

	var (
		actor entity.Actor
		role  string
	)
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, actorID).Scan(
		&actor.ID,
		&actor.Name,
		&actor.Email,
		&role,
		&actor.Active,
		&actor.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: actor %s", workflow.ErrNotFound, actorID)
	}
	if err != nil {
		r.logger.Error("Failed to get actor", zap.String("actor_id", actorID), zap.Error(err))
		return nil, fmt.Errorf("failed to get actor: %w", err)
	}

	actor.Role = workflow.Role(role)
	return &actor, nil
}

// RoleOf resolves an actor id to its role
func (r *ActorRepository) RoleOf(ctx context.Context, actorID string) (workflow.Role, error) {
	actor, err := r.Get(ctx, actorID)
	if err != nil {
		return "", err
	}
	return actor.Role, nil
}

// ActiveActorsWithRole returns every active actor carrying the role
func (r *ActorRepository) ActiveActorsWithRole(ctx context.Context, role workflow.Role) ([]*entity.Actor, error) {
	query := `
		SELECT id, name, email, role, active, created_at
		FROM actors
		WHERE role = ? AND active = 1
		ORDER BY id
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, role.String())
	if err != nil {
		r.logger.Error("Failed to list actors by role", zap.String("role", role.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list actors by role: %w", err)
	}
	defer rows.Close()

	var actors []*entity.Actor
	for rows.Next() {
		var (
			actor   entity.Actor
			roleCol string
		)
		err := rows.Scan(
			&actor.ID,
			&actor.Name,
			&actor.Email,
			&roleCol,
			&actor.Active,
			&actor.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan actor: %w", err)
		}
		actor.Role = workflow.Role(roleCol)
		actors = append(actors, &actor)
	}

	return actors, rows.Err()
}

// Verify interface compliance
var _ port.ActorDirectory = (*ActorRepository)(nil)
