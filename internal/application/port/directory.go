package port

import (
	"context"

	"github.com/srmops/approval-flow/internal/domain/entity"
	"github.com/srmops/approval-flow/internal/domain/workflow"
)

// ActorDirectory resolves actor identities to roles and finds the active
// actors carrying a role. Returns workflow.ErrNotFound for unknown actors.
type ActorDirectory interface {
	Get(ctx context.Context, actorID string) (*entity.Actor, error)
	RoleOf(ctx context.Context, actorID string) (workflow.Role, error)
	ActiveActorsWithRole(ctx context.Context, role workflow.Role) ([]*entity.Actor, error)
}
