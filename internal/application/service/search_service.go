package service

import (
	"context"
	"fmt"

	"github.com/srmops/approval-flow/internal/application/port"
	"github.com/srmops/approval-flow/internal/domain/entity"
	"github.com/srmops/approval-flow/internal/domain/workflow"
)

const defaultSearchLimit = 50

// SearchService provides read-side request listings for dashboards and the
// search endpoint. It never mutates workflow state.
type SearchService interface {
	Search(ctx context.Context, filter port.ListFilter) ([]*entity.Request, error)

	// PendingForRole lists non-terminal requests the given role may act on
	PendingForRole(ctx context.Context, role workflow.Role) ([]*entity.Request, error)
}

type searchServiceImpl struct {
	definition *workflow.Definition
	requests   port.RequestRepository
	logger     Logger
}

// NewSearchService creates a search service
func NewSearchService(definition *workflow.Definition, requests port.RequestRepository, logger Logger) SearchService {
	return &searchServiceImpl{
		definition: definition,
		requests:   requests,
		logger:     logger,
	}
}

// Search lists requests matching the filter
func (s *searchServiceImpl) Search(ctx context.Context, filter port.ListFilter) ([]*entity.Request, error) {
	if filter.Stage != "" && !filter.Stage.IsValid() {
		return nil, fmt.Errorf("%w: unknown stage %q", workflow.ErrValidation, filter.Stage)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultSearchLimit
	}

	return s.requests.List(ctx, filter)
}

// PendingForRole scans non-terminal requests and keeps those whose stage
// rule authorizes the role for the request's attributes.
func (s *searchServiceImpl) PendingForRole(ctx context.Context, role workflow.Role) ([]*entity.Request, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", workflow.ErrValidation, role)
	}

	all, err := s.requests.List(ctx, port.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	var pending []*entity.Request
	for _, req := range all {
		if req.Stage.IsTerminal() {
			continue
		}
		roles, err := s.definition.RolesFor(req.Stage, req.Attributes())
		if err != nil {
			continue
		}
		if roles.Has(role) {
			pending = append(pending, req)
		}
	}

	return pending, nil
}
