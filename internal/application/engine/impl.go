package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/srmops/approval-flow/internal/application/dispatcher"
	"github.com/srmops/approval-flow/internal/application/idgen"
	"github.com/srmops/approval-flow/internal/application/port"
	"github.com/srmops/approval-flow/internal/domain/entity"
	"github.com/srmops/approval-flow/internal/domain/event"
	"github.com/srmops/approval-flow/internal/domain/workflow"
)

// defaultConflictRetries bounds how often a lost optimistic-lock race is
// re-read and reapplied before the conflict surfaces to the caller
const defaultConflictRetries = 3

// engineImpl is the concrete implementation of TransitionEngine
type engineImpl struct {
	definition *workflow.Definition
	requests   port.RequestRepository
	history    port.HistoryRepository
	directory  port.ActorDirectory
	txManager  port.TransactionManager
	allocator  *idgen.Allocator
	dispatcher dispatcher.Dispatcher
	logger     Logger

	conflictRetries int
}

// Option configures the engine
type Option func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting status changes
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) Option {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithConflictRetries overrides the optimistic-lock retry budget
func WithConflictRetries(n int) Option {
	return func(e *engineImpl) {
		if n > 0 {
			e.conflictRetries = n
		}
	}
}

// NewEngine creates a transition engine
func NewEngine(
	definition *workflow.Definition,
	requests port.RequestRepository,
	history port.HistoryRepository,
	directory port.ActorDirectory,
	txManager port.TransactionManager,
	allocator *idgen.Allocator,
	opts ...Option,
) TransitionEngine {
	e := &engineImpl{
		definition:      definition,
		requests:        requests,
		history:         history,
		directory:       directory,
		txManager:       txManager,
		allocator:       allocator,
		conflictRetries: defaultConflictRetries,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Submit creates a new request at the initial stage
func (e *engineImpl) Submit(ctx context.Context, input SubmitInput) (*entity.Request, error) {
	if err := validateSubmit(input); err != nil {
		return nil, err
	}

	requesterRole, err := e.directory.RoleOf(ctx, input.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("resolve requester: %w", err)
	}

	// The allocator probe is advisory; the unique constraint on insert is
	// the authoritative reserve. Losing that race means another submit
	// claimed the candidate first, so draw a fresh one.
	for attempt := 0; attempt < idgen.DefaultMaxAttempts; attempt++ {
		requestID, err := e.allocator.Allocate(ctx)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		req := &entity.Request{
			ID:                uuid.NewString(),
			RequestID:         requestID,
			Title:             strings.TrimSpace(input.Title),
			Description:       input.Description,
			College:           input.College,
			Department:        input.Department,
			RequesterID:       input.RequesterID,
			Stage:             e.definition.InitialStage(),
			Version:           1,
			ParallelApprovals: workflow.NewRoleSet(),
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		entry := &entity.HistoryEntry{
			RequestID: req.ID,
			ActorID:   input.RequesterID,
			ActorRole: requesterRole,
			Action:    workflow.ActionSubmit,
			Timestamp: now,
		}

		err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := e.requests.Create(txCtx, req); err != nil {
				return err
			}
			return e.history.Append(txCtx, entry)
		})
		if errors.Is(err, workflow.ErrDuplicateRequestID) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		if e.logger != nil {
			e.logger.Info("Request submitted",
				"request_id", req.RequestID,
				"requester_id", req.RequesterID,
				"stage", req.Stage.String(),
			)
		}

		e.emit(ctx, req, input.RequesterID, requesterRole, workflow.ActionSubmit, workflow.StageDraft, "")
		return req, nil
	}

	return nil, workflow.ErrIdExhaustion
}

// Approve records an approval and advances the request when its stage rule
// is satisfied
func (e *engineImpl) Approve(ctx context.Context, requestID, actorID, notes string) (*entity.Request, error) {
	return e.apply(ctx, requestID, actorID, workflow.ActionApprove, notes, e.applyApprove)
}

// Reject moves the request to the rejected terminal stage
func (e *engineImpl) Reject(ctx context.Context, requestID, actorID, reason string) (*entity.Request, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: reject requires a reason", workflow.ErrValidation)
	}
	return e.apply(ctx, requestID, actorID, workflow.ActionReject, reason, e.applyReject)
}

// RequestClarification raises a query and freezes stage advancement
func (e *engineImpl) RequestClarification(ctx context.Context, requestID, actorID, message string) (*entity.Request, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: clarification requires a message", workflow.ErrValidation)
	}
	return e.apply(ctx, requestID, actorID, workflow.ActionQuery, message, e.applyQuery)
}

// RespondClarification clears an outstanding query
func (e *engineImpl) RespondClarification(ctx context.Context, requestID, actorID, response string) (*entity.Request, error) {
	if strings.TrimSpace(response) == "" {
		return nil, fmt.Errorf("%w: clarification response requires text", workflow.ErrValidation)
	}
	return e.apply(ctx, requestID, actorID, workflow.ActionRespond, response, e.applyRespond)
}

// Get returns the request and its audit trail
func (e *engineImpl) Get(ctx context.Context, requestID string) (*entity.Request, []*entity.HistoryEntry, error) {
	req, err := e.requests.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}

	entries, err := e.history.ListByRequestID(ctx, req.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load history: %w", err)
	}

	return req, entries, nil
}

// mutator validates and applies one action against the request in place.
// Business-rule failures surface verbatim; they are never retried.
type mutator func(req *entity.Request, actorID string, actorRole workflow.Role) error

// apply runs one action under optimistic concurrency: read, validate,
// mutate, then conditionally write. A lost write race is re-read and
// reapplied up to the retry budget; every other error is final.
func (e *engineImpl) apply(
	ctx context.Context,
	requestID, actorID string,
	action workflow.Action,
	notes string,
	mutate mutator,
) (*entity.Request, error) {
	actorRole, err := e.directory.RoleOf(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("resolve actor: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < e.conflictRetries; attempt++ {
		req, err := e.requests.GetByRequestID(ctx, requestID)
		if err != nil {
			return nil, err
		}

		previousStage := req.Stage
		expectedVersion := req.Version

		if err := mutate(req, actorID, actorRole); err != nil {
			return nil, err
		}

		now := time.Now()
		req.UpdatedAt = now
		entry := &entity.HistoryEntry{
			RequestID: req.ID,
			ActorID:   actorID,
			ActorRole: actorRole,
			Action:    action,
			Notes:     notes,
			Timestamp: now,
		}

		err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := e.requests.Update(txCtx, req, expectedVersion); err != nil {
				return err
			}
			return e.history.Append(txCtx, entry)
		})
		if errors.Is(err, workflow.ErrConcurrentModification) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", action, err)
		}

		if e.logger != nil {
			e.logger.Info("Action applied",
				"request_id", req.RequestID,
				"action", action.String(),
				"actor_id", actorID,
				"actor_role", actorRole.String(),
				"previous_stage", previousStage.String(),
				"new_stage", req.Stage.String(),
			)
		}

		e.emit(ctx, req, actorID, actorRole, action, previousStage, notes)
		return req, nil
	}

	return nil, fmt.Errorf("apply %s after %d attempts: %w", action, e.conflictRetries, lastErr)
}

// applyApprove implements the approve rules, including the parallel join
func (e *engineImpl) applyApprove(req *entity.Request, _ string, actorRole workflow.Role) error {
	if err := e.checkActionable(req, actorRole, false); err != nil {
		return err
	}

	if !e.definition.IsParallel(req.Stage) {
		return e.advance(req)
	}

	// Idempotent set-union: a repeat approval by the same role is recorded
	// in history but does not grow the set
	req.ParallelApprovals.Add(actorRole)

	required, err := e.definition.RolesFor(req.Stage, req.Attributes())
	if err != nil {
		return err
	}
	if req.ParallelApprovals.Equal(required) {
		return e.advance(req)
	}
	return nil
}

// applyReject implements the universal reject edge; it short-circuits any
// pending parallel approvals
func (e *engineImpl) applyReject(req *entity.Request, _ string, actorRole workflow.Role) error {
	allowDuringQuery := e.definition.Policy().AllowRejectDuringQuery
	if err := e.checkActionable(req, actorRole, allowDuringQuery); err != nil {
		return err
	}

	req.Stage = workflow.StageRejected
	req.ParallelApprovals = workflow.NewRoleSet()
	return nil
}

// applyQuery raises a clarification; the stage is unchanged
func (e *engineImpl) applyQuery(req *entity.Request, _ string, actorRole workflow.Role) error {
	if req.Stage.IsTerminal() {
		return fmt.Errorf("%w: stage %s is terminal", workflow.ErrInvalidTransition, req.Stage)
	}
	if req.PendingQuery && !e.definition.Policy().AllowConcurrentQueries {
		return fmt.Errorf("%w: a clarification is already outstanding", workflow.ErrInvalidTransition)
	}

	roles, err := e.definition.RolesFor(req.Stage, req.Attributes())
	if err != nil {
		return err
	}
	if !roles.Has(actorRole) {
		return fmt.Errorf("%w: role %s cannot act at stage %s", workflow.ErrUnauthorizedAction, actorRole, req.Stage)
	}

	req.PendingQuery = true
	req.QueryLevel = actorRole
	return nil
}

// applyRespond clears an outstanding clarification; only the original
// requester may respond
func (e *engineImpl) applyRespond(req *entity.Request, actorID string, _ workflow.Role) error {
	if !req.PendingQuery {
		return fmt.Errorf("%w: no clarification outstanding", workflow.ErrInvalidTransition)
	}
	if req.RequesterID != actorID {
		return fmt.Errorf("%w: only the original requester may respond", workflow.ErrUnauthorizedAction)
	}

	req.PendingQuery = false
	req.QueryLevel = ""
	return nil
}

// checkActionable enforces the shared approve/reject preconditions:
// non-terminal stage, no query freeze, and role authorization
func (e *engineImpl) checkActionable(req *entity.Request, actorRole workflow.Role, allowDuringQuery bool) error {
	if req.Stage.IsTerminal() {
		return fmt.Errorf("%w: stage %s is terminal", workflow.ErrInvalidTransition, req.Stage)
	}
	if req.PendingQuery && !allowDuringQuery {
		return fmt.Errorf("%w: clarification outstanding at level %s", workflow.ErrInvalidTransition, req.QueryLevel)
	}

	roles, err := e.definition.RolesFor(req.Stage, req.Attributes())
	if err != nil {
		return err
	}
	if !roles.Has(actorRole) {
		return fmt.Errorf("%w: role %s cannot act at stage %s", workflow.ErrUnauthorizedAction, actorRole, req.Stage)
	}
	return nil
}

// advance moves the request along its approval edge and resets the
// parallel-approval set, which must be empty outside a parallel stage
func (e *engineImpl) advance(req *entity.Request) error {
	next, err := e.definition.NextOnApprove(req.Stage)
	if err != nil {
		return err
	}
	req.Stage = next
	req.ParallelApprovals = workflow.NewRoleSet()
	return nil
}

// emit hands the status-change fact to the dispatcher. Delivery is async and
// best-effort; the transition is already durable.
func (e *engineImpl) emit(
	ctx context.Context,
	req *entity.Request,
	actorID string,
	actorRole workflow.Role,
	action workflow.Action,
	previousStage workflow.Stage,
	notes string,
) {
	if e.dispatcher == nil {
		return
	}

	evt := event.NewStatusChange(
		event.TypeForAction(action),
		req.RequestID,
		actorID,
		actorRole,
		action,
		previousStage,
		req.Stage,
		notes,
	)
	e.dispatcher.DispatchAsync(ctx, evt)
}

// validateSubmit checks required submit attributes
func validateSubmit(input SubmitInput) error {
	if strings.TrimSpace(input.RequesterID) == "" {
		return fmt.Errorf("%w: requester id is required", workflow.ErrValidation)
	}
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: title is required", workflow.ErrValidation)
	}
	return nil
}
