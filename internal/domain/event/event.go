package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/srmops/approval-flow/internal/domain/workflow"
)

// StatusChange is the fact emitted after every accepted mutating operation.
// Delivery is decoupled from the transition: the engine is durable and
// visible before any consumer sees the event.
type StatusChange struct {
	ID            string          `json:"id"`
	Type          Type            `json:"type"`
	RequestID     string          `json:"request_id"`
	ActorID       string          `json:"actor_id"`
	ActorRole     workflow.Role   `json:"actor_role"`
	Action        workflow.Action `json:"action"`
	PreviousStage workflow.Stage  `json:"previous_stage"`
	NewStage      workflow.Stage  `json:"new_stage"`
	Notes         string          `json:"notes,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewStatusChange creates a status-change event with a generated id and
// timestamp.
func NewStatusChange(
	eventType Type,
	requestID string,
	actorID string,
	actorRole workflow.Role,
	action workflow.Action,
	previousStage, newStage workflow.Stage,
	notes string,
) *StatusChange {
	return &StatusChange{
		ID:            uuid.NewString(),
		Type:          eventType,
		RequestID:     requestID,
		ActorID:       actorID,
		ActorRole:     actorRole,
		Action:        action,
		PreviousStage: previousStage,
		NewStage:      newStage,
		Notes:         notes,
		Timestamp:     time.Now(),
	}
}

// TypeForAction maps an accepted action to its event type
func TypeForAction(action workflow.Action) Type {
	switch action {
	case workflow.ActionSubmit:
		return TypeRequestCreated
	case workflow.ActionApprove:
		return TypeRequestApproved
	case workflow.ActionReject:
		return TypeRequestRejected
	case workflow.ActionQuery:
		return TypeQueryRaised
	case workflow.ActionRespond:
		return TypeQueryResponded
	default:
		return ""
	}
}
