package workflow

import "errors"

var (
	// ErrValidation is returned when submit input is malformed or incomplete
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a request or actor cannot be resolved
	ErrNotFound = errors.New("not found")

	// ErrUnauthorizedAction is returned when the actor's role is not permitted
	// to act at the request's current stage
	ErrUnauthorizedAction = errors.New("actor not authorized for action")

	// ErrInvalidTransition is returned for actions against a terminal stage,
	// a duplicate outstanding clarification, or a query-frozen request
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrConcurrentModification is returned when a version-checked write loses
	// a race; the action is retryable after a re-read
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrDuplicateRequestID is returned by the store when inserting an already
	// reserved request id
	ErrDuplicateRequestID = errors.New("duplicate request id")

	// ErrIdExhaustion is returned when the allocator runs out of attempts
	ErrIdExhaustion = errors.New("request id space exhausted after maximum attempts")

	// ErrUnknownStage is returned when the definition has no rule for a stage
	ErrUnknownStage = errors.New("no rule for stage")
)
