package dispatcher

import (
	"context"

	"github.com/srmops/approval-flow/internal/domain/event"
)

// Handler processes status-change events
type Handler func(ctx context.Context, evt *event.StatusChange) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
