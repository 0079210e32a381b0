package entity

import (
	"time"

	"github.com/srmops/approval-flow/internal/domain/workflow"
)

// Actor is a user known to the actor directory
type Actor struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Role      workflow.Role `json:"role"`
	Active    bool          `json:"active"`
	CreatedAt time.Time     `json:"created_at"`
}
