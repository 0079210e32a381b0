package entity

import "time"

// Notification kinds mirror the in-app notification taxonomy
const (
	NotificationTypeRequestCreated   = "request_created"
	NotificationTypeApprovalPending  = "approval_pending"
	NotificationTypeApprovalApproved = "approval_approved"
	NotificationTypeApprovalRejected = "approval_rejected"
	NotificationTypeQueryReceived    = "query_received"
	NotificationTypeQueryResponded   = "query_responded"
	NotificationTypeRequestCompleted = "request_completed"
)

// Delivery status constants for Notification
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)

// Notification is an in-app notification record. Email delivery is
// best-effort and tracked by Status; the record itself is the durable part.
type Notification struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	RequestID    string    `json:"request_id"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Read         bool      `json:"read"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
