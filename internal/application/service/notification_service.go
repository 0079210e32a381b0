package service

import (
	"context"
	"fmt"

	"github.com/srmops/approval-flow/internal/application/dispatcher"
	"github.com/srmops/approval-flow/internal/application/port"
	"github.com/srmops/approval-flow/internal/domain/entity"
	"github.com/srmops/approval-flow/internal/domain/event"
	"github.com/srmops/approval-flow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// NotificationService is the notification collaborator. It consumes
// status-change events and fans them out as in-app notification records plus
// best-effort email. Nothing here can fail a transition: every error is
// logged or recorded on the notification row and swallowed.
type NotificationService interface {
	// Register subscribes the service to every status-change event type
	Register(d dispatcher.Dispatcher)

	// HandleStatusChange processes one status-change event
	HandleStatusChange(ctx context.Context, evt *event.StatusChange) error

	// ListForUser returns a user's notifications, optionally unread only
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.Notification, error)

	// MarkRead marks a single notification as read
	MarkRead(ctx context.Context, id int64) error

	// MarkAllRead marks every notification of a user as read
	MarkAllRead(ctx context.Context, userID string) error
}

type notificationServiceImpl struct {
	definition       *workflow.Definition
	requests         port.RequestRepository
	notificationRepo port.NotificationRepository
	directory        port.ActorDirectory
	sender           port.EmailSender
	logger           Logger
}

// NewNotificationService creates the notification collaborator. sender may
// be nil, in which case notifications are in-app only.
func NewNotificationService(
	definition *workflow.Definition,
	requests port.RequestRepository,
	notificationRepo port.NotificationRepository,
	directory port.ActorDirectory,
	sender port.EmailSender,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		definition:       definition,
		requests:         requests,
		notificationRepo: notificationRepo,
		directory:        directory,
		sender:           sender,
		logger:           logger,
	}
}

// Register subscribes the service to every status-change event type
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	for _, typ := range []event.Type{
		event.TypeRequestCreated,
		event.TypeRequestApproved,
		event.TypeRequestRejected,
		event.TypeQueryRaised,
		event.TypeQueryResponded,
	} {
		d.SubscribeNamed(typ, "notifications", s.HandleStatusChange)
	}
}

// HandleStatusChange fans one event out to the affected recipients
func (s *notificationServiceImpl) HandleStatusChange(ctx context.Context, evt *event.StatusChange) error {
	req, err := s.requests.GetByRequestID(ctx, evt.RequestID)
	if err != nil {
		s.logger.Error("Failed to load request for notification", "error", err, "request_id", evt.RequestID)
		return fmt.Errorf("load request: %w", err)
	}

	switch evt.Type {
	case event.TypeRequestCreated:
		s.notifyRequester(ctx, req, entity.NotificationTypeRequestCreated,
			"Request Submitted",
			fmt.Sprintf("Your request %q (#%s) has been submitted for approval.", req.Title, req.RequestID))
		s.notifyStageApprovers(ctx, req, evt)

	case event.TypeRequestApproved:
		s.notifyRequester(ctx, req, entity.NotificationTypeApprovalApproved,
			"Request Approved",
			fmt.Sprintf("Your request %q has been approved by %s.", req.Title, evt.ActorRole))
		if evt.NewStage == workflow.StageApproved {
			s.notifyRequester(ctx, req, entity.NotificationTypeRequestCompleted,
				"Request Completed",
				fmt.Sprintf("Your request %q has completed the approval pipeline.", req.Title))
		} else if evt.NewStage != evt.PreviousStage {
			s.notifyStageApprovers(ctx, req, evt)
		}

	case event.TypeRequestRejected:
		message := fmt.Sprintf("Your request %q has been rejected by %s.", req.Title, evt.ActorRole)
		if evt.Notes != "" {
			message += " Reason: " + evt.Notes
		}
		s.notifyRequester(ctx, req, entity.NotificationTypeApprovalRejected, "Request Rejected", message)
		s.notifyRequester(ctx, req, entity.NotificationTypeRequestCompleted,
			"Request Completed",
			fmt.Sprintf("Your request %q was closed as rejected.", req.Title))

	case event.TypeQueryRaised:
		s.notifyRequester(ctx, req, entity.NotificationTypeQueryReceived,
			"Clarification Requested",
			fmt.Sprintf("%s has requested clarification on %q: %s", evt.ActorRole, req.Title, evt.Notes))

	case event.TypeQueryResponded:
		// The stage's authorized roles may act again
		s.notifyStageApproversWithType(ctx, req, entity.NotificationTypeQueryResponded,
			"Clarification Answered",
			fmt.Sprintf("The requester has answered the clarification on %q.", req.Title))

	default:
		s.logger.Error("Unknown event type", "event_type", evt.Type, "event_id", evt.ID)
	}

	return nil
}

// ListForUser returns a user's notifications
func (s *notificationServiceImpl) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.Notification, error) {
	return s.notificationRepo.ListByUser(ctx, userID, unreadOnly, limit)
}

// MarkRead marks a single notification as read
func (s *notificationServiceImpl) MarkRead(ctx context.Context, id int64) error {
	return s.notificationRepo.MarkRead(ctx, id)
}

// MarkAllRead marks every notification of a user as read
func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, userID string) error {
	return s.notificationRepo.MarkAllRead(ctx, userID)
}

// notifyStageApprovers notifies every active actor authorized at the
// request's current stage that an approval is pending
func (s *notificationServiceImpl) notifyStageApprovers(ctx context.Context, req *entity.Request, evt *event.StatusChange) {
	s.notifyStageApproversWithType(ctx, req, entity.NotificationTypeApprovalPending,
		"New Approval Request",
		fmt.Sprintf("Request %q (#%s) is awaiting your review.", req.Title, req.RequestID))
}

func (s *notificationServiceImpl) notifyStageApproversWithType(ctx context.Context, req *entity.Request, notifType, title, message string) {
	if req.Stage.IsTerminal() {
		return
	}

	roles, err := s.definition.RolesFor(req.Stage, req.Attributes())
	if err != nil {
		s.logger.Error("Failed to resolve stage roles", "error", err, "stage", req.Stage.String())
		return
	}

	for _, role := range roles.Sorted() {
		actors, err := s.directory.ActiveActorsWithRole(ctx, role)
		if err != nil {
			s.logger.Error("Failed to resolve actors for role", "error", err, "role", role.String())
			continue
		}
		for _, actor := range actors {
			s.deliver(ctx, actor, req, notifType, title, message)
		}
	}
}

// notifyRequester notifies the request's owner
func (s *notificationServiceImpl) notifyRequester(ctx context.Context, req *entity.Request, notifType, title, message string) {
	actor, err := s.directory.Get(ctx, req.RequesterID)
	if err != nil {
		s.logger.Error("Failed to resolve requester", "error", err, "requester_id", req.RequesterID)
		return
	}
	s.deliver(ctx, actor, req, notifType, title, message)
}

// deliver creates the in-app record, then attempts email. The record is the
// durable part; email failure only marks the row FAILED.
func (s *notificationServiceImpl) deliver(ctx context.Context, recipient *entity.Actor, req *entity.Request, notifType, title, message string) {
	notification := &entity.Notification{
		UserID:    recipient.ID,
		RequestID: req.RequestID,
		Type:      notifType,
		Title:     title,
		Message:   message,
		Status:    entity.NotificationStatusPending,
	}

	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		s.logger.Error("Failed to create notification",
			"error", err,
			"user_id", recipient.ID,
			"request_id", req.RequestID,
			"type", notifType,
		)
		return
	}

	if s.sender == nil || recipient.Email == "" {
		return
	}

	if err := s.sender.Send(ctx, recipient.Email, title, message); err != nil {
		s.logger.Error("Failed to send notification email",
			"error", err,
			"user_id", recipient.ID,
			"notification_id", notification.ID,
		)
		if markErr := s.notificationRepo.MarkFailed(ctx, notification.ID, err.Error()); markErr != nil {
			s.logger.Error("Failed to mark notification failed", "error", markErr, "notification_id", notification.ID)
		}
		return
	}

	if err := s.notificationRepo.MarkSent(ctx, notification.ID); err != nil {
		s.logger.Error("Failed to mark notification sent", "error", err, "notification_id", notification.ID)
	}
}
