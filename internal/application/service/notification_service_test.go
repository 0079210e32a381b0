package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/srmops/approval-flow/internal/application/port"
	"github.com/srmops/approval-flow/internal/domain/entity"
	"github.com/srmops/approval-flow/internal/domain/event"
	"github.com/srmops/approval-flow/internal/domain/workflow"
)

// Mock repositories

type mockRequestRepo struct {
	getByRequestIDFunc func(ctx context.Context, requestID string) (*entity.Request, error)
	listFunc           func(ctx context.Context, filter port.ListFilter) ([]*entity.Request, error)
}

func (m *mockRequestRepo) Create(ctx context.Context, request *entity.Request) error { return nil }

func (m *mockRequestRepo) GetByRequestID(ctx context.Context, requestID string) (*entity.Request, error) {
	if m.getByRequestIDFunc != nil {
		return m.getByRequestIDFunc(ctx, requestID)
	}
	return nil, fmt.Errorf("%w: request %s", workflow.ErrNotFound, requestID)
}

func (m *mockRequestRepo) RequestIDExists(ctx context.Context, requestID string) (bool, error) {
	return false, nil
}

func (m *mockRequestRepo) Update(ctx context.Context, request *entity.Request, expectedVersion int64) error {
	return nil
}

func (m *mockRequestRepo) List(ctx context.Context, filter port.ListFilter) ([]*entity.Request, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return nil, nil
}

func (m *mockRequestRepo) ListMissingRequestID(ctx context.Context) ([]*entity.Request, error) {
	return nil, nil
}

func (m *mockRequestRepo) AssignRequestID(ctx context.Context, id string, requestID string) error {
	return nil
}

type mockNotificationRepo struct {
	mu      sync.Mutex
	created []*entity.Notification
	sent    []int64
	failed  []int64
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = int64(len(m.created) + 1)
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Notification
	for _, n := range m.created {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id int64) error { return nil }

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, userID string) error { return nil }

func (m *mockNotificationRepo) MarkSent(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, id)
	return nil
}

func (m *mockNotificationRepo) MarkFailed(ctx context.Context, id int64, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, id)
	return nil
}

func (m *mockNotificationRepo) byType(notifType string) []*entity.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Notification
	for _, n := range m.created {
		if n.Type == notifType {
			out = append(out, n)
		}
	}
	return out
}

type mockDirectory struct {
	actors map[string]*entity.Actor
}

func (m *mockDirectory) Get(ctx context.Context, actorID string) (*entity.Actor, error) {
	actor, ok := m.actors[actorID]
	if !ok {
		return nil, fmt.Errorf("%w: actor %s", workflow.ErrNotFound, actorID)
	}
	return actor, nil
}

func (m *mockDirectory) RoleOf(ctx context.Context, actorID string) (workflow.Role, error) {
	actor, err := m.Get(ctx, actorID)
	if err != nil {
		return "", err
	}
	return actor.Role, nil
}

func (m *mockDirectory) ActiveActorsWithRole(ctx context.Context, role workflow.Role) ([]*entity.Actor, error) {
	var out []*entity.Actor
	for _, actor := range m.actors {
		if actor.Role == role && actor.Active {
			out = append(out, actor)
		}
	}
	return out, nil
}

type mockSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *mockSender) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

func testActors() map[string]*entity.Actor {
	return map[string]*entity.Actor{
		"req-1":  {ID: "req-1", Email: "requester@srm.edu", Role: workflow.RoleRequester, Active: true},
		"sop-1":  {ID: "sop-1", Email: "sop@srm.edu", Role: workflow.RoleSOPVerifier, Active: true},
		"acct-1": {ID: "acct-1", Email: "acct@srm.edu", Role: workflow.RoleAccountant, Active: true},
		"dean-1": {ID: "dean-1", Email: "dean@srm.edu", Role: workflow.RoleDean, Active: true},
	}
}

func testRequest(stage workflow.Stage) *entity.Request {
	return &entity.Request{
		ID:          "internal-1",
		RequestID:   "345678",
		Title:       "Lab equipment purchase",
		Department:  "mma",
		RequesterID: "req-1",
		Stage:       stage,
	}
}

func newService(req *entity.Request, sender port.EmailSender) (NotificationService, *mockNotificationRepo) {
	repo := &mockNotificationRepo{}
	requests := &mockRequestRepo{
		getByRequestIDFunc: func(ctx context.Context, requestID string) (*entity.Request, error) {
			if requestID == req.RequestID {
				return req, nil
			}
			return nil, fmt.Errorf("%w: request %s", workflow.ErrNotFound, requestID)
		},
	}
	svc := NewNotificationService(
		workflow.NewDefinition(),
		requests,
		repo,
		&mockDirectory{actors: testActors()},
		sender,
		nopLogger{},
	)
	return svc, repo
}

func TestHandleStatusChange_ApprovedNotifiesRequesterAndNextApprovers(t *testing.T) {
	req := testRequest(workflow.StageParallelVerification)
	sender := &mockSender{}
	svc, repo := newService(req, sender)

	evt := event.NewStatusChange(event.TypeRequestApproved, req.RequestID, "mgr-1",
		workflow.RoleInstitutionManager, workflow.ActionApprove,
		workflow.StageManagerReview, workflow.StageParallelVerification, "")

	if err := svc.HandleStatusChange(context.Background(), evt); err != nil {
		t.Fatalf("HandleStatusChange() error: %v", err)
	}

	approved := repo.byType(entity.NotificationTypeApprovalApproved)
	if len(approved) != 1 || approved[0].UserID != "req-1" {
		t.Errorf("approval_approved notifications = %+v, want one for req-1", approved)
	}

	// Both parallel roles are notified
	pending := repo.byType(entity.NotificationTypeApprovalPending)
	if len(pending) != 2 {
		t.Fatalf("approval_pending notifications = %d, want 2", len(pending))
	}
	recipients := map[string]bool{}
	for _, n := range pending {
		recipients[n.UserID] = true
	}
	if !recipients["sop-1"] || !recipients["acct-1"] {
		t.Errorf("pending recipients = %v, want sop-1 and acct-1", recipients)
	}

	if len(sender.sent) != 3 {
		t.Errorf("emails sent = %d, want 3", len(sender.sent))
	}
}

func TestHandleStatusChange_TerminalApprovalNotifiesCompletion(t *testing.T) {
	req := testRequest(workflow.StageApproved)
	svc, repo := newService(req, nil)

	evt := event.NewStatusChange(event.TypeRequestApproved, req.RequestID, "chair-1",
		workflow.RoleChairman, workflow.ActionApprove,
		workflow.StageChairmanApproval, workflow.StageApproved, "")

	if err := svc.HandleStatusChange(context.Background(), evt); err != nil {
		t.Fatalf("HandleStatusChange() error: %v", err)
	}

	if got := repo.byType(entity.NotificationTypeRequestCompleted); len(got) != 1 {
		t.Errorf("request_completed notifications = %d, want 1", len(got))
	}
	if got := repo.byType(entity.NotificationTypeApprovalPending); len(got) != 0 {
		t.Errorf("approval_pending notifications = %d, want 0 at terminal stage", len(got))
	}
}

func TestHandleStatusChange_RejectionIncludesReason(t *testing.T) {
	req := testRequest(workflow.StageRejected)
	svc, repo := newService(req, nil)

	evt := event.NewStatusChange(event.TypeRequestRejected, req.RequestID, "acct-1",
		workflow.RoleAccountant, workflow.ActionReject,
		workflow.StageParallelVerification, workflow.StageRejected, "amounts do not reconcile")

	if err := svc.HandleStatusChange(context.Background(), evt); err != nil {
		t.Fatalf("HandleStatusChange() error: %v", err)
	}

	rejected := repo.byType(entity.NotificationTypeApprovalRejected)
	if len(rejected) != 1 {
		t.Fatalf("approval_rejected notifications = %d, want 1", len(rejected))
	}
	if want := "amounts do not reconcile"; !strings.Contains(rejected[0].Message, want) {
		t.Errorf("message %q does not mention reason %q", rejected[0].Message, want)
	}
}

func TestHandleStatusChange_QueryNotifiesRequesterOnly(t *testing.T) {
	req := testRequest(workflow.StageDeanReview)
	svc, repo := newService(req, nil)

	evt := event.NewStatusChange(event.TypeQueryRaised, req.RequestID, "dean-1",
		workflow.RoleDean, workflow.ActionQuery,
		workflow.StageDeanReview, workflow.StageDeanReview, "missing quotation")

	if err := svc.HandleStatusChange(context.Background(), evt); err != nil {
		t.Fatalf("HandleStatusChange() error: %v", err)
	}

	received := repo.byType(entity.NotificationTypeQueryReceived)
	if len(received) != 1 || received[0].UserID != "req-1" {
		t.Errorf("query_received notifications = %+v, want one for req-1", received)
	}
}

func TestHandleStatusChange_QueryResponseNotifiesStageRoles(t *testing.T) {
	req := testRequest(workflow.StageDeanReview)
	svc, repo := newService(req, nil)

	evt := event.NewStatusChange(event.TypeQueryResponded, req.RequestID, "req-1",
		workflow.RoleRequester, workflow.ActionRespond,
		workflow.StageDeanReview, workflow.StageDeanReview, "attached")

	if err := svc.HandleStatusChange(context.Background(), evt); err != nil {
		t.Fatalf("HandleStatusChange() error: %v", err)
	}

	responded := repo.byType(entity.NotificationTypeQueryResponded)
	if len(responded) != 1 || responded[0].UserID != "dean-1" {
		t.Errorf("query_responded notifications = %+v, want one for dean-1", responded)
	}
}

func TestDeliver_EmailFailureMarksRecordFailed(t *testing.T) {
	req := testRequest(workflow.StageDeanReview)
	sender := &mockSender{err: errors.New("smtp down")}
	svc, repo := newService(req, sender)

	evt := event.NewStatusChange(event.TypeQueryRaised, req.RequestID, "dean-1",
		workflow.RoleDean, workflow.ActionQuery,
		workflow.StageDeanReview, workflow.StageDeanReview, "why")

	// Delivery failure must not surface as an event-handling error
	if err := svc.HandleStatusChange(context.Background(), evt); err != nil {
		t.Fatalf("HandleStatusChange() error: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("notifications created = %d, want 1", len(repo.created))
	}
	if len(repo.failed) != 1 {
		t.Errorf("notifications marked failed = %d, want 1", len(repo.failed))
	}
	if len(repo.sent) != 0 {
		t.Errorf("notifications marked sent = %d, want 0", len(repo.sent))
	}
}

func TestSearchService_PendingForRole(t *testing.T) {
	requests := &mockRequestRepo{
		listFunc: func(ctx context.Context, filter port.ListFilter) ([]*entity.Request, error) {
			return []*entity.Request{
				{RequestID: "111111", Stage: workflow.StageDeanReview},
				{RequestID: "222222", Stage: workflow.StageVPApproval},
				{RequestID: "333333", Stage: workflow.StageApproved},
			}, nil
		},
	}
	svc := NewSearchService(workflow.NewDefinition(), requests, nopLogger{})

	pending, err := svc.PendingForRole(context.Background(), workflow.RoleDean)
	if err != nil {
		t.Fatalf("PendingForRole() error: %v", err)
	}
	if len(pending) != 1 || pending[0].RequestID != "111111" {
		t.Errorf("pending = %+v, want only 111111", pending)
	}

	if _, err := svc.PendingForRole(context.Background(), workflow.Role("bogus")); !errors.Is(err, workflow.ErrValidation) {
		t.Errorf("PendingForRole(bogus) error = %v, want ErrValidation", err)
	}
}
