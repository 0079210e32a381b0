package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/srmops/approval-flow/internal/application/port"
	"github.com/srmops/approval-flow/internal/domain/entity"
	"github.com/srmops/approval-flow/internal/domain/workflow"
	"github.com/srmops/approval-flow/pkg/database"
)

func portFilter(stage workflow.Stage, text, requester string) port.ListFilter {
	return port.ListFilter{Stage: stage, Text: text, RequesterID: requester}
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.Open(database.Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, logger)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.NewMigrator(db, logger).RunMigrations(); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}

func newRequest(id, requestID string) *entity.Request {
	now := time.Now().UTC().Truncate(time.Second)
	return &entity.Request{
		ID:                id,
		RequestID:         requestID,
		Title:             "Lab equipment purchase",
		Description:       "Three oscilloscopes",
		College:           "engineering",
		Department:        "mma",
		RequesterID:       "req-1",
		Stage:             workflow.StageManagerReview,
		Version:           1,
		ParallelApprovals: workflow.NewRoleSet(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestRequestRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()

	req := newRequest("internal-1", "345678")
	req.Stage = workflow.StageParallelVerification
	req.ParallelApprovals = workflow.NewRoleSet(workflow.RoleSOPVerifier)
	req.PendingQuery = true
	req.QueryLevel = workflow.RoleAccountant

	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, err := repo.GetByRequestID(ctx, "345678")
	if err != nil {
		t.Fatalf("GetByRequestID() error: %v", err)
	}
	if got.ID != "internal-1" || got.Title != req.Title || got.Stage != workflow.StageParallelVerification {
		t.Errorf("got = %+v", got)
	}
	if !got.ParallelApprovals.Has(workflow.RoleSOPVerifier) || len(got.ParallelApprovals) != 1 {
		t.Errorf("ParallelApprovals = %v", got.ParallelApprovals)
	}
	if !got.PendingQuery || got.QueryLevel != workflow.RoleAccountant {
		t.Errorf("query state = %v/%v", got.PendingQuery, got.QueryLevel)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
}

func TestRequestRepository_GetMissing(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())

	_, err := repo.GetByRequestID(context.Background(), "999999")
	if !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRequestRepository_DuplicateRequestID(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()

	if err := repo.Create(ctx, newRequest("internal-1", "345678")); err != nil {
		t.Fatalf("first Create() error: %v", err)
	}

	err := repo.Create(ctx, newRequest("internal-2", "345678"))
	if !errors.Is(err, workflow.ErrDuplicateRequestID) {
		t.Errorf("error = %v, want ErrDuplicateRequestID", err)
	}

	exists, err := repo.RequestIDExists(ctx, "345678")
	if err != nil || !exists {
		t.Errorf("RequestIDExists() = %v, %v, want true", exists, err)
	}
	exists, err = repo.RequestIDExists(ctx, "111111")
	if err != nil || exists {
		t.Errorf("RequestIDExists(free) = %v, %v, want false", exists, err)
	}
}

func TestRequestRepository_OptimisticUpdate(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()

	req := newRequest("internal-1", "345678")
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	req.Stage = workflow.StageParallelVerification
	if err := repo.Update(ctx, req, 1); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if req.Version != 2 {
		t.Errorf("Version after update = %d, want 2", req.Version)
	}

	// A writer still holding version 1 must lose
	stale := newRequest("internal-1", "345678")
	stale.Stage = workflow.StageRejected
	err := repo.Update(ctx, stale, 1)
	if !errors.Is(err, workflow.ErrConcurrentModification) {
		t.Errorf("stale update error = %v, want ErrConcurrentModification", err)
	}

	got, err := repo.GetByRequestID(ctx, "345678")
	if err != nil {
		t.Fatalf("GetByRequestID() error: %v", err)
	}
	if got.Stage != workflow.StageParallelVerification || got.Version != 2 {
		t.Errorf("stored state = %s v%d, want parallel_verification v2", got.Stage, got.Version)
	}
}

func TestRequestRepository_ListFilters(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()

	a := newRequest("internal-1", "111111")
	b := newRequest("internal-2", "222222")
	b.Stage = workflow.StageDeanReview
	b.Title = "Conference travel"
	b.RequesterID = "req-2"
	for _, req := range []*entity.Request{a, b} {
		if err := repo.Create(ctx, req); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	byStage, err := repo.List(ctx, portFilter(workflow.StageDeanReview, "", ""))
	if err != nil || len(byStage) != 1 || byStage[0].RequestID != "222222" {
		t.Errorf("stage filter = %v, %v", byStage, err)
	}

	byText, err := repo.List(ctx, portFilter("", "oscillo", ""))
	if err != nil || len(byText) != 1 || byText[0].RequestID != "111111" {
		t.Errorf("text filter = %v, %v", byText, err)
	}

	byRequester, err := repo.List(ctx, portFilter("", "", "req-2"))
	if err != nil || len(byRequester) != 1 || byRequester[0].RequestID != "222222" {
		t.Errorf("requester filter = %v, %v", byRequester, err)
	}
}

func TestRequestRepository_Backfill(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()

	// Two legacy rows without public ids coexist; the unique index must
	// ignore unassigned rows
	if err := repo.Create(ctx, newRequest("legacy-1", "")); err != nil {
		t.Fatalf("Create(legacy-1) error: %v", err)
	}
	if err := repo.Create(ctx, newRequest("legacy-2", "")); err != nil {
		t.Fatalf("Create(legacy-2) error: %v", err)
	}
	if err := repo.Create(ctx, newRequest("internal-3", "345678")); err != nil {
		t.Fatalf("Create(internal-3) error: %v", err)
	}

	missing, err := repo.ListMissingRequestID(ctx)
	if err != nil || len(missing) != 2 {
		t.Fatalf("ListMissingRequestID() = %v, %v, want 2 rows", missing, err)
	}

	if err := repo.AssignRequestID(ctx, "legacy-1", "111111"); err != nil {
		t.Fatalf("AssignRequestID() error: %v", err)
	}

	// Colliding with a taken id is rejected by the index
	if err := repo.AssignRequestID(ctx, "legacy-2", "345678"); !errors.Is(err, workflow.ErrDuplicateRequestID) {
		t.Errorf("collision error = %v, want ErrDuplicateRequestID", err)
	}

	// Re-assigning a row that already has an id is a no-op failure
	if err := repo.AssignRequestID(ctx, "legacy-1", "222222"); !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("re-assign error = %v, want ErrNotFound", err)
	}

	missing, err = repo.ListMissingRequestID(ctx)
	if err != nil || len(missing) != 1 || missing[0].ID != "legacy-2" {
		t.Errorf("remaining missing = %v, %v", missing, err)
	}
}

func TestHistoryRepository_AppendAndList(t *testing.T) {
	db := newTestDB(t)
	repo := NewHistoryRepository(db, zap.NewNop())
	ctx := context.Background()

	entries := []*entity.HistoryEntry{
		{RequestID: "internal-1", ActorID: "req-1", ActorRole: workflow.RoleRequester, Action: workflow.ActionSubmit, Timestamp: time.Now().UTC()},
		{RequestID: "internal-1", ActorID: "mgr-1", ActorRole: workflow.RoleInstitutionManager, Action: workflow.ActionApprove, Notes: "ok", Timestamp: time.Now().UTC()},
		{RequestID: "internal-9", ActorID: "req-2", ActorRole: workflow.RoleRequester, Action: workflow.ActionSubmit, Timestamp: time.Now().UTC()},
	}
	for _, entry := range entries {
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
		if entry.ID == 0 {
			t.Error("Append() did not set entry id")
		}
	}

	got, err := repo.ListByRequestID(ctx, "internal-1")
	if err != nil {
		t.Fatalf("ListByRequestID() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Action != workflow.ActionSubmit || got[1].Action != workflow.ActionApprove {
		t.Errorf("order = %s, %s", got[0].Action, got[1].Action)
	}
	if got[1].Notes != "ok" || got[1].ActorRole != workflow.RoleInstitutionManager {
		t.Errorf("entry = %+v", got[1])
	}
}

func TestActorRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seed := `INSERT INTO actors (id, name, email, role, active) VALUES
		('dean-1', 'Dean One', 'dean1@srm.edu', 'dean', 1),
		('dean-2', 'Dean Two', 'dean2@srm.edu', 'dean', 0),
		('mgr-1', 'Manager', 'mgr@srm.edu', 'institution_manager', 1)`
	if _, err := db.Exec(seed); err != nil {
		t.Fatalf("seed actors: %v", err)
	}

	repo := NewActorRepository(db, zap.NewNop())

	role, err := repo.RoleOf(ctx, "mgr-1")
	if err != nil || role != workflow.RoleInstitutionManager {
		t.Errorf("RoleOf() = %v, %v", role, err)
	}

	if _, err := repo.RoleOf(ctx, "ghost"); !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("RoleOf(ghost) error = %v, want ErrNotFound", err)
	}

	deans, err := repo.ActiveActorsWithRole(ctx, workflow.RoleDean)
	if err != nil {
		t.Fatalf("ActiveActorsWithRole() error: %v", err)
	}
	if len(deans) != 1 || deans[0].ID != "dean-1" {
		t.Errorf("active deans = %+v, want only dean-1", deans)
	}
}

func TestNotificationRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewNotificationRepository(db, zap.NewNop())
	ctx := context.Background()

	n := &entity.Notification{
		UserID:    "req-1",
		RequestID: "345678",
		Type:      entity.NotificationTypeApprovalPending,
		Title:     "New Approval Request",
		Message:   "Request #345678 is awaiting your review.",
		Status:    entity.NotificationStatusPending,
	}
	if err := repo.Create(ctx, n); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if n.ID == 0 {
		t.Fatal("Create() did not set id")
	}

	if err := repo.MarkFailed(ctx, n.ID, "smtp down"); err != nil {
		t.Fatalf("MarkFailed() error: %v", err)
	}

	list, err := repo.ListByUser(ctx, "req-1", true, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListByUser() = %v, %v", list, err)
	}
	if list[0].Status != entity.NotificationStatusFailed || list[0].ErrorMessage != "smtp down" {
		t.Errorf("notification = %+v", list[0])
	}

	if err := repo.MarkAllRead(ctx, "req-1"); err != nil {
		t.Fatalf("MarkAllRead() error: %v", err)
	}
	unread, err := repo.ListByUser(ctx, "req-1", true, 10)
	if err != nil || len(unread) != 0 {
		t.Errorf("unread after MarkAllRead = %v, %v", unread, err)
	}
}
