package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/srmops/approval-flow/internal/application/engine"
	"github.com/srmops/approval-flow/internal/application/port"
	"github.com/srmops/approval-flow/internal/application/service"
	"github.com/srmops/approval-flow/internal/domain/entity"
	"github.com/srmops/approval-flow/internal/domain/workflow"
	"github.com/srmops/approval-flow/pkg/utils"
)

// actorHeader carries the caller's identity. Authentication is expected to
// happen upstream (gateway or SSO proxy); this layer only consumes the
// resolved id.
const actorHeader = "X-Actor-ID"

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine        engine.TransitionEngine
	searches      service.SearchService
	notifications service.NotificationService
	logger        Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	transitionEngine engine.TransitionEngine,
	searches service.SearchService,
	notifications service.NotificationService,
	logger Logger,
) *Handlers {
	return &Handlers{
		engine:        transitionEngine,
		searches:      searches,
		notifications: notifications,
		logger:        logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SubmitRequestBody is the payload for creating a request
type SubmitRequestBody struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	College     string `json:"college"`
	Department  string `json:"department"`
}

// ActionBody carries the optional free text of an action
type ActionBody struct {
	Notes string `json:"notes"`
}

// RequestResponse represents a request in API responses
type RequestResponse struct {
	RequestID         string   `json:"request_id"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	College           string   `json:"college,omitempty"`
	Department        string   `json:"department,omitempty"`
	RequesterID       string   `json:"requester_id"`
	Stage             string   `json:"stage"`
	Version           int64    `json:"version"`
	ParallelApprovals []string `json:"parallel_approvals,omitempty"`
	PendingQuery      bool     `json:"pending_query"`
	QueryLevel        string   `json:"query_level,omitempty"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
}

// HistoryEntryResponse represents one audit entry in API responses
type HistoryEntryResponse struct {
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	Action    string `json:"action"`
	Notes     string `json:"notes,omitempty"`
	Timestamp string `json:"timestamp"`
}

// RequestDetailResponse bundles a request with its audit trail
type RequestDetailResponse struct {
	Request RequestResponse        `json:"request"`
	History []HistoryEntryResponse `json:"history"`
}

// SearchRequestsQuery represents query parameters for searching requests
type SearchRequestsQuery struct {
	Stage      string `form:"stage"`
	College    string `form:"college"`
	Department string `form:"department"`
	Requester  string `form:"requester"`
	Q          string `form:"q"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// SubmitRequest handles POST /api/requests
func (h *Handlers) SubmitRequest(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	var body SubmitRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Error("Invalid submit payload", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request payload",
		})
		return
	}

	request, err := h.engine.Submit(c.Request.Context(), engine.SubmitInput{
		RequesterID: actorID,
		Title:       utils.SanitizeString(body.Title),
		Description: utils.SanitizeString(body.Description),
		College:     body.College,
		Department:  body.Department,
	})
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toRequestResponse(request),
	})
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	requestID, ok := h.requestID(c)
	if !ok {
		return
	}

	request, history, err := h.engine.Get(c.Request.Context(), requestID)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	detail := RequestDetailResponse{
		Request: toRequestResponse(request),
	}
	for _, entry := range history {
		detail.History = append(detail.History, toHistoryResponse(entry))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    detail,
	})
}

// ApproveRequest handles POST /api/requests/:id/approve
func (h *Handlers) ApproveRequest(c *gin.Context) {
	h.action(c, h.engine.Approve)
}

// RejectRequest handles POST /api/requests/:id/reject
func (h *Handlers) RejectRequest(c *gin.Context) {
	h.action(c, h.engine.Reject)
}

// QueryRequest handles POST /api/requests/:id/query
func (h *Handlers) QueryRequest(c *gin.Context) {
	h.action(c, h.engine.RequestClarification)
}

// RespondRequest handles POST /api/requests/:id/respond
func (h *Handlers) RespondRequest(c *gin.Context) {
	h.action(c, h.engine.RespondClarification)
}

// action factors the shared shape of the four workflow actions
func (h *Handlers) action(c *gin.Context, do func(ctx context.Context, requestID, actorID, notes string) (*entity.Request, error)) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	requestID, ok := h.requestID(c)
	if !ok {
		return
	}

	var body ActionBody
	if err := c.ShouldBindJSON(&body); err != nil && c.Request.ContentLength > 0 {
		h.logger.Error("Invalid action payload", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request payload",
		})
		return
	}

	request, err := do(c.Request.Context(), requestID, actorID, body.Notes)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toRequestResponse(request),
	})
}

// SearchRequests handles GET /api/requests
func (h *Handlers) SearchRequests(c *gin.Context) {
	var query SearchRequestsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	requests, err := h.searches.Search(c.Request.Context(), port.ListFilter{
		Stage:       workflow.Stage(query.Stage),
		College:     query.College,
		Department:  query.Department,
		RequesterID: query.Requester,
		Text:        query.Q,
		Limit:       query.Limit,
		Offset:      query.Offset,
	})
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	results := make([]RequestResponse, 0, len(requests))
	for _, request := range requests {
		results = append(results, toRequestResponse(request))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    results,
	})
}

// PendingRequests handles GET /api/requests/pending. It lists the requests
// currently awaiting action by the given role.
func (h *Handlers) PendingRequests(c *gin.Context) {
	role := workflow.Role(c.Query("role"))

	requests, err := h.searches.PendingForRole(c.Request.Context(), role)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	results := make([]RequestResponse, 0, len(requests))
	for _, request := range requests {
		results = append(results, toRequestResponse(request))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    results,
	})
}

// ListNotifications handles GET /api/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	unreadOnly := c.Query("unread") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	notifications, err := h.notifications.ListForUser(c.Request.Context(), actorID, unreadOnly, limit)
	if err != nil {
		h.logger.Error("Failed to list notifications", "actor_id", actorID, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve notifications",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    notifications,
	})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	if _, ok := h.actorID(c); !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid notification id",
		})
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to mark notification read", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to mark notification read",
		})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	if err := h.notifications.MarkAllRead(c.Request.Context(), actorID); err != nil {
		h.logger.Error("Failed to mark notifications read", "actor_id", actorID, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to mark notifications read",
		})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// requestID validates the :id path parameter, failing the request if malformed
func (h *Handlers) requestID(c *gin.Context) (string, bool) {
	requestID := c.Param("id")
	if err := utils.ValidateRequestID(requestID); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   err.Error(),
		})
		return "", false
	}
	return requestID, true
}

// actorID extracts the caller identity, failing the request if absent
func (h *Handlers) actorID(c *gin.Context) (string, bool) {
	actorID := c.GetHeader(actorHeader)
	if actorID == "" {
		c.JSON(http.StatusUnauthorized, Response{
			Success: false,
			Error:   "missing " + actorHeader + " header",
		})
		return "", false
	}
	return actorID, true
}

// writeEngineError maps typed workflow errors to HTTP status codes
func (h *Handlers) writeEngineError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, workflow.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrUnauthorizedAction):
		status = http.StatusForbidden
	case errors.Is(err, workflow.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrConcurrentModification):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrIdExhaustion):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request handling failed", "error", err)
		c.JSON(status, Response{
			Success: false,
			Error:   "internal error",
		})
		return
	}

	c.JSON(status, Response{
		Success: false,
		Error:   err.Error(),
	})
}

// toRequestResponse converts the domain entity to its API shape
func toRequestResponse(request *entity.Request) RequestResponse {
	resp := RequestResponse{
		RequestID:    request.RequestID,
		Title:        request.Title,
		Description:  request.Description,
		College:      request.College,
		Department:   request.Department,
		RequesterID:  request.RequesterID,
		Stage:        request.Stage.String(),
		Version:      request.Version,
		PendingQuery: request.PendingQuery,
		QueryLevel:   request.QueryLevel.String(),
		CreatedAt:    request.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    request.UpdatedAt.Format(time.RFC3339),
	}

	for _, role := range request.ParallelApprovals.Sorted() {
		resp.ParallelApprovals = append(resp.ParallelApprovals, role.String())
	}

	return resp
}

// toHistoryResponse converts one audit entry to its API shape
func toHistoryResponse(entry *entity.HistoryEntry) HistoryEntryResponse {
	return HistoryEntryResponse{
		ActorID:   entry.ActorID,
		ActorRole: entry.ActorRole.String(),
		Action:    entry.Action.String(),
		Notes:     entry.Notes,
		Timestamp: entry.Timestamp.Format(time.RFC3339),
	}
}
