package broker

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brainmap/realtime/internal/domain"
	"github.com/brainmap/realtime/internal/middleware"
	"github.com/brainmap/realtime/pkg/response"
	"github.com/brainmap/realtime/pkg/validator"
)

type NotificationHandler struct {
	service *Service
	logger  *zap.Logger
}

func NewNotificationHandler(service *Service, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{service: service, logger: logger}
}

func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	notifs, err := h.service.List(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list notifications", zap.Error(err))
		response.InternalError(w, "failed to fetch notifications")
		return
	}

	response.OK(w, notifs)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	id := chi.URLParam(r, "id")
	n, err := h.service.MarkRead(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			response.NotFound(w, "notification not found")
			return
		}
		h.logger.Error("failed to mark notification read", zap.Error(err))
		response.InternalError(w, "failed to update notification")
		return
	}

	response.OK(w, n)
}

func (h *NotificationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	n, err := h.service.Respond(r.Context(), userID, id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidStatus):
			response.BadRequest(w, "invalid status")
		case errors.Is(err, domain.ErrNotificationNotFound):
			response.NotFound(w, "notification not found")
		default:
			h.logger.Error("failed to record decision", zap.Error(err))
			response.InternalError(w, "failed to update notification")
		}
		return
	}

	response.OK(w, n)
}

// Publish accepts an internally-produced notification and delivers it.
// Exposed for ops tooling and integration tests.
func (h *NotificationHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uuid.UUID  `json:"user_id"`
		Type   string     `json:"type"`
		Title  string     `json:"title"`
		Body   string     `json:"body"`
		Data   domain.Map `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.ValidatePublish(req.UserID, req.Title); errs.HasErrors() {
		response.BadRequest(w, errs.Error())
		return
	}

	n := &domain.Notification{
		UserID: req.UserID,
		Type:   req.Type,
		Title:  req.Title,
		Body:   req.Body,
		Data:   req.Data,
	}
	if n.Type == "" {
		n.Type = domain.TypeAlert
	}

	if err := h.service.Publish(r.Context(), n); err != nil {
		h.logger.Error("failed to publish notification", zap.Error(err))
		response.InternalError(w, "failed to publish notification")
		return
	}

	response.Created(w, n)
}
