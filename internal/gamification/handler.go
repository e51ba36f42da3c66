package gamification

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/epochish/klarita/internal/api"
	"github.com/epochish/klarita/internal/auth"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid task ID"))
		return
	}

	// The body is optional: completing without reporting actual time is fine.
	var req CompleteTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	completion, err := h.svc.CompleteTask(r.Context(), taskID, userID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyCompleted):
			api.HandleError(w, api.ErrTaskAlreadyCompleted)
		case errors.Is(err, ErrUpdateConflict):
			api.HandleError(w, api.ErrUpdateConflict)
		default:
			slog.Error("completing task", "error", err, "task_id", taskID)
			api.HandleError(w, api.ErrInternalServer)
		}
		return
	}
	if completion == nil {
		api.HandleError(w, api.NewNotFoundError("task not found"))
		return
	}

	api.JSON(w, http.StatusOK, completion.Result)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	profile, err := h.svc.GetProfile(r.Context(), userID)
	if err != nil {
		slog.Error("fetching gamification profile", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, profile)
}
