package breakdown

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

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

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req CreateBreakdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	session, err := h.svc.CreateBreakdown(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, ErrGenerationFailed) {
			slog.Warn("breakdown generation failed", "error", err, "user_id", claims.UserID)
			api.HandleError(w, api.ErrGenerationFailed)
			return
		}
		slog.Error("creating breakdown", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, session)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
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

	page := 1
	pageSize := 20
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	sessions, total, err := h.svc.ListSessions(r.Context(), userID, pageSize, (page-1)*pageSize)
	if err != nil {
		slog.Error("listing breakdowns", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, sessions, int64(total), page, pageSize)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	if session == nil {
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, session)
}

func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	if session == nil {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	var req SubmitFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	fb, err := h.svc.SubmitFeedback(r.Context(), session, req)
	if err != nil {
		if errors.Is(err, ErrFeedbackExists) {
			api.HandleError(w, api.ErrFeedbackAlreadySubmitted)
			return
		}
		slog.Error("submitting feedback", "error", err, "session_id", session.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, fb)
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	task, err := h.svc.UpdateTask(r.Context(), taskID, userID, req)
	if err != nil {
		slog.Error("updating task", "error", err, "task_id", taskID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if task == nil {
		api.HandleError(w, api.NewNotFoundError("task not found"))
		return
	}

	api.JSON(w, http.StatusOK, task)
}

func (h *Handler) ReorderTasks(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	if session == nil {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	var req ReorderTasksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	if err := h.svc.ReorderTasks(r.Context(), session.ID, session.UserID, req); err != nil {
		if errors.Is(err, ErrTaskSetMismatch) {
			api.HandleError(w, api.NewValidationError(err.Error()))
			return
		}
		slog.Error("reordering tasks", "error", err, "session_id", session.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	updated, err := h.svc.GetSession(r.Context(), session.ID)
	if err != nil || updated == nil {
		slog.Error("fetching reordered session", "error", err, "session_id", session.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, updated)
}

func (h *Handler) MergeTasks(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	if session == nil {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	var req MergeTasksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	merged, err := h.svc.MergeTasks(r.Context(), session.ID, session.UserID, req)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrTaskNotPending) {
			api.HandleError(w, api.NewValidationError(err.Error()))
			return
		}
		slog.Error("merging tasks", "error", err, "session_id", session.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, merged)
}

// OwnershipMiddleware verifies session ownership before allowing access.
func (h *Handler) OwnershipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetUserClaims(r.Context())
		if claims == nil {
			api.HandleError(w, api.ErrUnauthorized)
			return
		}

		sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("invalid session ID"))
			return
		}

		session, err := h.svc.GetSession(r.Context(), sessionID)
		if err != nil {
			slog.Error("fetching session for ownership check", "error", err)
			api.HandleError(w, api.ErrInternalServer)
			return
		}
		if session == nil {
			api.HandleError(w, api.NewNotFoundError("session not found"))
			return
		}

		// CRITICAL: Ownership check
		if session.UserID.String() != claims.UserID {
			slog.Warn("ownership violation attempt",
				"session_id", sessionID,
				"session_owner", session.UserID,
				"requester", claims.UserID,
				"path", r.URL.Path,
				"method", r.Method,
			)
			api.HandleError(w, api.ErrOwnershipViolation)
			return
		}

		ctx := SetSessionInContext(r.Context(), session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
