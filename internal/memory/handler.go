package memory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/epochish/klarita/internal/api"
	"github.com/epochish/klarita/internal/auth"
)

// Handler serves the memory corpus read endpoint.
type Handler struct {
	repo Repository
}

// NewHandler creates a memory handler.
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// List returns the caller's memories, newest first.
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

	memories, err := h.repo.ListByUser(r.Context(), userID, page, pageSize)
	if err != nil {
		slog.Error("listing memories", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	totalCount, err := h.repo.CountByUser(r.Context(), userID)
	if err != nil {
		slog.Error("counting memories", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, memories, totalCount, page, pageSize)
}
