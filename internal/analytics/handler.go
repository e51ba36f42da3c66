package analytics

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/epochish/klarita/internal/api"
	"github.com/epochish/klarita/internal/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
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

	summary, err := h.svc.Summarize(r.Context(), userID)
	if err != nil {
		slog.Error("building analytics summary", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, summary)
}
