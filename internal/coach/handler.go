package coach

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/epochish/klarita/internal/api"
	"github.com/epochish/klarita/internal/auth"
)

// Handler serves the stuck coach endpoint.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

// NewHandler creates a coach handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// Stuck runs one coaching turn for the caller.
func (h *Handler) Stuck(w http.ResponseWriter, r *http.Request) {
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

	var req StuckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	api.JSON(w, http.StatusOK, h.svc.Respond(r.Context(), userID, req))
}
