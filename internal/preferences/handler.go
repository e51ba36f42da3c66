package preferences

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/epochish/klarita/internal/api"
	"github.com/epochish/klarita/internal/auth"
)

// Handler serves the preference read and write endpoints.
type Handler struct {
	repo     Repository
	validate *validator.Validate
}

// NewHandler creates a preferences handler.
func NewHandler(repo Repository) *Handler {
	return &Handler{
		repo:     repo,
		validate: validator.New(),
	}
}

// Get returns the caller's preferences, defaults included on first read.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
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

	pref, err := h.repo.GetOrCreate(r.Context(), userID)
	if err != nil {
		slog.Error("loading preferences", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, pref)
}

// Update overwrites the caller's preferences.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req UpdatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	pref, err := h.repo.Update(r.Context(), UserPreference{
		UserID:               userID,
		BreakdownStyle:       req.BreakdownStyle,
		PreferredTaskMinutes: req.PreferredTaskMinutes,
		CommunicationStyle:   req.CommunicationStyle,
	})
	if err != nil {
		slog.Error("updating preferences", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, pref)
}
