package itinerary

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wanderplan/wanderplan/internal/api"
)

// Handler handles HTTP requests for saved itineraries. Generation and saving
// run through the session flow; this surface only reads what was saved.
type Handler struct {
	itineraryService Service
	logger           *slog.Logger
}

// NewHandler creates a new itinerary handler instance.
func NewHandler(itineraryService Service, logger *slog.Logger) *Handler {
	return &Handler{
		itineraryService: itineraryService,
		logger:           logger,
	}
}

// GetItinerary handles GET /itineraries/{itineraryID}.
func (h *Handler) GetItinerary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "itineraryID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid itinerary ID")
		return
	}

	it, err := h.itineraryService.Get(r.Context(), id)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Itinerary lookup failed",
			slog.String("itineraryID", id.String()), slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusForError(err), err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, it)
}

// ListForUser handles GET /users/{userID}/itineraries.
func (h *Handler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid user ID")
		return
	}

	results, err := h.itineraryService.ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Itinerary listing failed",
			slog.String("userID", userID.String()), slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusForError(err), err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{"itineraries": results})
}
