package persona

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wanderplan/wanderplan/internal/api"
	"github.com/wanderplan/wanderplan/internal/types"
)

// Handler handles HTTP requests for persona onboarding and lookup.
type Handler struct {
	personaService Service
	logger         *slog.Logger
}

// NewHandler creates a new persona handler instance.
func NewHandler(personaService Service, logger *slog.Logger) *Handler {
	return &Handler{
		personaService: personaService,
		logger:         logger,
	}
}

// CreatePersona handles POST /personas.
func (h *Handler) CreatePersona(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "CreatePersona"))

	var params types.CreatePersonaParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.personaService.CreatePersona(ctx, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create persona", slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusForError(err), err.Error())
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, p)
}

// GetPersona handles GET /personas/{personaID}.
func (h *Handler) GetPersona(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetPersona"))

	id, err := uuid.Parse(chi.URLParam(r, "personaID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid persona ID")
		return
	}

	p, err := h.personaService.GetPersona(ctx, id)
	if err != nil {
		l.WarnContext(ctx, "Failed to fetch persona", slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusForError(err), err.Error())
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, p)
}

// GetLatestForUser handles GET /users/{userID}/persona.
func (h *Handler) GetLatestForUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetLatestForUser"))

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid user ID")
		return
	}

	p, err := h.personaService.GetLatestForUser(ctx, userID)
	if err != nil {
		l.WarnContext(ctx, "Failed to fetch latest persona", slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusForError(err), fmt.Sprintf("no persona for user: %s", err))
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, p)
}
