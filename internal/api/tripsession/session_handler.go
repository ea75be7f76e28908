package tripsession

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wanderplan/wanderplan/internal/api"
	"github.com/wanderplan/wanderplan/internal/types"
)

// Handler handles HTTP requests for trip sessions.
type Handler struct {
	sessionService Service
	logger         *slog.Logger
}

// NewHandler creates a new trip session handler instance.
func NewHandler(sessionService Service, logger *slog.Logger) *Handler {
	return &Handler{
		sessionService: sessionService,
		logger:         logger,
	}
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid session ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, handler string, data interface{}, err error) {
	if err != nil {
		h.logger.WarnContext(r.Context(), "Session request failed",
			slog.String("handler", handler), slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusForError(err), err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, data)
}

// StartSession handles POST /sessions.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := api.DecodeJSONBody(w, r, &body); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.sessionService.StartSession(r.Context(), body.UserID)
	if err != nil {
		h.respond(w, r, "StartSession", nil, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, session)
}

// GetSession handles GET /sessions/{sessionID}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	session, err := h.sessionService.GetSession(r.Context(), id)
	h.respond(w, r, "GetSession", session, err)
}

// ConfirmPersona handles POST /sessions/{sessionID}/persona.
func (h *Handler) ConfirmPersona(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var body struct {
		PersonaID uuid.UUID `json:"persona_id"`
	}
	if err := api.DecodeJSONBody(w, r, &body); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := h.sessionService.ConfirmPersona(r.Context(), id, body.PersonaID)
	h.respond(w, r, "ConfirmPersona", session, err)
}

// ChooseMode handles POST /sessions/{sessionID}/mode.
func (h *Handler) ChooseMode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var body struct {
		Mode types.SearchMode `json:"mode"`
	}
	if err := api.DecodeJSONBody(w, r, &body); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := h.sessionService.ChooseMode(r.Context(), id, body.Mode)
	h.respond(w, r, "ChooseMode", session, err)
}

// SearchCandidates handles POST /sessions/{sessionID}/destinations/search.
func (h *Handler) SearchCandidates(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var qc types.QueryContext
	if err := api.DecodeJSONBody(w, r, &qc); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	results, err := h.sessionService.SearchCandidates(r.Context(), id, qc)
	h.respond(w, r, "SearchCandidates", map[string]interface{}{"candidates": results}, err)
}

// SelectDestination handles POST /sessions/{sessionID}/destinations/select.
func (h *Handler) SelectDestination(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var body struct {
		CandidateID uuid.UUID `json:"candidate_id"`
	}
	if err := api.DecodeJSONBody(w, r, &body); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := h.sessionService.SelectDestination(r.Context(), id, body.CandidateID)
	h.respond(w, r, "SelectDestination", session, err)
}

// SubmitDates handles POST /sessions/{sessionID}/dates.
func (h *Handler) SubmitDates(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var dates types.DateRange
	if err := api.DecodeJSONBody(w, r, &dates); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := h.sessionService.SubmitDates(r.Context(), id, dates)
	h.respond(w, r, "SubmitDates", session, err)
}

// ListHotels handles GET /sessions/{sessionID}/hotels.
func (h *Handler) ListHotels(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	hotels, err := h.sessionService.ListHotels(r.Context(), id)
	h.respond(w, r, "ListHotels", map[string]interface{}{"hotels": hotels}, err)
}

// ChooseHotel handles POST /sessions/{sessionID}/hotel.
func (h *Handler) ChooseHotel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var body struct {
		HotelID uuid.UUID `json:"hotel_id"`
	}
	if err := api.DecodeJSONBody(w, r, &body); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := h.sessionService.ChooseHotel(r.Context(), id, body.HotelID)
	h.respond(w, r, "ChooseHotel", session, err)
}

// SkipHotel handles POST /sessions/{sessionID}/hotel/skip.
func (h *Handler) SkipHotel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	session, err := h.sessionService.SkipHotel(r.Context(), id)
	h.respond(w, r, "SkipHotel", session, err)
}

// GenerateItinerary handles POST /sessions/{sessionID}/itinerary.
func (h *Handler) GenerateItinerary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	session, err := h.sessionService.GenerateItinerary(r.Context(), id)
	h.respond(w, r, "GenerateItinerary", session, err)
}

// SaveItinerary handles POST /sessions/{sessionID}/save.
func (h *Handler) SaveItinerary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	session, err := h.sessionService.SaveItinerary(r.Context(), id)
	h.respond(w, r, "SaveItinerary", session, err)
}

// Reset handles POST /sessions/{sessionID}/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var body struct {
		Full bool `json:"full"`
	}
	if err := api.DecodeJSONBody(w, r, &body); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := h.sessionService.Reset(r.Context(), id, body.Full)
	h.respond(w, r, "Reset", session, err)
}
