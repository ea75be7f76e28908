package tripsession

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderplan/wanderplan/app/observability/metrics"
	"github.com/wanderplan/wanderplan/internal/api/itinerary"
	"github.com/wanderplan/wanderplan/internal/api/persona"
	"github.com/wanderplan/wanderplan/internal/api/retrieval"
	"github.com/wanderplan/wanderplan/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service drives a trip session through the planning stages. Every transition
// is guarded; a failed guard leaves the session exactly as it was.
type Service interface {
	StartSession(ctx context.Context, userID uuid.UUID) (*types.TripSession, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*types.TripSession, error)
	ConfirmPersona(ctx context.Context, sessionID, personaID uuid.UUID) (*types.TripSession, error)
	ChooseMode(ctx context.Context, sessionID uuid.UUID, mode types.SearchMode) (*types.TripSession, error)
	SearchCandidates(ctx context.Context, sessionID uuid.UUID, qc types.QueryContext) ([]types.CandidateResult, error)
	SelectDestination(ctx context.Context, sessionID, candidateID uuid.UUID) (*types.TripSession, error)
	SubmitDates(ctx context.Context, sessionID uuid.UUID, dates types.DateRange) (*types.TripSession, error)
	ListHotels(ctx context.Context, sessionID uuid.UUID) ([]types.CandidateResult, error)
	ChooseHotel(ctx context.Context, sessionID, hotelID uuid.UUID) (*types.TripSession, error)
	SkipHotel(ctx context.Context, sessionID uuid.UUID) (*types.TripSession, error)
	GenerateItinerary(ctx context.Context, sessionID uuid.UUID) (*types.TripSession, error)
	SaveItinerary(ctx context.Context, sessionID uuid.UUID) (*types.TripSession, error)
	Reset(ctx context.Context, sessionID uuid.UUID, full bool) (*types.TripSession, error)
}

// ServiceImpl provides the implementation for Service.
type ServiceImpl struct {
	logger           *slog.Logger
	store            *Store
	personaService   persona.Service
	retrievalService retrieval.Service
	itineraryService itinerary.Service
	candidateLimit   int
	now              func() time.Time
}

func NewServiceImpl(
	store *Store,
	personaService persona.Service,
	retrievalService retrieval.Service,
	itineraryService itinerary.Service,
	candidateLimit int,
	logger *slog.Logger,
) *ServiceImpl {
	if candidateLimit <= 0 {
		candidateLimit = 10
	}
	return &ServiceImpl{
		logger:           logger,
		store:            store,
		personaService:   personaService,
		retrievalService: retrievalService,
		itineraryService: itineraryService,
		candidateLimit:   candidateLimit,
		now:              time.Now,
	}
}

// StartSession creates a fresh session in the persona stage.
func (s *ServiceImpl) StartSession(ctx context.Context, userID uuid.UUID) (*types.TripSession, error) {
	ctx, span := otel.Tracer("TripSessionService").Start(ctx, "StartSession", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	if userID == uuid.Nil {
		span.SetStatus(codes.Error, "Missing user ID")
		return nil, fmt.Errorf("%w: user_id is required", types.ErrValidation)
	}

	now := s.now()
	session := &types.TripSession{
		ID:        uuid.New(),
		UserID:    userID,
		Stage:     types.StagePersonaPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.store.Put(session)

	s.logger.InfoContext(ctx, "Trip session started",
		slog.String("sessionID", session.ID.String()), slog.String("userID", userID.String()))
	span.SetStatus(codes.Ok, "Session started")
	return session.Snapshot(), nil
}

// GetSession returns the current session snapshot for rendering.
func (s *ServiceImpl) GetSession(_ context.Context, sessionID uuid.UUID) (*types.TripSession, error) {
	return s.store.Peek(sessionID)
}

// ConfirmPersona attaches a persona to the session and advances to mode
// selection. The persona must carry at least one preference attribute.
func (s *ServiceImpl) ConfirmPersona(ctx context.Context, sessionID, personaID uuid.UUID) (*types.TripSession, error) {
	ctx, span := otel.Tracer("TripSessionService").Start(ctx, "ConfirmPersona")
	defer span.End()

	session, release, err := s.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if session.Stage != types.StagePersonaPending {
		return nil, s.reject(ctx, session, "persona_confirmed",
			fmt.Sprintf("persona can only be confirmed in stage %s, session is in %s", types.StagePersonaPending, session.Stage))
	}

	p, err := s.personaService.GetPersona(ctx, personaID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Persona lookup failed")
		return nil, err
	}
	if !p.HasPreferences() {
		return nil, s.reject(ctx, session, "persona_confirmed", "persona has no preference attributes")
	}

	session.Persona = p
	s.advance(ctx, session, "persona_confirmed", types.StageModeSelection)
	span.SetStatus(codes.Ok, "Persona confirmed")
	return session.Snapshot(), nil
}

// ChooseMode fixes the retrieval strategy for the session and advances to
// destination selection.
func (s *ServiceImpl) ChooseMode(ctx context.Context, sessionID uuid.UUID, mode types.SearchMode) (*types.TripSession, error) {
	ctx, span := otel.Tracer("TripSessionService").Start(ctx, "ChooseMode", trace.WithAttributes(
		attribute.String("search.mode", string(mode)),
	))
	defer span.End()

	session, release, err := s.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if session.Stage != types.StageModeSelection {
		return nil, s.reject(ctx, session, "mode_chosen",
			fmt.Sprintf("mode can only be chosen in stage %s, session is in %s", types.StageModeSelection, session.Stage))
	}
	if mode != types.SearchModeFilter && mode != types.SearchModeVector {
		return nil, s.reject(ctx, session, "mode_chosen", fmt.Sprintf("unknown search mode %q", mode))
	}

	session.Mode = mode
	s.advance(ctx, session, "mode_chosen", types.StageDestinationSelection)
	span.SetStatus(codes.Ok, "Mode chosen")
	return session.Snapshot(), nil
}

// SearchCandidates runs retrieval for the session's query context and records
// the shown result set. An unchanged query context reuses the candidates
// cached on the session instead of calling retrieval again. Searching again
// from the date stage steps the session back to destination selection.
func (s *ServiceImpl) SearchCandidates(ctx context.Context, sessionID uuid.UUID, qc types.QueryContext) ([]types.CandidateResult, error) {
	ctx, span := otel.Tracer("TripSessionService").Start(ctx, "SearchCandidates")
	defer span.End()

	session, release, err := s.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if session.Stage != types.StageDestinationSelection && session.Stage != types.StageDateSelection {
		return nil, s.reject(ctx, session, "candidates_searched",
			fmt.Sprintf("candidates cannot be searched in stage %s", session.Stage))
	}

	qc, err = s.applyModePolicy(session, qc)
	if err != nil {
		return nil, s.reject(ctx, session, "candidates_searched", err.Error())
	}

	stepBack := session.Stage == types.StageDateSelection

	hash := qc.Hash()
	if hash != "" && hash == session.QueryHash && session.ShownCandidates != nil {
		if stepBack {
			s.stepBackToDestinations(ctx, session)
		}
		s.logger.DebugContext(ctx, "Reusing cached candidates",
			slog.String("sessionID", session.ID.String()), slog.Int("count", len(session.ShownCandidates)))
		span.SetAttributes(attribute.Bool("candidates.cached", true))
		span.SetStatus(codes.Ok, "Cached candidates reused")
		return session.ShownCandidates, nil
	}

	results, err := s.retrievalService.Search(ctx, qc, s.candidateLimit)
	if err != nil {
		// A failed search is not a transition: the session keeps its stage,
		// its selections, and its previous candidates.
		span.RecordError(err)
		span.SetStatus(codes.Error, "Retrieval failed")
		return nil, err
	}

	if stepBack {
		s.stepBackToDestinations(ctx, session)
	}
	session.Query = &qc
	session.QueryHash = hash
	session.ShownCandidates = results

	span.SetAttributes(attribute.Int("candidates.count", len(results)))
	span.SetStatus(codes.Ok, "Candidates searched")
	return results, nil
}

// stepBackToDestinations invalidates the downstream selections when a search
// re-enters from the date stage. It runs only after the new result set is in
// hand, so a failed search cannot leave the session half stepped back.
func (s *ServiceImpl) stepBackToDestinations(ctx context.Context, session *types.TripSession) {
	session.SelectedDestination = nil
	session.Dates = nil
	s.advance(ctx, session, "search_reentered", types.StageDestinationSelection)
}

// applyModePolicy checks the query context against the chosen mode. A filter
// query carrying no constraints at all cannot rank anything meaningfully, so
// the machine switches that call to a vector query built from the persona.
// The retrieval engine itself never falls back between modes.
func (s *ServiceImpl) applyModePolicy(session *types.TripSession, qc types.QueryContext) (types.QueryContext, error) {
	mode, err := qc.Mode()
	if err != nil {
		return qc, err
	}
	if mode != session.Mode {
		return qc, fmt.Errorf("session mode is %s, query is %s", session.Mode, mode)
	}
	if mode == types.SearchModeFilter &&
		qc.Filter.HardFilterCount() == 0 && qc.Filter.SoftFilterCount() == 0 {
		if session.Persona == nil {
			return qc, fmt.Errorf("filter query has no constraints and no persona to fall back on")
		}
		return types.QueryContext{Vector: &types.VectorQuery{PersonaID: session.Persona.ID}}, nil
	}
	return qc, nil
}

// SelectDestination picks a candidate out of the last shown result set.
func (s *ServiceImpl) SelectDestination(ctx context.Context, sessionID, candidateID uuid.UUID) (*types.TripSession, error) {
	ctx, span := otel.Tracer("TripSessionService").Start(ctx, "SelectDestination", trace.WithAttributes(
		attribute.String("candidate.id", candidateID.String()),
	))
	defer span.End()

	session, release, err := s.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if session.Stage != types.StageDestinationSelection {
		return nil, s.reject(ctx, session, "candidate_selected",
			fmt.Sprintf("destination can only be selected in stage %s, session is in %s", types.StageDestinationSelection, session.Stage))
	}
	candidate, shown := session.CandidateShown(candidateID)
	if !shown {
		return nil, s.reject(ctx, session, "candidate_selected",
			fmt.Sprintf("candidate %s was not in the last returned result set", candidateID))
	}
	if candidate.Kind != types.CandidateKindDestination {
		return nil, s.reject(ctx, session, "candidate_selected",
			fmt.Sprintf("candidate %s is not a destination", candidateID))
	}

	session.SelectedDestination = candidate
	s.advance(ctx, session, "candidate_selected", types.StageDateSelection)
	span.SetStatus(codes.Ok, "Destination selected")
	return session.Snapshot(), nil
}

// SubmitDates validates the trip window and advances to hotel selection.
func (s *ServiceImpl) SubmitDates(ctx context.Context, sessionID uuid.UUID, dates types.DateRange) (*types.TripSession, error) {
	ctx, span := otel.Tracer("TripSessionService").Start(ctx, "SubmitDates")
	defer span.End()

	session, release, err := s.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if session.Stage != types.StageDateSelection {
		return nil, s.reject(ctx, session, "dates_submitted",
			fmt.Sprintf("dates can only be submitted in stage %s, session is in %s", types.StageDateSelection, session.Stage))
	}
	if err := dates.Validate(s.now()); err != nil {
		return nil, s.reject(ctx, session, "dates_submitted", err.Error())
	}

	session.Dates = &dates
	s.advance(ctx, session, "dates_submitted", types.StageHotelSelection)
	span.SetStatus(codes.Ok, "Dates submitted")
	return session.Snapshot(), nil
}

// ListHotels retrieves hotels at the selected destination and records them as
// the shown result set for the hotel stage.
func (s *ServiceImpl) ListHotels(ctx context.Context, sessionID uuid.UUID) ([]types.CandidateResult, error) {
	ctx, span := otel.Tracer("TripSessionService").Start(ctx, "ListHotels")
	defer span.End()

	session, release, err := s.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if session.Stage != types.StageHotelSelection {
		return nil, s.reject(ctx, session, "hotels_listed",
			fmt.Sprintf("hotels can only be listed in stage %s, session is in %s", types.StageHotelSelection, session.Stage))
	}

	var budget types.BudgetTier
	if session.Persona != nil {
		budget = session.Persona.BudgetTier
	}
	hotels, err := s.retrievalService.SearchHotels(ctx, session.SelectedDestination.ID, budget, s.candidateLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hotel retrieval failed")
		return nil, err
	}

	session.ShownCandidates = hotels
	span.SetAttributes(attribute.Int("hotels.count", len(hotels)))
	span.SetStatus(codes.Ok, "Hotels listed")
	return hotels, nil
}

// ChooseHotel picks a hotel out of the last shown result set and advances to
// itinerary review.
func (s *ServiceImpl) ChooseHotel(ctx context.Context, sessionID, hotelID uuid.UUID) (*types.TripSession, error) {
	ctx, span := otel.Tracer("TripSessionService").Start(ctx, "ChooseHotel", trace.WithAttributes(
		attribute.String("hotel.id", hotelID.String()),
	))
	defer span.End()

	session, release, err := s.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if session.Stage != types.StageHotelSelection {
		return nil, s.reject(ctx, session, "hotel_chosen",
			fmt.Sprintf("hotel can only be chosen in stage %s, session is in %s", types.StageHotelSelection, session.Stage))
	}
	candidate, shown := session.CandidateShown(hotelID)
	if !shown || candidate.Kind != types.CandidateKindHotel {
		return nil, s.reject(ctx, session, "hotel_chosen",
			fmt.Sprintf("hotel %s was not in the last returned result set", hotelID))
	}

	session.SelectedHotel = candidate
	session.HotelSkipped = false
	s.advance(ctx, session, "hotel_chosen", types.StageItineraryReview)
	span.SetStatus(codes.Ok, "Hotel chosen")
	return session.Snapshot(), nil
}

// SkipHotel advances to itinerary review without a hotel.
func (s *ServiceImpl) SkipHotel(ctx context.Context, sessionID uuid.UUID) (*types.TripSession, error) {
	ctx, span := otel.Tracer("TripSessionService").Start(ctx, "SkipHotel")
	defer span.End()

	session, release, err := s.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if session.Stage != types.StageHotelSelection {
		return nil, s.reject(ctx, session, "hotel_skipped",
			fmt.Sprintf("hotel can only be skipped in stage %s, session is in %s", types.StageHotelSelection, session.Stage))
	}

	session.SelectedHotel = nil
	session.HotelSkipped = true
	s.advance(ctx, session, "hotel_skipped", types.StageItineraryReview)
	span.SetStatus(codes.Ok, "Hotel skipped")
	return session.Snapshot(), nil
}

// GenerateItinerary assembles the day-by-day plan for the confirmed trip.
// The session stays in review; generation failures leave it untouched so the
// caller can simply try again.
func (s *ServiceImpl) GenerateItinerary(ctx context.Context, sessionID uuid.UUID) (*types.TripSession, error) {
	ctx, span := otel.Tracer("TripSessionService").Start(ctx, "GenerateItinerary")
	defer span.End()

	session, release, err := s.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if session.Stage != types.StageItineraryReview {
		return nil, s.reject(ctx, session, "generate_requested",
			fmt.Sprintf("itinerary can only be generated in stage %s, session is in %s", types.StageItineraryReview, session.Stage))
	}
	if session.SelectedDestination == nil || session.Dates == nil {
		return nil, s.reject(ctx, session, "generate_requested", "destination and dates are required before generation")
	}

	params := itinerary.GenerateParams{
		Persona:       session.Persona,
		DestinationID: session.SelectedDestination.ID,
		Dates:         *session.Dates,
	}
	if session.SelectedHotel != nil {
		hotelID := session.SelectedHotel.ID
		params.HotelID = &hotelID
	}

	it, err := s.itineraryService.Generate(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Generation failed")
		return nil, err
	}

	session.Itinerary = it
	s.advance(ctx, session, "generate_requested", types.StageItineraryReview)
	span.SetStatus(codes.Ok, "Itinerary generated")
	return session.Snapshot(), nil
}

// SaveItinerary persists the generated plan and moves the session to its
// terminal stage. On a persistence failure the in-memory itinerary survives
// so saving can be retried without regenerating.
func (s *ServiceImpl) SaveItinerary(ctx context.Context, sessionID uuid.UUID) (*types.TripSession, error) {
	ctx, span := otel.Tracer("TripSessionService").Start(ctx, "SaveItinerary")
	defer span.End()

	session, release, err := s.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if session.Stage != types.StageItineraryReview {
		return nil, s.reject(ctx, session, "save_requested",
			fmt.Sprintf("itinerary can only be saved in stage %s, session is in %s", types.StageItineraryReview, session.Stage))
	}
	if session.Itinerary == nil {
		return nil, s.reject(ctx, session, "save_requested", "no itinerary has been generated yet")
	}

	id, err := s.itineraryService.Save(ctx, session.UserID, session.Itinerary)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Save failed")
		return nil, err
	}

	session.SavedItineraryID = &id
	s.advance(ctx, session, "save_requested", types.StageSaved)
	span.SetStatus(codes.Ok, "Itinerary saved")
	return session.Snapshot(), nil
}

// Reset clears the planning progress. A soft reset keeps the persona and
// returns to mode selection; a full reset returns to a blank persona stage.
func (s *ServiceImpl) Reset(ctx context.Context, sessionID uuid.UUID, full bool) (*types.TripSession, error) {
	ctx, span := otel.Tracer("TripSessionService").Start(ctx, "Reset", trace.WithAttributes(
		attribute.Bool("reset.full", full),
	))
	defer span.End()

	session, release, err := s.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	// A soft reset needs a persona to return to mode selection with; without
	// one it degrades to a full reset.
	if session.Persona == nil {
		full = true
	}

	session.Mode = ""
	session.Query = nil
	session.QueryHash = ""
	session.ShownCandidates = nil
	session.SelectedDestination = nil
	session.Dates = nil
	session.SelectedHotel = nil
	session.HotelSkipped = false
	session.Itinerary = nil
	session.SavedItineraryID = nil

	if full {
		session.Persona = nil
		s.advance(ctx, session, "reset", types.StagePersonaPending)
	} else {
		s.advance(ctx, session, "reset", types.StageModeSelection)
	}

	span.SetStatus(codes.Ok, "Session reset")
	return session.Snapshot(), nil
}

// advance commits an accepted transition.
func (s *ServiceImpl) advance(ctx context.Context, session *types.TripSession, event string, to types.Stage) {
	from := session.Stage
	session.Stage = to
	metrics.Get().SessionTransitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
	s.logger.InfoContext(ctx, "Session transition",
		slog.String("sessionID", session.ID.String()),
		slog.String("event", event),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}

// reject surfaces a failed guard without touching the session.
func (s *ServiceImpl) reject(ctx context.Context, session *types.TripSession, event, reason string) error {
	metrics.Get().GuardRejectionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("stage", string(session.Stage)),
	))
	s.logger.WarnContext(ctx, "Transition rejected",
		slog.String("sessionID", session.ID.String()),
		slog.String("event", event),
		slog.String("stage", string(session.Stage)),
		slog.String("reason", reason),
	)
	return fmt.Errorf("%w: %s", types.ErrValidation, reason)
}
