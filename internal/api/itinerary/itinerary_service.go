package itinerary

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
	"golang.org/x/sync/errgroup"

	"github.com/wanderplan/wanderplan/app/observability/metrics"
	"github.com/wanderplan/wanderplan/internal/api/destination"
	"github.com/wanderplan/wanderplan/internal/api/hotel"
	"github.com/wanderplan/wanderplan/internal/types"
)

// Generator produces free-form text from a prompt. Satisfied by the hosted
// model client; tests substitute a deterministic stub.
type Generator interface {
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
	ModelID() string
}

// GenerateParams carries the confirmed trip context into generation.
type GenerateParams struct {
	Persona       *types.Persona
	DestinationID uuid.UUID
	HotelID       *uuid.UUID
	Dates         types.DateRange
}

var _ Service = (*ServiceImpl)(nil)

// Service assembles and persists day-by-day itineraries.
type Service interface {
	// Generate produces a structurally valid itinerary for the trip context.
	// A malformed model response triggers exactly one strict-format retry.
	Generate(ctx context.Context, params GenerateParams) (*types.Itinerary, error)
	// Save persists a generated itinerary and returns its durable ID.
	Save(ctx context.Context, userID uuid.UUID, it *types.Itinerary) (uuid.UUID, error)
	// Get loads a saved itinerary.
	Get(ctx context.Context, id uuid.UUID) (*types.Itinerary, error)
	// ListForUser returns a user's saved itineraries, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]types.Itinerary, error)
}

// ServiceImpl provides the implementation for Service.
type ServiceImpl struct {
	logger          *slog.Logger
	generator       Generator
	destinationRepo destination.Repository
	hotelRepo       hotel.Repository
	repo            Repository
}

func NewServiceImpl(
	generator Generator,
	destinationRepo destination.Repository,
	hotelRepo hotel.Repository,
	repo Repository,
	logger *slog.Logger,
) *ServiceImpl {
	return &ServiceImpl{
		logger:          logger,
		generator:       generator,
		destinationRepo: destinationRepo,
		hotelRepo:       hotelRepo,
		repo:            repo,
	}
}

// Generate loads the destination and hotel records, prompts the model and
// validates the structure of its answer. The first malformed response is
// retried once with stricter format instructions; the second one fails with
// ErrMalformedOutput.
func (s *ServiceImpl) Generate(ctx context.Context, params GenerateParams) (*types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "Generate", trace.WithAttributes(
		attribute.String("destination.id", params.DestinationID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Generate"), slog.String("destinationID", params.DestinationID.String()))

	if err := params.Dates.Validate(time.Now()); err != nil {
		span.SetStatus(codes.Error, "Invalid date range")
		return nil, err
	}

	var dest *types.CandidateResult
	var stay *types.CandidateResult
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dest, err = s.destinationRepo.GetDestination(gCtx, params.DestinationID)
		return err
	})
	if params.HotelID != nil {
		hotelID := *params.HotelID
		g.Go(func() error {
			var err error
			stay, err = s.hotelRepo.GetHotel(gCtx, hotelID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		l.ErrorContext(ctx, "Failed to load trip context", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load trip context")
		return nil, err
	}

	prompt := buildItineraryPrompt(params.Persona, dest, stay, params.Dates)
	expectedDays := params.Dates.Days()

	m := metrics.Get()
	start := time.Now()
	m.GenerationRequestsTotal.Add(ctx, 1)

	raw, err := s.generator.GenerateCompletion(ctx, prompt)
	if err != nil {
		m.GenerationDurationSeconds.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("status", "unavailable")))
		l.ErrorContext(ctx, "Generation call failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Generation unavailable")
		return nil, fmt.Errorf("%w: %s", types.ErrGenerationUnavailable, err)
	}

	retried := false
	days, parseErr := parseGeneratedPlan(raw, expectedDays)
	if parseErr != nil {
		retried = true
		m.GenerationRetriesTotal.Add(ctx, 1)
		l.WarnContext(ctx, "Malformed generation output, retrying once",
			slog.Any("error", parseErr), slog.Int("expected_days", expectedDays))

		raw, err = s.generator.GenerateCompletion(ctx, buildStrictRetryPrompt(prompt, parseErr))
		if err != nil {
			m.GenerationDurationSeconds.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(attribute.String("status", "unavailable")))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Generation unavailable on retry")
			return nil, fmt.Errorf("%w: %s", types.ErrGenerationUnavailable, err)
		}
		days, parseErr = parseGeneratedPlan(raw, expectedDays)
		if parseErr != nil {
			m.GenerationDurationSeconds.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(attribute.String("status", "malformed")))
			l.ErrorContext(ctx, "Generation output malformed after retry", slog.Any("error", parseErr))
			span.RecordError(parseErr)
			span.SetStatus(codes.Error, "Malformed output after retry")
			return nil, fmt.Errorf("%w: %s", types.ErrMalformedOutput, parseErr)
		}
	}
	m.GenerationDurationSeconds.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("status", "ok")))

	it := &types.Itinerary{
		ID:              uuid.New(),
		DestinationID:   dest.ID,
		DestinationName: dest.Name,
		Dates:           params.Dates,
		Days:            days,
		Meta: types.GenerationMeta{
			ModelID:       s.generator.ModelID(),
			PromptVersion: promptVersion,
			Retried:       retried,
		},
		CreatedAt: time.Now(),
	}
	if stay != nil {
		hotelID := stay.ID
		it.HotelID = &hotelID
		it.HotelName = stay.Name
	}

	l.InfoContext(ctx, "Itinerary generated",
		slog.Int("days", len(days)), slog.Bool("retried", retried))
	span.SetAttributes(attribute.Int("itinerary.days", len(days)), attribute.Bool("generation.retried", retried))
	span.SetStatus(codes.Ok, "Itinerary generated")
	return it, nil
}

// Save persists a generated itinerary.
func (s *ServiceImpl) Save(ctx context.Context, userID uuid.UUID, it *types.Itinerary) (uuid.UUID, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "Save", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	if it == nil || len(it.Days) == 0 {
		span.SetStatus(codes.Error, "Nothing to save")
		return uuid.Nil, fmt.Errorf("%w: no itinerary to save", types.ErrValidation)
	}

	id, err := s.repo.SaveItinerary(ctx, userID, it)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save itinerary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save itinerary")
		return uuid.Nil, fmt.Errorf("%w: %s", types.ErrPersistence, err)
	}

	span.SetStatus(codes.Ok, "Itinerary saved")
	return id, nil
}

// Get loads a saved itinerary.
func (s *ServiceImpl) Get(ctx context.Context, id uuid.UUID) (*types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "Get", trace.WithAttributes(
		attribute.String("itinerary.id", id.String()),
	))
	defer span.End()

	it, err := s.repo.GetItinerary(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load itinerary")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Itinerary loaded")
	return it, nil
}

// ListForUser returns a user's saved itineraries, newest first.
func (s *ServiceImpl) ListForUser(ctx context.Context, userID uuid.UUID) ([]types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "ListForUser", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	if userID == uuid.Nil {
		span.SetStatus(codes.Error, "Missing user ID")
		return nil, fmt.Errorf("%w: user_id is required", types.ErrValidation)
	}

	results, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list itineraries")
		return nil, fmt.Errorf("%w: %s", types.ErrPersistence, err)
	}

	span.SetAttributes(attribute.Int("itineraries.count", len(results)))
	span.SetStatus(codes.Ok, "Itineraries listed")
	return results, nil
}
