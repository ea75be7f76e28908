package persona

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderplan/wanderplan/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service orchestrates persona onboarding and lookup.
type Service interface {
	CreatePersona(ctx context.Context, params types.CreatePersonaParams) (*types.Persona, error)
	GetPersona(ctx context.Context, id uuid.UUID) (*types.Persona, error)
	GetLatestForUser(ctx context.Context, userID uuid.UUID) (*types.Persona, error)
}

// ServiceImpl provides the implementation for Service.
type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
}

func NewServiceImpl(repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

// CreatePersona validates the onboarding input and stores a new persona
// version. At least one preference attribute is required so downstream
// retrieval and generation always have signal to work with.
func (s *ServiceImpl) CreatePersona(ctx context.Context, params types.CreatePersonaParams) (*types.Persona, error) {
	ctx, span := otel.Tracer("PersonaService").Start(ctx, "CreatePersona", trace.WithAttributes(
		attribute.String("user.id", params.UserID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "CreatePersona"), slog.String("userID", params.UserID.String()))

	if params.UserID == uuid.Nil {
		span.SetStatus(codes.Error, "Missing user ID")
		return nil, fmt.Errorf("%w: user_id is required", types.ErrValidation)
	}
	draft := types.Persona{
		TravelerTypes:    params.TravelerTypes,
		BudgetTier:       params.BudgetTier,
		ActivityTags:     params.ActivityTags,
		Pace:             params.Pace,
		PreferredClimate: params.PreferredClimate,
	}
	if !draft.HasPreferences() {
		l.WarnContext(ctx, "Rejected empty persona")
		span.SetStatus(codes.Error, "No preference attributes")
		return nil, fmt.Errorf("%w: persona needs at least one preference attribute", types.ErrValidation)
	}
	if params.BudgetTier != "" {
		if _, err := params.BudgetTier.Value(); err != nil {
			return nil, fmt.Errorf("%w: %s", types.ErrValidation, err)
		}
	}
	if params.Pace != "" {
		if _, err := params.Pace.Value(); err != nil {
			return nil, fmt.Errorf("%w: %s", types.ErrValidation, err)
		}
	}
	if params.PreferredClimate != "" {
		if _, err := params.PreferredClimate.Value(); err != nil {
			return nil, fmt.Errorf("%w: %s", types.ErrValidation, err)
		}
	}

	p, err := s.repo.CreatePersona(ctx, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create persona", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create persona")
		return nil, fmt.Errorf("%w: %s", types.ErrPersistence, err)
	}

	l.InfoContext(ctx, "Persona created", slog.String("personaID", p.ID.String()), slog.Int("version", p.Version))
	span.SetStatus(codes.Ok, "Persona created")
	return p, nil
}

// GetPersona retrieves a persona version by ID.
func (s *ServiceImpl) GetPersona(ctx context.Context, id uuid.UUID) (*types.Persona, error) {
	ctx, span := otel.Tracer("PersonaService").Start(ctx, "GetPersona", trace.WithAttributes(
		attribute.String("persona.id", id.String()),
	))
	defer span.End()

	p, err := s.repo.GetPersona(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch persona")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Persona fetched")
	return p, nil
}

// GetLatestForUser retrieves the newest persona version for a user.
func (s *ServiceImpl) GetLatestForUser(ctx context.Context, userID uuid.UUID) (*types.Persona, error) {
	ctx, span := otel.Tracer("PersonaService").Start(ctx, "GetLatestForUser", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	p, err := s.repo.GetLatestForUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch latest persona")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Latest persona fetched")
	return p, nil
}
