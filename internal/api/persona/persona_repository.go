package persona

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderplan/wanderplan/app/observability/metrics"
	"github.com/wanderplan/wanderplan/internal/types"
)

var _ Repository = (*PostgresPersonaRepo)(nil)

// Repository defines the contract for persona persistence. Personas are
// versioned rows and never updated in place.
type Repository interface {
	// GetPersona retrieves a persona version by ID.
	// Returns types.ErrNotFound if it doesn't exist.
	GetPersona(ctx context.Context, id uuid.UUID) (*types.Persona, error)
	// GetLatestForUser retrieves the highest-version persona for a user.
	GetLatestForUser(ctx context.Context, userID uuid.UUID) (*types.Persona, error)
	// CreatePersona inserts a new persona row at version max(existing)+1.
	CreatePersona(ctx context.Context, params types.CreatePersonaParams) (*types.Persona, error)
}

type PostgresPersonaRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresPersonaRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresPersonaRepo {
	return &PostgresPersonaRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const personaColumns = `
        id, user_id, version, traveler_types, COALESCE(budget_tier::text, ''),
        activity_tags, COALESCE(pace::text, ''), COALESCE(companions, ''),
        COALESCE(preferred_climate::text, ''), COALESCE(style_summary, ''),
        dietary_restrictions, accessibility_needs, created_at`

// GetPersona retrieves a persona version by ID.
func (r *PostgresPersonaRepo) GetPersona(ctx context.Context, id uuid.UUID) (*types.Persona, error) {
	ctx, span := otel.Tracer("PersonaRepo").Start(ctx, "GetPersona", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "personas"),
		attribute.String("persona.id", id.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "GetPersona"), slog.String("personaID", id.String()))
	l.DebugContext(ctx, "Fetching persona")

	query := "SELECT" + personaColumns + "\n        FROM personas WHERE id = $1"

	p, err := r.scanPersona(r.pgpool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Persona not found")
			return nil, fmt.Errorf("persona %s not found: %w", id, types.ErrNotFound)
		}
		l.ErrorContext(ctx, "Failed to fetch persona", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch persona")
		metrics.RecordDBError(ctx, "personas", "GetPersona")
		return nil, fmt.Errorf("error fetching persona: %w", err)
	}

	span.SetStatus(codes.Ok, "Persona fetched")
	return p, nil
}

// GetLatestForUser retrieves the highest-version persona for a user.
func (r *PostgresPersonaRepo) GetLatestForUser(ctx context.Context, userID uuid.UUID) (*types.Persona, error) {
	ctx, span := otel.Tracer("PersonaRepo").Start(ctx, "GetLatestForUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "personas"),
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "GetLatestForUser"), slog.String("userID", userID.String()))
	l.DebugContext(ctx, "Fetching latest persona for user")

	query := "SELECT" + personaColumns + `
        FROM personas WHERE user_id = $1
        ORDER BY version DESC
        LIMIT 1`

	p, err := r.scanPersona(r.pgpool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "No persona for user")
			return nil, fmt.Errorf("no persona for user %s: %w", userID, types.ErrNotFound)
		}
		l.ErrorContext(ctx, "Failed to fetch latest persona", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch latest persona")
		metrics.RecordDBError(ctx, "personas", "GetLatestForUser")
		return nil, fmt.Errorf("error fetching latest persona: %w", err)
	}

	span.SetStatus(codes.Ok, "Latest persona fetched")
	return p, nil
}

// CreatePersona inserts a new persona row. The version is derived inside the
// insert so concurrent revisions cannot clobber each other; existing rows are
// never mutated.
func (r *PostgresPersonaRepo) CreatePersona(ctx context.Context, params types.CreatePersonaParams) (*types.Persona, error) {
	ctx, span := otel.Tracer("PersonaRepo").Start(ctx, "CreatePersona", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "personas"),
		attribute.String("user.id", params.UserID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreatePersona"), slog.String("userID", params.UserID.String()))
	l.DebugContext(ctx, "Creating persona version")

	query := `
        INSERT INTO personas (user_id, version, traveler_types, budget_tier, activity_tags,
                              pace, companions, preferred_climate, style_summary,
                              dietary_restrictions, accessibility_needs)
        VALUES ($1,
                COALESCE((SELECT MAX(version) FROM personas WHERE user_id = $1), 0) + 1,
                $2, NULLIF($3, '')::budget_tier_enum, $4, NULLIF($5, '')::travel_pace_enum,
                NULLIF($6, ''), NULLIF($7, '')::climate_enum, NULLIF($8, ''), $9, $10)
        RETURNING` + personaColumns

	p, err := r.scanPersona(r.pgpool.QueryRow(ctx, query,
		params.UserID,
		params.TravelerTypes,
		string(params.BudgetTier),
		params.ActivityTags,
		string(params.Pace),
		params.Companions,
		string(params.PreferredClimate),
		params.StyleSummary,
		params.DietaryRestrictions,
		params.AccessibilityNeeds,
	))
	if err != nil {
		l.ErrorContext(ctx, "Failed to create persona", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create persona")
		metrics.RecordDBError(ctx, "personas", "CreatePersona")
		return nil, fmt.Errorf("error creating persona: %w", err)
	}

	l.InfoContext(ctx, "Persona created", slog.String("personaID", p.ID.String()), slog.Int("version", p.Version))
	span.SetStatus(codes.Ok, "Persona created")
	return p, nil
}

func (r *PostgresPersonaRepo) scanPersona(row pgx.Row) (*types.Persona, error) {
	var p types.Persona
	var budget, pace, climate string
	err := row.Scan(&p.ID, &p.UserID, &p.Version, &p.TravelerTypes, &budget,
		&p.ActivityTags, &pace, &p.Companions, &climate, &p.StyleSummary,
		&p.DietaryRestrictions, &p.AccessibilityNeeds, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.BudgetTier = types.BudgetTier(budget)
	p.Pace = types.TravelPace(pace)
	p.PreferredClimate = types.Climate(climate)
	return &p, nil
}
