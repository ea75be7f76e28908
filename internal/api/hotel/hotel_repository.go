package hotel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderplan/wanderplan/app/observability/metrics"
	"github.com/wanderplan/wanderplan/internal/types"
)

var _ Repository = (*PostgresHotelRepo)(nil)

// Repository defines the contract for hotel candidate persistence.
type Repository interface {
	// FindByDestination returns hotels at the destination ordered by rating.
	FindByDestination(ctx context.Context, destinationID uuid.UUID, budget types.BudgetTier, limit int) ([]types.CandidateResult, error)
	// GetHotel retrieves a single hotel by ID.
	GetHotel(ctx context.Context, id uuid.UUID) (*types.CandidateResult, error)
}

type PostgresHotelRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresHotelRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresHotelRepo {
	return &PostgresHotelRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

// FindByDestination returns hotels for a destination, best rated first, ties
// broken by id so the ordering is deterministic. Budget, when set, narrows
// the result to the matching tier.
func (r *PostgresHotelRepo) FindByDestination(ctx context.Context, destinationID uuid.UUID, budget types.BudgetTier, limit int) ([]types.CandidateResult, error) {
	ctx, span := otel.Tracer("HotelRepo").Start(ctx, "FindByDestination", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "hotels"),
		attribute.String("destination.id", destinationID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "FindByDestination"), slog.String("destinationID", destinationID.String()))
	l.DebugContext(ctx, "Fetching hotels for destination", slog.String("budget", string(budget)))

	query := `
        SELECT h.id, h.name, COALESCE(h.description, ''), h.budget_tier, h.rating,
               h.facilities, d.name, d.country, d.region
        FROM hotels h
        JOIN destinations d ON d.id = h.destination_id
        WHERE h.destination_id = $1`
	args := []interface{}{destinationID}
	if budget != "" {
		query += " AND h.budget_tier = $2"
		args = append(args, budget)
	}
	query += " ORDER BY h.rating DESC, h.id LIMIT " + fmt.Sprintf("$%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query hotels", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to query hotels")
		metrics.RecordDBError(ctx, "hotels", "FindByDestination")
		return nil, fmt.Errorf("error querying hotels: %w", err)
	}
	defer rows.Close()

	var results []types.CandidateResult
	for rows.Next() {
		var c types.CandidateResult
		var destName string
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.BudgetTier, &c.Rating,
			&c.Tags, &destName, &c.Country, &c.Region); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to scan hotel row")
			return nil, fmt.Errorf("error scanning hotel row: %w", err)
		}
		c.Kind = types.CandidateKindHotel
		c.Popularity = c.Rating / 5.0
		c.Score = c.Popularity
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Row iteration failed")
		return nil, fmt.Errorf("error iterating hotel rows: %w", err)
	}

	l.DebugContext(ctx, "Hotels fetched", slog.Int("count", len(results)))
	span.SetStatus(codes.Ok, "Hotels fetched")
	return results, nil
}

// GetHotel retrieves a single hotel by ID.
func (r *PostgresHotelRepo) GetHotel(ctx context.Context, id uuid.UUID) (*types.CandidateResult, error) {
	ctx, span := otel.Tracer("HotelRepo").Start(ctx, "GetHotel", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "hotels"),
		attribute.String("hotel.id", id.String()),
	))
	defer span.End()

	query := `
        SELECT h.id, h.name, COALESCE(h.description, ''), h.budget_tier, h.rating,
               h.facilities, d.country, d.region
        FROM hotels h
        JOIN destinations d ON d.id = h.destination_id
        WHERE h.id = $1`

	var c types.CandidateResult
	err := r.pgpool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Description,
		&c.BudgetTier, &c.Rating, &c.Tags, &c.Country, &c.Region)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hotel not found")
		return nil, fmt.Errorf("hotel %s not found: %w", id, types.ErrNotFound)
	}
	c.Kind = types.CandidateKindHotel
	c.Popularity = c.Rating / 5.0

	span.SetStatus(codes.Ok, "Hotel fetched")
	return &c, nil
}
