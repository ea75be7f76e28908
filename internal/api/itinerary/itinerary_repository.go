package itinerary

import (
	"context"
	"encoding/json"
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

var _ Repository = (*PostgresItineraryRepo)(nil)

// Repository defines the contract for itinerary persistence. Days are stored
// as a JSONB document; the surrounding columns carry the queryable facts.
type Repository interface {
	SaveItinerary(ctx context.Context, userID uuid.UUID, it *types.Itinerary) (uuid.UUID, error)
	GetItinerary(ctx context.Context, id uuid.UUID) (*types.Itinerary, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]types.Itinerary, error)
}

type PostgresItineraryRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresItineraryRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresItineraryRepo {
	return &PostgresItineraryRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

// SaveItinerary stores the itinerary and returns its durable ID.
func (r *PostgresItineraryRepo) SaveItinerary(ctx context.Context, userID uuid.UUID, it *types.Itinerary) (uuid.UUID, error) {
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "SaveItinerary", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itineraries"),
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "SaveItinerary"), slog.String("userID", userID.String()))

	daysJSON, err := json.Marshal(it.Days)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to marshal days")
		return uuid.Nil, fmt.Errorf("error marshalling itinerary days: %w", err)
	}

	query := `
        INSERT INTO itineraries (user_id, destination_id, destination_name, hotel_id, hotel_name,
                                 start_date, end_date, days, model_id, prompt_version, retried)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id`

	var id uuid.UUID
	err = r.pgpool.QueryRow(ctx, query,
		userID, it.DestinationID, it.DestinationName, it.HotelID, nullableString(it.HotelName),
		it.Dates.Start, it.Dates.End, daysJSON,
		it.Meta.ModelID, it.Meta.PromptVersion, it.Meta.Retried,
	).Scan(&id)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert itinerary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to insert itinerary")
		metrics.RecordDBError(ctx, "itineraries", "SaveItinerary")
		return uuid.Nil, fmt.Errorf("error inserting itinerary: %w", err)
	}

	l.InfoContext(ctx, "Itinerary saved", slog.String("itineraryID", id.String()))
	span.SetStatus(codes.Ok, "Itinerary saved")
	return id, nil
}

const itineraryColumns = `
        id, destination_id, destination_name, hotel_id, COALESCE(hotel_name, ''),
        start_date, end_date, days, model_id, prompt_version, retried, created_at`

// GetItinerary loads a saved itinerary by ID.
func (r *PostgresItineraryRepo) GetItinerary(ctx context.Context, id uuid.UUID) (*types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "GetItinerary", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itineraries"),
		attribute.String("itinerary.id", id.String()),
	))
	defer span.End()

	query := "SELECT" + itineraryColumns + "\n        FROM itineraries WHERE id = $1"

	it, err := scanItinerary(r.pgpool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Itinerary not found")
			return nil, fmt.Errorf("itinerary %s not found: %w", id, types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch itinerary")
		metrics.RecordDBError(ctx, "itineraries", "GetItinerary")
		return nil, fmt.Errorf("error fetching itinerary: %w", err)
	}

	span.SetStatus(codes.Ok, "Itinerary fetched")
	return it, nil
}

// ListForUser returns a user's saved itineraries, newest first.
func (r *PostgresItineraryRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "ListForUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itineraries"),
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	query := "SELECT" + itineraryColumns + `
        FROM itineraries WHERE user_id = $1
        ORDER BY created_at DESC`

	rows, err := r.pgpool.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list itineraries")
		metrics.RecordDBError(ctx, "itineraries", "ListForUser")
		return nil, fmt.Errorf("error listing itineraries: %w", err)
	}
	defer rows.Close()

	var results []types.Itinerary
	for rows.Next() {
		it, err := scanItinerary(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to scan itinerary row")
			return nil, fmt.Errorf("error scanning itinerary row: %w", err)
		}
		results = append(results, *it)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Row iteration failed")
		return nil, fmt.Errorf("error iterating itinerary rows: %w", err)
	}

	span.SetStatus(codes.Ok, "Itineraries listed")
	return results, nil
}

func scanItinerary(row pgx.Row) (*types.Itinerary, error) {
	var it types.Itinerary
	var daysJSON []byte
	err := row.Scan(&it.ID, &it.DestinationID, &it.DestinationName, &it.HotelID, &it.HotelName,
		&it.Dates.Start, &it.Dates.End, &daysJSON,
		&it.Meta.ModelID, &it.Meta.PromptVersion, &it.Meta.Retried, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(daysJSON, &it.Days); err != nil {
		return nil, fmt.Errorf("error unmarshalling itinerary days: %w", err)
	}
	return &it, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
