package destination

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderplan/wanderplan/app/observability/metrics"
	"github.com/wanderplan/wanderplan/internal/types"
)

var _ Repository = (*PostgresDestinationRepo)(nil)

// Repository defines the contract for destination candidate persistence.
type Repository interface {
	// FindByHardFilters returns every destination satisfying the hard
	// constraints of the query. Soft filters are scored by the caller.
	FindByHardFilters(ctx context.Context, filter types.FilterQuery) ([]types.CandidateResult, error)
	// FindSimilar returns the top-k destinations by cosine similarity against
	// the precomputed embedding column.
	FindSimilar(ctx context.Context, queryEmbedding []float32, limit int) ([]types.CandidateResult, error)
	// GetDestination retrieves a single destination by ID.
	GetDestination(ctx context.Context, id uuid.UUID) (*types.CandidateResult, error)
	// UpdateEmbedding stores a freshly computed embedding for a destination.
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	// ListMissingEmbeddings returns up to limit destinations whose embedding
	// column is still empty, in ascending ID order.
	ListMissingEmbeddings(ctx context.Context, limit int) ([]types.CandidateResult, error)
}

// Querier is the subset of the pgx pool the repository needs. Tests
// substitute a mock pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresDestinationRepo struct {
	logger *slog.Logger
	pgpool Querier
}

func NewPostgresDestinationRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresDestinationRepo {
	return &PostgresDestinationRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const candidateColumns = `
        id, name, country, region, COALESCE(description, ''), budget_tier, climate,
        tags, best_months, rating, popularity`

// FindByHardFilters excludes candidates failing any hard filter in SQL;
// everything else comes back unscored for the engine to rank.
func (r *PostgresDestinationRepo) FindByHardFilters(ctx context.Context, filter types.FilterQuery) ([]types.CandidateResult, error) {
	ctx, span := otel.Tracer("DestinationRepo").Start(ctx, "FindByHardFilters", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "destinations"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "FindByHardFilters"))
	l.DebugContext(ctx, "Fetching destinations by hard filters",
		slog.String("climate", string(filter.Climate)),
		slog.String("region", filter.Region),
		slog.String("country", filter.Country),
	)

	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.Climate != "" {
		conditions = append(conditions, fmt.Sprintf("climate = $%d", argPos))
		args = append(args, filter.Climate)
		argPos++
	}
	if filter.Region != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(region) = LOWER($%d)", argPos))
		args = append(args, filter.Region)
		argPos++
	}
	if filter.Country != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(country) = LOWER($%d)", argPos))
		args = append(args, filter.Country)
		argPos++
	}
	if filter.MinRating > 0 {
		conditions = append(conditions, fmt.Sprintf("rating >= $%d", argPos))
		args = append(args, filter.MinRating)
		argPos++
	}

	query := "SELECT" + candidateColumns + "\n        FROM destinations"
	if len(conditions) > 0 {
		query += "\n        WHERE " + strings.Join(conditions, " AND ")
	}
	query += "\n        ORDER BY id"

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query destinations", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to query destinations")
		metrics.RecordDBError(ctx, "destinations", "FindByHardFilters")
		return nil, fmt.Errorf("error querying destinations: %w", err)
	}
	defer rows.Close()

	results, err := scanCandidates(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to scan destinations")
		return nil, err
	}

	l.DebugContext(ctx, "Destinations fetched", slog.Int("count", len(results)))
	span.SetStatus(codes.Ok, "Destinations fetched")
	return results, nil
}

// FindSimilar runs pgvector cosine similarity search against stored
// embeddings. Similarity is 1 - cosine distance, normalized to [0,1].
func (r *PostgresDestinationRepo) FindSimilar(ctx context.Context, queryEmbedding []float32, limit int) ([]types.CandidateResult, error) {
	ctx, span := otel.Tracer("DestinationRepo").Start(ctx, "FindSimilar", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "destinations"),
		attribute.Int("embedding.dimension", len(queryEmbedding)),
		attribute.Int("limit", limit),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "FindSimilar"))
	l.DebugContext(ctx, "Running vector similarity search",
		slog.Int("embedding_dim", len(queryEmbedding)),
		slog.Int("limit", limit),
	)

	embeddingStr := formatEmbedding(queryEmbedding)

	query := "SELECT" + candidateColumns + `,
            1 - (embedding <=> $1::vector) AS similarity_score
        FROM destinations
        WHERE embedding IS NOT NULL
        ORDER BY embedding <=> $1::vector
        LIMIT $2`

	rows, err := r.pgpool.Query(ctx, query, embeddingStr, limit)
	if err != nil {
		l.ErrorContext(ctx, "Failed to run similarity search", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to run similarity search")
		metrics.RecordDBError(ctx, "destinations", "FindSimilar")
		return nil, fmt.Errorf("error running similarity search: %w", err)
	}
	defer rows.Close()

	var results []types.CandidateResult
	for rows.Next() {
		var c types.CandidateResult
		var monthInts []int
		if err := rows.Scan(&c.ID, &c.Name, &c.Country, &c.Region, &c.Description,
			&c.BudgetTier, &c.Climate, &c.Tags, &monthInts, &c.Rating, &c.Popularity,
			&c.Score); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to scan similarity row")
			return nil, fmt.Errorf("error scanning similarity row: %w", err)
		}
		c.Kind = types.CandidateKindDestination
		c.BestMonths = toMonths(monthInts)
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Row iteration failed")
		return nil, fmt.Errorf("error iterating similarity rows: %w", err)
	}

	l.DebugContext(ctx, "Similarity search completed", slog.Int("count", len(results)))
	span.SetStatus(codes.Ok, "Similarity search completed")
	return results, nil
}

// GetDestination retrieves a single destination by ID.
func (r *PostgresDestinationRepo) GetDestination(ctx context.Context, id uuid.UUID) (*types.CandidateResult, error) {
	ctx, span := otel.Tracer("DestinationRepo").Start(ctx, "GetDestination", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "destinations"),
		attribute.String("destination.id", id.String()),
	))
	defer span.End()

	query := "SELECT" + candidateColumns + "\n        FROM destinations WHERE id = $1"

	row := r.pgpool.QueryRow(ctx, query, id)
	var c types.CandidateResult
	var monthInts []int
	err := row.Scan(&c.ID, &c.Name, &c.Country, &c.Region, &c.Description,
		&c.BudgetTier, &c.Climate, &c.Tags, &monthInts, &c.Rating, &c.Popularity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Destination not found")
		return nil, fmt.Errorf("destination %s not found: %w", id, types.ErrNotFound)
	}
	c.Kind = types.CandidateKindDestination
	c.BestMonths = toMonths(monthInts)

	span.SetStatus(codes.Ok, "Destination fetched")
	return &c, nil
}

// UpdateEmbedding stores a freshly computed embedding for a destination.
func (r *PostgresDestinationRepo) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	ctx, span := otel.Tracer("DestinationRepo").Start(ctx, "UpdateEmbedding", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "destinations"),
		attribute.String("destination.id", id.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, "UPDATE destinations SET embedding = $1::vector WHERE id = $2",
		formatEmbedding(embedding), id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update embedding")
		metrics.RecordDBError(ctx, "destinations", "UpdateEmbedding")
		return fmt.Errorf("error updating destination embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("destination %s not found for embedding update: %w", id, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Embedding updated")
	return nil
}

// ListMissingEmbeddings returns destinations that have not been embedded yet.
// The backfill worker walks these in batches at startup.
func (r *PostgresDestinationRepo) ListMissingEmbeddings(ctx context.Context, limit int) ([]types.CandidateResult, error) {
	ctx, span := otel.Tracer("DestinationRepo").Start(ctx, "ListMissingEmbeddings", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "destinations"),
		attribute.Int("limit", limit),
	))
	defer span.End()

	query := "SELECT" + candidateColumns + `
        FROM destinations
        WHERE embedding IS NULL
        ORDER BY id
        LIMIT $1`

	rows, err := r.pgpool.Query(ctx, query, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list unembedded destinations", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list unembedded destinations")
		metrics.RecordDBError(ctx, "destinations", "ListMissingEmbeddings")
		return nil, fmt.Errorf("error listing unembedded destinations: %w", err)
	}
	defer rows.Close()

	results, err := scanCandidates(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to scan destinations")
		return nil, err
	}

	span.SetAttributes(attribute.Int("destinations.count", len(results)))
	span.SetStatus(codes.Ok, "Unembedded destinations listed")
	return results, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanCandidates(rows rowScanner) ([]types.CandidateResult, error) {
	var results []types.CandidateResult
	for rows.Next() {
		var c types.CandidateResult
		var monthInts []int
		if err := rows.Scan(&c.ID, &c.Name, &c.Country, &c.Region, &c.Description,
			&c.BudgetTier, &c.Climate, &c.Tags, &monthInts, &c.Rating, &c.Popularity); err != nil {
			return nil, fmt.Errorf("error scanning destination row: %w", err)
		}
		c.Kind = types.CandidateKindDestination
		c.BestMonths = toMonths(monthInts)
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating destination rows: %w", err)
	}
	return results, nil
}

func toMonths(ints []int) []time.Month {
	if len(ints) == 0 {
		return nil
	}
	months := make([]time.Month, 0, len(ints))
	for _, m := range ints {
		months = append(months, time.Month(m))
	}
	return months
}

func formatEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ","))
}
