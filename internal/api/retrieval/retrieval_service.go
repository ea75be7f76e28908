package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderplan/wanderplan/app/observability/metrics"
	"github.com/wanderplan/wanderplan/internal/api/destination"
	"github.com/wanderplan/wanderplan/internal/api/hotel"
	"github.com/wanderplan/wanderplan/internal/api/persona"
	"github.com/wanderplan/wanderplan/internal/types"
)

// Embedder converts text into a similarity-search vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

var _ Service = (*ServiceImpl)(nil)

// Service is the single retrieval entry point. The caller declares the mode
// through the query context; the engine never switches modes on its own.
type Service interface {
	// Search ranks destination candidates for the given query context.
	// An empty result is a valid outcome, not an error.
	Search(ctx context.Context, qc types.QueryContext, limit int) ([]types.CandidateResult, error)
	// SearchHotels ranks hotels at a chosen destination.
	SearchHotels(ctx context.Context, destinationID uuid.UUID, budget types.BudgetTier, limit int) ([]types.CandidateResult, error)
	// BackfillEmbeddings embeds destinations that do not have a vector yet
	// and returns how many were processed.
	BackfillEmbeddings(ctx context.Context, batchSize int) (int, error)
}

// ServiceImpl provides the implementation for Service.
type ServiceImpl struct {
	logger           *slog.Logger
	destinationRepo  destination.Repository
	hotelRepo        hotel.Repository
	personaRepo      persona.Repository
	embedder         Embedder
	matchWeight      float64
	popularityWeight float64
}

func NewServiceImpl(
	destinationRepo destination.Repository,
	hotelRepo hotel.Repository,
	personaRepo persona.Repository,
	embedder Embedder,
	matchWeight, popularityWeight float64,
	logger *slog.Logger,
) *ServiceImpl {
	if matchWeight <= 0 {
		matchWeight = 0.8
	}
	if popularityWeight <= 0 {
		popularityWeight = 0.2
	}
	return &ServiceImpl{
		logger:           logger,
		destinationRepo:  destinationRepo,
		hotelRepo:        hotelRepo,
		personaRepo:      personaRepo,
		embedder:         embedder,
		matchWeight:      matchWeight,
		popularityWeight: popularityWeight,
	}
}

// Search dispatches on the query context variant exactly once and returns a
// deterministically ordered candidate list: non-increasing score, ties broken
// by ascending ID.
func (s *ServiceImpl) Search(ctx context.Context, qc types.QueryContext, limit int) ([]types.CandidateResult, error) {
	mode, err := qc.Mode()
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("RetrievalService").Start(ctx, "Search", trace.WithAttributes(
		attribute.String("search.mode", string(mode)),
		attribute.Int("search.limit", limit),
	))
	defer span.End()

	start := time.Now()
	var results []types.CandidateResult
	switch mode {
	case types.SearchModeFilter:
		results, err = s.searchByFilters(ctx, *qc.Filter, limit)
	case types.SearchModeVector:
		results, err = s.searchByVector(ctx, *qc.Vector, limit)
	}

	m := metrics.Get()
	modeAttr := metric.WithAttributes(attribute.String("mode", string(mode)))
	m.RetrievalDurationSeconds.Record(ctx, time.Since(start).Seconds(), modeAttr)
	if err != nil {
		m.RetrievalRequestsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("mode", string(mode)), attribute.String("status", "error")))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Search failed")
		return nil, err
	}
	m.RetrievalRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", string(mode)), attribute.String("status", "ok")))

	span.SetAttributes(attribute.Int("search.results", len(results)))
	span.SetStatus(codes.Ok, "Search completed")
	return results, nil
}

// searchByFilters excludes candidates failing hard constraints in the
// repository, then scores the survivors on soft-filter agreement blended with
// popularity.
func (s *ServiceImpl) searchByFilters(ctx context.Context, filter types.FilterQuery, limit int) ([]types.CandidateResult, error) {
	l := s.logger.With(slog.String("method", "searchByFilters"))

	candidates, err := s.destinationRepo.FindByHardFilters(ctx, filter)
	if err != nil {
		l.ErrorContext(ctx, "Hard-filter lookup failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %s", types.ErrRetrievalUnavailable, err)
	}
	if len(candidates) == 0 {
		l.DebugContext(ctx, "No candidates passed hard filters")
		return []types.CandidateResult{}, nil
	}

	for i := range candidates {
		candidates[i].Mode = types.SearchModeFilter
		candidates[i].Score = s.matchWeight*softMatchFraction(filter, candidates[i]) +
			s.popularityWeight*candidates[i].Popularity
	}
	sortCandidates(candidates)

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	l.DebugContext(ctx, "Filter search completed", slog.Int("count", len(candidates)))
	return candidates, nil
}

// searchByVector embeds the free-text intent together with the persona's
// preference summary and ranks destinations by cosine similarity.
func (s *ServiceImpl) searchByVector(ctx context.Context, vq types.VectorQuery, limit int) ([]types.CandidateResult, error) {
	l := s.logger.With(slog.String("method", "searchByVector"))

	if strings.TrimSpace(vq.FreeTextIntent) == "" && vq.PersonaID == uuid.Nil {
		return nil, fmt.Errorf("%w: vector query needs a free-text intent or a persona", types.ErrValidation)
	}

	text := strings.TrimSpace(vq.FreeTextIntent)
	if vq.PersonaID != uuid.Nil {
		p, err := s.personaRepo.GetPersona(ctx, vq.PersonaID)
		if err != nil {
			return nil, err
		}
		if summary := p.SummaryText(); summary != "" {
			if text == "" {
				text = summary
			} else {
				text = text + ". " + summary
			}
		}
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		l.ErrorContext(ctx, "Embedding failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: embedding failed: %s", types.ErrRetrievalUnavailable, err)
	}

	candidates, err := s.destinationRepo.FindSimilar(ctx, embedding, limit)
	if err != nil {
		l.ErrorContext(ctx, "Similarity search failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %s", types.ErrRetrievalUnavailable, err)
	}

	for i := range candidates {
		candidates[i].Mode = types.SearchModeVector
	}
	// The index already orders by distance; re-sort so the score/ID contract
	// holds even when similarities tie.
	sortCandidates(candidates)

	l.DebugContext(ctx, "Vector search completed", slog.Int("count", len(candidates)))
	return candidates, nil
}

// SearchHotels ranks hotels at a destination, best rated first.
func (s *ServiceImpl) SearchHotels(ctx context.Context, destinationID uuid.UUID, budget types.BudgetTier, limit int) ([]types.CandidateResult, error) {
	ctx, span := otel.Tracer("RetrievalService").Start(ctx, "SearchHotels", trace.WithAttributes(
		attribute.String("destination.id", destinationID.String()),
	))
	defer span.End()

	hotels, err := s.hotelRepo.FindByDestination(ctx, destinationID, budget, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hotel search failed")
		return nil, fmt.Errorf("%w: %s", types.ErrRetrievalUnavailable, err)
	}

	span.SetAttributes(attribute.Int("search.results", len(hotels)))
	span.SetStatus(codes.Ok, "Hotel search completed")
	return hotels, nil
}

// BackfillEmbeddings computes and stores embeddings for destinations that do
// not have one yet. FindSimilar only considers embedded rows, so destinations
// ingested without a vector stay invisible to vector search until this runs.
func (s *ServiceImpl) BackfillEmbeddings(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	ctx, span := otel.Tracer("RetrievalService").Start(ctx, "BackfillEmbeddings", trace.WithAttributes(
		attribute.Int("backfill.batch_size", batchSize),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "BackfillEmbeddings"))

	done := 0
	for {
		pending, err := s.destinationRepo.ListMissingEmbeddings(ctx, batchSize)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Listing unembedded destinations failed")
			return done, fmt.Errorf("%w: %s", types.ErrRetrievalUnavailable, err)
		}
		if len(pending) == 0 {
			break
		}

		for _, c := range pending {
			embedding, err := s.embedder.Embed(ctx, embeddingText(c))
			if err != nil {
				l.ErrorContext(ctx, "Embedding failed during backfill",
					slog.String("destinationID", c.ID.String()), slog.Any("error", err))
				span.RecordError(err)
				span.SetStatus(codes.Error, "Embedding failed")
				return done, fmt.Errorf("%w: embedding failed: %s", types.ErrRetrievalUnavailable, err)
			}
			if err := s.destinationRepo.UpdateEmbedding(ctx, c.ID, embedding); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "Storing embedding failed")
				return done, fmt.Errorf("%w: %s", types.ErrRetrievalUnavailable, err)
			}
			done++
		}
		if len(pending) < batchSize {
			break
		}
	}

	l.InfoContext(ctx, "Embedding backfill completed", slog.Int("count", done))
	span.SetAttributes(attribute.Int("backfill.count", done))
	span.SetStatus(codes.Ok, "Backfill completed")
	return done, nil
}

// embeddingText is the document side of the similarity search: the same
// attributes a free-text intent or persona summary would speak about.
func embeddingText(c types.CandidateResult) string {
	parts := []string{c.Name}
	if c.Region != "" {
		parts = append(parts, c.Region)
	}
	if c.Country != "" {
		parts = append(parts, c.Country)
	}
	if c.Description != "" {
		parts = append(parts, c.Description)
	}
	if len(c.Tags) > 0 {
		parts = append(parts, strings.Join(c.Tags, ", "))
	}
	if c.Climate != "" {
		parts = append(parts, string(c.Climate)+" climate")
	}
	return strings.Join(parts, ". ")
}

// softMatchFraction is the share of soft filters the candidate satisfies. A
// query with no soft filters scores everything on popularity alone.
func softMatchFraction(filter types.FilterQuery, c types.CandidateResult) float64 {
	total := filter.SoftFilterCount()
	if total == 0 {
		return 0
	}
	matched := 0
	if filter.Budget != "" && c.BudgetTier == filter.Budget {
		matched++
	}
	if len(filter.ActivityTags) > 0 && tagsOverlap(filter.ActivityTags, c.Tags) {
		matched++
	}
	if filter.Month != 0 && monthListed(filter.Month, c.BestMonths) {
		matched++
	}
	return float64(matched) / float64(total)
}

func tagsOverlap(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(w, h) {
				return true
			}
		}
	}
	return false
}

func monthListed(m time.Month, months []time.Month) bool {
	for _, bm := range months {
		if bm == m {
			return true
		}
	}
	return false
}

// sortCandidates enforces the ordering contract: non-increasing score with
// ties broken by ascending ID.
func sortCandidates(candidates []types.CandidateResult) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})
}
