package destination

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderplan/wanderplan/app/observability/metrics"
	"github.com/wanderplan/wanderplan/internal/types"
)

func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	m.Run()
}

func newMockRepo(t *testing.T) (*PostgresDestinationRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	repo := &PostgresDestinationRepo{
		logger: slog.New(slog.DiscardHandler),
		pgpool: mockPool,
	}
	return repo, mockPool
}

func candidateRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "name", "country", "region", "description", "budget_tier", "climate",
		"tags", "best_months", "rating", "popularity",
	})
}

func TestFindByHardFilters_BuildsConjunctiveWhereClause(t *testing.T) {
	repo, mockPool := newMockRepo(t)

	id := uuid.New()
	mockPool.ExpectQuery(`SELECT[\s\S]+FROM destinations[\s\S]+WHERE climate = \$1 AND LOWER\(region\) = LOWER\(\$2\)[\s\S]+ORDER BY id`).
		WithArgs(types.ClimateWarm, "Algarve").
		WillReturnRows(candidateRows().AddRow(
			id, "Lagos", "Portugal", "Algarve", "cliffside beaches",
			types.BudgetTierBudget, types.ClimateWarm, []string{"beach", "surf"}, []int{6, 7, 8}, 4.6, 0.8,
		))

	results, err := repo.FindByHardFilters(context.Background(), types.FilterQuery{
		Climate: types.ClimateWarm,
		Region:  "Algarve",
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.Equal(t, types.CandidateKindDestination, results[0].Kind)
	assert.Equal(t, types.BudgetTierBudget, results[0].BudgetTier)
	assert.Equal(t, []time.Month{time.June, time.July, time.August}, results[0].BestMonths)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestFindByHardFilters_NoFiltersSelectsEverything(t *testing.T) {
	repo, mockPool := newMockRepo(t)

	mockPool.ExpectQuery(`SELECT[\s\S]+FROM destinations\s+ORDER BY id`).
		WillReturnRows(candidateRows())

	results, err := repo.FindByHardFilters(context.Background(), types.FilterQuery{
		// Soft filters never reach the SQL; they are scored by the engine.
		Budget: types.BudgetTierLuxury,
	})

	require.NoError(t, err)
	assert.Empty(t, results)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestFindSimilar_OrdersByCosineDistance(t *testing.T) {
	repo, mockPool := newMockRepo(t)

	id := uuid.New()
	mockPool.ExpectQuery(`1 - \(embedding <=> \$1::vector\) AS similarity_score[\s\S]+ORDER BY embedding <=> \$1::vector[\s\S]+LIMIT \$2`).
		WithArgs("[0.5,0.25]", 3).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "country", "region", "description", "budget_tier", "climate",
			"tags", "best_months", "rating", "popularity", "similarity_score",
		}).AddRow(
			id, "Porto", "Portugal", "Norte", "river city",
			types.BudgetTierMidRange, types.ClimateTemperate, []string{"food"}, []int{5, 9}, 4.7, 0.9, 0.87,
		))

	results, err := repo.FindSimilar(context.Background(), []float32{0.5, 0.25}, 3)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.InDelta(t, 0.87, results[0].Score, 1e-9)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestFindByHardFilters_QueryFailureCountedAndWrapped(t *testing.T) {
	repo, mockPool := newMockRepo(t)

	mockPool.ExpectQuery(`SELECT[\s\S]+FROM destinations`).
		WillReturnError(assert.AnError)

	// The error branch also feeds the db error counter; an uninitialized
	// metrics registry would panic here.
	results, err := repo.FindByHardFilters(context.Background(), types.FilterQuery{})

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, results)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestListMissingEmbeddings_SelectsOnlyUnembedded(t *testing.T) {
	repo, mockPool := newMockRepo(t)

	id := uuid.New()
	mockPool.ExpectQuery(`SELECT[\s\S]+FROM destinations[\s\S]+WHERE embedding IS NULL[\s\S]+ORDER BY id[\s\S]+LIMIT \$1`).
		WithArgs(25).
		WillReturnRows(candidateRows().AddRow(
			id, "Faro", "Portugal", "Algarve", "lagoon islands",
			types.BudgetTierMidRange, types.ClimateWarm, []string{"beach"}, []int{5, 6, 9}, 4.3, 0.4,
		))

	results, err := repo.ListMissingEmbeddings(context.Background(), 25)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestUpdateEmbedding_NotFound(t *testing.T) {
	repo, mockPool := newMockRepo(t)

	id := uuid.New()
	mockPool.ExpectExec(`UPDATE destinations SET embedding = \$1::vector WHERE id = \$2`).
		WithArgs("[1]", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateEmbedding(context.Background(), id, []float32{1})

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNotFound)
	require.NoError(t, mockPool.ExpectationsWereMet())
}
