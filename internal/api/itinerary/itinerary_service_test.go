package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wanderplan/wanderplan/app/observability/metrics"
	"github.com/wanderplan/wanderplan/internal/types"
)

func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	m.Run()
}

// StubGenerator replays canned responses in order. Deterministic on purpose:
// the same inputs always walk the same attempt sequence.
type StubGenerator struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (g *StubGenerator) GenerateCompletion(_ context.Context, prompt string) (string, error) {
	i := g.calls
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	return "", errors.New("stub exhausted")
}

func (g *StubGenerator) ModelID() string { return "stub-model" }

type MockDestinationRepo struct {
	mock.Mock
}

func (m *MockDestinationRepo) FindByHardFilters(ctx context.Context, filter types.FilterQuery) ([]types.CandidateResult, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.CandidateResult), args.Error(1)
}

func (m *MockDestinationRepo) FindSimilar(ctx context.Context, queryEmbedding []float32, limit int) ([]types.CandidateResult, error) {
	args := m.Called(ctx, queryEmbedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.CandidateResult), args.Error(1)
}

func (m *MockDestinationRepo) GetDestination(ctx context.Context, id uuid.UUID) (*types.CandidateResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.CandidateResult), args.Error(1)
}

func (m *MockDestinationRepo) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	args := m.Called(ctx, id, embedding)
	return args.Error(0)
}

func (m *MockDestinationRepo) ListMissingEmbeddings(ctx context.Context, limit int) ([]types.CandidateResult, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.CandidateResult), args.Error(1)
}

type MockHotelRepo struct {
	mock.Mock
}

func (m *MockHotelRepo) FindByDestination(ctx context.Context, destinationID uuid.UUID, budget types.BudgetTier, limit int) ([]types.CandidateResult, error) {
	args := m.Called(ctx, destinationID, budget, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.CandidateResult), args.Error(1)
}

func (m *MockHotelRepo) GetHotel(ctx context.Context, id uuid.UUID) (*types.CandidateResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.CandidateResult), args.Error(1)
}

type MockItineraryRepo struct {
	mock.Mock
}

func (m *MockItineraryRepo) SaveItinerary(ctx context.Context, userID uuid.UUID, it *types.Itinerary) (uuid.UUID, error) {
	args := m.Called(ctx, userID, it)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockItineraryRepo) GetItinerary(ctx context.Context, id uuid.UUID) (*types.Itinerary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Itinerary), args.Error(1)
}

func (m *MockItineraryRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]types.Itinerary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Itinerary), args.Error(1)
}

func validPlanJSON(days int) string {
	var b strings.Builder
	b.WriteString(`{"days":[`)
	for d := 1; d <= days; d++ {
		if d > 1 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"day":%d,"theme":"day %d","activities":[`+
			`{"time_of_day":"morning","description":"walk the old town"},`+
			`{"time_of_day":"evening","description":"dinner by the harbor"}]}`, d, d)
	}
	b.WriteString("]}")
	return b.String()
}

func futureRange(days int) types.DateRange {
	start := time.Now().AddDate(0, 0, 14).Truncate(24 * time.Hour)
	return types.DateRange{Start: start, End: start.AddDate(0, 0, days-1)}
}

func newGenerateFixture(t *testing.T, gen *StubGenerator) (*ServiceImpl, GenerateParams, *MockDestinationRepo) {
	t.Helper()
	dest := new(MockDestinationRepo)
	destID := uuid.New()
	dest.On("GetDestination", mock.Anything, destID).Return(&types.CandidateResult{
		ID:      destID,
		Name:    "Lisbon",
		Country: "Portugal",
	}, nil)

	svc := NewServiceImpl(gen, dest, new(MockHotelRepo), new(MockItineraryRepo), slog.New(slog.DiscardHandler))
	params := GenerateParams{
		Persona:       &types.Persona{BudgetTier: types.BudgetTierBudget, ActivityTags: []string{"food"}},
		DestinationID: destID,
		Dates:         futureRange(5),
	}
	return svc, params, dest
}

func TestGenerate_ValidFirstAttempt(t *testing.T) {
	gen := &StubGenerator{responses: []string{validPlanJSON(5)}}
	svc, params, _ := newGenerateFixture(t, gen)

	it, err := svc.Generate(context.Background(), params)

	require.NoError(t, err)
	assert.Len(t, it.Days, 5)
	assert.Equal(t, "Lisbon", it.DestinationName)
	assert.Equal(t, "stub-model", it.Meta.ModelID)
	assert.False(t, it.Meta.Retried)
	assert.Equal(t, 1, gen.calls)
}

func TestGenerate_WrongDayCountTriggersSingleStrictRetry(t *testing.T) {
	// A 5-day trip answered with a 3-day plan must be retried exactly once
	// with stricter instructions, then accepted when the retry is valid.
	gen := &StubGenerator{responses: []string{validPlanJSON(3), validPlanJSON(5)}}
	svc, params, _ := newGenerateFixture(t, gen)

	it, err := svc.Generate(context.Background(), params)

	require.NoError(t, err)
	assert.Len(t, it.Days, 5)
	assert.True(t, it.Meta.Retried)
	require.Equal(t, 2, gen.calls)
	assert.Contains(t, gen.prompts[1], "could not be parsed")
	assert.Contains(t, gen.prompts[1], "expected 5 days, got 3")
}

func TestGenerate_MalformedTwiceFails(t *testing.T) {
	gen := &StubGenerator{responses: []string{"here is your trip!", "still not json"}}
	svc, params, _ := newGenerateFixture(t, gen)

	_, err := svc.Generate(context.Background(), params)

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrMalformedOutput)
	// Exactly one retry, never more.
	assert.Equal(t, 2, gen.calls)
}

func TestGenerate_FencedJSONIsAccepted(t *testing.T) {
	gen := &StubGenerator{responses: []string{"```json\n" + validPlanJSON(5) + "\n```"}}
	svc, params, _ := newGenerateFixture(t, gen)

	it, err := svc.Generate(context.Background(), params)

	require.NoError(t, err)
	assert.Len(t, it.Days, 5)
	assert.False(t, it.Meta.Retried)
}

func TestGenerate_TransportErrorIsUnavailable(t *testing.T) {
	gen := &StubGenerator{errs: []error{errors.New("deadline exceeded")}}
	svc, params, _ := newGenerateFixture(t, gen)

	_, err := svc.Generate(context.Background(), params)

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrGenerationUnavailable)
	assert.NotErrorIs(t, err, types.ErrMalformedOutput)
}

func TestGenerate_HotelAnchorsThePrompt(t *testing.T) {
	gen := &StubGenerator{responses: []string{validPlanJSON(5)}}
	svc, params, _ := newGenerateFixture(t, gen)

	hotels := new(MockHotelRepo)
	hotelID := uuid.New()
	hotels.On("GetHotel", mock.Anything, hotelID).Return(&types.CandidateResult{
		ID:   hotelID,
		Name: "Hotel Avenida",
		Kind: types.CandidateKindHotel,
	}, nil)
	svc.hotelRepo = hotels
	params.HotelID = &hotelID

	it, err := svc.Generate(context.Background(), params)

	require.NoError(t, err)
	require.NotNil(t, it.HotelID)
	assert.Equal(t, hotelID, *it.HotelID)
	assert.Equal(t, "Hotel Avenida", it.HotelName)
	assert.Contains(t, gen.prompts[0], "Hotel Avenida")
}

func TestSave_PersistenceFailureKeepsTaxonomy(t *testing.T) {
	repo := new(MockItineraryRepo)
	svc := NewServiceImpl(&StubGenerator{}, new(MockDestinationRepo), new(MockHotelRepo), repo, slog.New(slog.DiscardHandler))

	userID := uuid.New()
	it := &types.Itinerary{Days: []types.ItineraryDay{{Day: 1, Activities: []types.ActivityEntry{{Slot: types.TimeSlotMorning, Description: "x"}}}}}
	repo.On("SaveItinerary", mock.Anything, userID, it).Return(uuid.Nil, errors.New("disk full")).Once()

	_, err := svc.Save(context.Background(), userID, it)

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPersistence)
}

func TestGet_PassesThroughNotFound(t *testing.T) {
	repo := new(MockItineraryRepo)
	svc := NewServiceImpl(&StubGenerator{}, new(MockDestinationRepo), new(MockHotelRepo), repo, slog.New(slog.DiscardHandler))

	id := uuid.New()
	repo.On("GetItinerary", mock.Anything, id).Return(nil, types.ErrNotFound).Once()

	_, err := svc.Get(context.Background(), id)

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListForUser_ReturnsSavedItineraries(t *testing.T) {
	repo := new(MockItineraryRepo)
	svc := NewServiceImpl(&StubGenerator{}, new(MockDestinationRepo), new(MockHotelRepo), repo, slog.New(slog.DiscardHandler))

	userID := uuid.New()
	saved := []types.Itinerary{{ID: uuid.New(), DestinationName: "Lisbon"}}
	repo.On("ListForUser", mock.Anything, userID).Return(saved, nil).Once()

	results, err := svc.ListForUser(context.Background(), userID)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Lisbon", results[0].DestinationName)

	_, err = svc.ListForUser(context.Background(), uuid.Nil)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestListForUser_WrapsRepositoryFailure(t *testing.T) {
	repo := new(MockItineraryRepo)
	svc := NewServiceImpl(&StubGenerator{}, new(MockDestinationRepo), new(MockHotelRepo), repo, slog.New(slog.DiscardHandler))

	userID := uuid.New()
	repo.On("ListForUser", mock.Anything, userID).Return(nil, errors.New("pool closed")).Once()

	_, err := svc.ListForUser(context.Background(), userID)

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPersistence)
}

func TestParseGeneratedPlan_RejectsBadSlotAndNumbering(t *testing.T) {
	_, err := parseGeneratedPlan(`{"days":[{"day":1,"activities":[{"time_of_day":"midnight","description":"x"}]}]}`, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "time_of_day")

	_, err = parseGeneratedPlan(`{"days":[{"day":2,"activities":[{"time_of_day":"morning","description":"x"}]}]}`, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numbered")

	_, err = parseGeneratedPlan(`{"days":[{"day":1,"activities":[]}]}`, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no activities")
}
