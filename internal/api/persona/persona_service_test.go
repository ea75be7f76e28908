package persona

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wanderplan/wanderplan/internal/types"
)

// MockPersonaRepo is a mock implementation of the Repository interface.
type MockPersonaRepo struct {
	mock.Mock
}

func (m *MockPersonaRepo) GetPersona(ctx context.Context, id uuid.UUID) (*types.Persona, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Persona), args.Error(1)
}

func (m *MockPersonaRepo) GetLatestForUser(ctx context.Context, userID uuid.UUID) (*types.Persona, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Persona), args.Error(1)
}

func (m *MockPersonaRepo) CreatePersona(ctx context.Context, params types.CreatePersonaParams) (*types.Persona, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Persona), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestCreatePersona_RequiresPreferences(t *testing.T) {
	repo := new(MockPersonaRepo)
	svc := NewServiceImpl(repo, testLogger())

	_, err := svc.CreatePersona(context.Background(), types.CreatePersonaParams{
		UserID:     uuid.New(),
		Companions: "partner", // not a preference attribute on its own
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrValidation)
	repo.AssertNotCalled(t, "CreatePersona")
}

func TestCreatePersona_RequiresUserID(t *testing.T) {
	repo := new(MockPersonaRepo)
	svc := NewServiceImpl(repo, testLogger())

	_, err := svc.CreatePersona(context.Background(), types.CreatePersonaParams{
		BudgetTier: types.BudgetTierBudget,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestCreatePersona_RejectsUnknownEnumValues(t *testing.T) {
	repo := new(MockPersonaRepo)
	svc := NewServiceImpl(repo, testLogger())

	_, err := svc.CreatePersona(context.Background(), types.CreatePersonaParams{
		UserID:     uuid.New(),
		BudgetTier: types.BudgetTier("extravagant"),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrValidation)
	repo.AssertNotCalled(t, "CreatePersona")
}

func TestCreatePersona_Success(t *testing.T) {
	repo := new(MockPersonaRepo)
	svc := NewServiceImpl(repo, testLogger())

	userID := uuid.New()
	params := types.CreatePersonaParams{
		UserID:       userID,
		BudgetTier:   types.BudgetTierMidRange,
		ActivityTags: []string{"hiking", "food"},
		Pace:         types.TravelPaceModerate,
	}
	expected := &types.Persona{
		ID:           uuid.New(),
		UserID:       userID,
		Version:      1,
		BudgetTier:   types.BudgetTierMidRange,
		ActivityTags: []string{"hiking", "food"},
		Pace:         types.TravelPaceModerate,
	}
	repo.On("CreatePersona", mock.Anything, params).Return(expected, nil).Once()

	p, err := svc.CreatePersona(context.Background(), params)

	require.NoError(t, err)
	assert.Equal(t, expected, p)
	repo.AssertExpectations(t)
}

func TestGetPersona_NotFoundPassesThrough(t *testing.T) {
	repo := new(MockPersonaRepo)
	svc := NewServiceImpl(repo, testLogger())

	id := uuid.New()
	repo.On("GetPersona", mock.Anything, id).Return(nil, types.ErrNotFound).Once()

	_, err := svc.GetPersona(context.Background(), id)

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNotFound)
	repo.AssertExpectations(t)
}

func TestPersonaVersioning_IsAppendOnly(t *testing.T) {
	repo := new(MockPersonaRepo)
	svc := NewServiceImpl(repo, testLogger())

	userID := uuid.New()
	params := types.CreatePersonaParams{
		UserID:     userID,
		BudgetTier: types.BudgetTierLuxury,
	}
	// A revision comes back as a new row with a bumped version.
	repo.On("CreatePersona", mock.Anything, params).Return(&types.Persona{
		ID:         uuid.New(),
		UserID:     userID,
		Version:    3,
		BudgetTier: types.BudgetTierLuxury,
	}, nil).Once()

	p, err := svc.CreatePersona(context.Background(), params)

	require.NoError(t, err)
	assert.Equal(t, 3, p.Version)
	repo.AssertExpectations(t)
}
