package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDateRangeDays_IsInclusive(t *testing.T) {
	r := DateRange{Start: date(2027, time.May, 1), End: date(2027, time.May, 1)}
	assert.Equal(t, 1, r.Days())

	r = DateRange{Start: date(2027, time.May, 1), End: date(2027, time.May, 5)}
	assert.Equal(t, 5, r.Days())
}

func TestDateRangeDays_IgnoresZoneOffsets(t *testing.T) {
	// A range spanning a DST switch carries timestamps with different UTC
	// offsets; the civil-date count must not shrink because of the lost hour.
	cet := time.FixedZone("CET", 1*60*60)
	cest := time.FixedZone("CEST", 2*60*60)
	r := DateRange{
		Start: time.Date(2027, time.March, 27, 0, 0, 0, 0, cet),
		End:   time.Date(2027, time.March, 30, 0, 0, 0, 0, cest),
	}
	assert.Equal(t, 4, r.Days())

	// Mixed UTC and positive-offset timestamps on the same civil dates.
	r = DateRange{
		Start: time.Date(2027, time.May, 1, 12, 0, 0, 0, cest),
		End:   time.Date(2027, time.May, 5, 8, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, 5, r.Days())
}

func TestDateRangeValidate(t *testing.T) {
	now := date(2027, time.May, 10)

	tests := []struct {
		name    string
		r       DateRange
		wantErr bool
	}{
		{"valid future range", DateRange{Start: date(2027, time.May, 20), End: date(2027, time.May, 25)}, false},
		{"starts today", DateRange{Start: date(2027, time.May, 10), End: date(2027, time.May, 12)}, false},
		{"single day", DateRange{Start: date(2027, time.May, 20), End: date(2027, time.May, 20)}, false},
		{"end before start", DateRange{Start: date(2027, time.May, 25), End: date(2027, time.May, 20)}, true},
		{"starts in the past", DateRange{Start: date(2027, time.May, 9), End: date(2027, time.May, 20)}, true},
		{"missing end", DateRange{Start: date(2027, time.May, 20)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate(now)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQueryContextMode_ExactlyOneVariant(t *testing.T) {
	_, err := QueryContext{}.Mode()
	assert.ErrorIs(t, err, ErrValidation)

	_, err = QueryContext{Filter: &FilterQuery{}, Vector: &VectorQuery{}}.Mode()
	assert.ErrorIs(t, err, ErrValidation)

	mode, err := QueryContext{Filter: &FilterQuery{Region: "Alps"}}.Mode()
	require.NoError(t, err)
	assert.Equal(t, SearchModeFilter, mode)

	mode, err = QueryContext{Vector: &VectorQuery{FreeTextIntent: "snow"}}.Mode()
	require.NoError(t, err)
	assert.Equal(t, SearchModeVector, mode)
}

func TestQueryContextHash_StableAndDiscriminating(t *testing.T) {
	a := QueryContext{Filter: &FilterQuery{Region: "Alps", Budget: BudgetTierBudget}}
	b := QueryContext{Filter: &FilterQuery{Region: "Alps", Budget: BudgetTierBudget}}
	c := QueryContext{Filter: &FilterQuery{Region: "Alps", Budget: BudgetTierLuxury}}

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.NotEmpty(t, a.Hash())
}

func TestPersonaHasPreferences(t *testing.T) {
	assert.False(t, (&Persona{Companions: "partner"}).HasPreferences())
	assert.True(t, (&Persona{BudgetTier: BudgetTierBudget}).HasPreferences())
	assert.True(t, (&Persona{ActivityTags: []string{"food"}}).HasPreferences())
}

func TestCandidateShown(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	s := &TripSession{ShownCandidates: []CandidateResult{{ID: a, Name: "Lisbon"}}}

	got, ok := s.CandidateShown(a)
	require.True(t, ok)
	assert.Equal(t, "Lisbon", got.Name)

	_, ok = s.CandidateShown(b)
	assert.False(t, ok)
}

func TestTimeSlotValid(t *testing.T) {
	assert.True(t, TimeSlotMorning.Valid())
	assert.True(t, TimeSlotEvening.Valid())
	assert.False(t, TimeSlot("midnight").Valid())
}
