package rating

import (
	"math/rand"
	"testing"
	"time"

	"business-directory/internal/common/errors"
	"business-directory/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newListing() *models.Listing {
	return &models.Listing{ID: "biz-1", Name: "Joe's Pizza", Category: models.CategoryRestaurant, City: "Austin"}
}

func assertConsistent(t *testing.T, l *models.Listing) {
	t.Helper()
	require.Equal(t, len(l.Ratings), l.TotalRatings)
	if len(l.Ratings) == 0 {
		assert.Zero(t, l.AverageRating)
		return
	}
	sum := 0
	for _, r := range l.Ratings {
		sum += r.Score
	}
	assert.InDelta(t, float64(sum)/float64(len(l.Ratings)), l.AverageRating, 1e-9)
}

func TestJoesPizzaScenario(t *testing.T) {
	agg := NewAggregator(RefreshOnEdit)
	l := newListing()

	_, err := agg.Submit(l, Submission{UserID: "U1", UserName: "Ann", Score: 5}, t0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, l.AverageRating)
	assert.Equal(t, 1, l.TotalRatings)

	_, err = agg.Submit(l, Submission{UserID: "U2", UserName: "Bob", Score: 1}, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3.0, l.AverageRating)
	assert.Equal(t, 2, l.TotalRatings)

	_, err = agg.Remove(l, "U1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, l.AverageRating)
	assert.Equal(t, 1, l.TotalRatings)
}

func TestSubmit_ScoreOutOfRange(t *testing.T) {
	agg := NewAggregator(RefreshOnEdit)

	for _, score := range []int{0, 6, -1} {
		l := newListing()
		_, err := agg.Submit(l, Submission{UserID: "U1", Score: score}, t0)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))
		assert.Empty(t, l.Ratings, "listing must be untouched")
	}
}

func TestSubmit_ResubmissionReplacesInPlace(t *testing.T) {
	tests := []struct {
		name          string
		policy        CreatedAtPolicy
		wantCreatedAt time.Time
	}{
		{"refresh on edit", RefreshOnEdit, t0.Add(time.Hour)},
		{"preserve on edit", PreserveOnEdit, t0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(tt.policy)
			l := newListing()

			_, err := agg.Submit(l, Submission{UserID: "U1", Score: 2, Comment: "meh"}, t0)
			require.NoError(t, err)
			_, err = agg.Submit(l, Submission{UserID: "U2", Score: 4}, t0)
			require.NoError(t, err)
			firstID := l.Ratings[0].ID

			_, err = agg.Submit(l, Submission{UserID: "U1", Score: 5, Comment: "great now"}, t0.Add(time.Hour))
			require.NoError(t, err)

			require.Len(t, l.Ratings, 2)
			assert.Equal(t, firstID, l.Ratings[0].ID)
			assert.Equal(t, "U1", l.Ratings[0].UserID)
			assert.Equal(t, 5, l.Ratings[0].Score)
			assert.Equal(t, "great now", l.Ratings[0].Comment)
			assert.Equal(t, tt.wantCreatedAt, l.Ratings[0].CreatedAt)
			assert.Equal(t, 4.5, l.AverageRating)
		})
	}
}

func TestRemove_Missing(t *testing.T) {
	agg := NewAggregator(RefreshOnEdit)
	_, err := agg.Remove(newListing(), "nobody")
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestRemove_LastRatingResetsToZero(t *testing.T) {
	agg := NewAggregator(RefreshOnEdit)
	l := newListing()
	_, _ = agg.Submit(l, Submission{UserID: "U1", Score: 3}, t0)

	_, err := agg.Remove(l, "U1")
	require.NoError(t, err)
	assert.Zero(t, l.TotalRatings)
	assert.Zero(t, l.AverageRating)
}

func TestInvariantHoldsForRandomSequences(t *testing.T) {
	agg := NewAggregator(RefreshOnEdit)
	rng := rand.New(rand.NewSource(42))
	users := []string{"a", "b", "c", "d", "e"}

	for round := 0; round < 50; round++ {
		l := newListing()
		for step := 0; step < 40; step++ {
			user := users[rng.Intn(len(users))]
			if rng.Intn(3) == 0 {
				_, _ = agg.Remove(l, user)
			} else {
				before := l.TotalRatings
				existed := l.RatingBy(user) >= 0
				_, err := agg.Submit(l, Submission{UserID: user, Score: 1 + rng.Intn(5)}, t0)
				require.NoError(t, err)
				if existed {
					assert.Equal(t, before, l.TotalRatings, "resubmission must not grow the count")
				}
			}
			assertConsistent(t, l)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("preserve")
	require.NoError(t, err)
	assert.Equal(t, PreserveOnEdit, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, RefreshOnEdit, p)

	_, err = ParsePolicy("never")
	assert.Error(t, err)
}
