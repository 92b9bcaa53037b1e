package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"business-directory/internal/directory/rating"
	"business-directory/internal/models"
	"business-directory/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func owned(id, owner string) *models.Listing {
	l := &models.Listing{ID: id, Name: id, Category: models.CategoryRetail}
	if owner != "" {
		l.OwnerID = &owner
	} else {
		l.IsAdminListing = true
	}
	return l
}

func TestInsertAndList_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, l := range []*models.Listing{owned("a", "u1"), owned("b", ""), owned("c", "u2")} {
		require.NoError(t, s.InsertListing(ctx, l))
	}

	all, err := s.ListListings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	mine, err := s.ListByOwner(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "c", mine[0].ID)
}

func TestInsert_OneListingPerOwner(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.InsertListing(ctx, owned("a", "u1")))
	assert.ErrorIs(t, s.InsertListing(ctx, owned("b", "u1")), storage.ErrConflict)

	// admin listings have no owner limit
	require.NoError(t, s.InsertListing(ctx, owned("c", "")))
	require.NoError(t, s.InsertListing(ctx, owned("d", "")))
}

func TestReturnedListingsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertListing(ctx, owned("a", "u1")))

	got, err := s.GetListing(ctx, "a")
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := s.GetListing(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Name)
}

func TestUpdateKeepsOwnershipAndRatings(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertListing(ctx, owned("a", "u1")))

	agg := rating.NewAggregator(rating.RefreshOnEdit)
	_, err := s.MutateRatings(ctx, "a", func(l *models.Listing) error {
		_, err := agg.Submit(l, rating.Submission{UserID: "u9", Score: 4}, time.Now())
		return err
	})
	require.NoError(t, err)

	other := "intruder"
	require.NoError(t, s.UpdateListing(ctx, &models.Listing{ID: "a", Name: "Renamed", OwnerID: &other}))

	got, err := s.GetListing(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.True(t, got.OwnedBy("u1"))
	assert.Equal(t, 1, got.TotalRatings)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertListing(ctx, owned("a", "u1")))

	require.NoError(t, s.DeleteListing(ctx, "a"))
	assert.ErrorIs(t, s.DeleteListing(ctx, "a"), storage.ErrNotFound)
	_, err := s.GetListing(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// the owner may register again once their listing is gone
	require.NoError(t, s.InsertListing(ctx, owned("b", "u1")))
}

func TestMutateRatings_ConcurrentSubmissionsDoNotTear(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertListing(ctx, owned("a", "")))

	agg := rating.NewAggregator(rating.RefreshOnEdit)
	const users = 50

	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.MutateRatings(ctx, "a", func(l *models.Listing) error {
				_, err := agg.Submit(l, rating.Submission{UserID: fmt.Sprintf("u%d", i), Score: i%5 + 1}, time.Now())
				return err
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.GetListing(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, users, got.TotalRatings)
	assert.Len(t, got.Ratings, users)
	assert.InDelta(t, 3.0, got.AverageRating, 1e-9)
}

func TestMutateRatings_Missing(t *testing.T) {
	s := New()
	_, err := s.MutateRatings(context.Background(), "nope", func(*models.Listing) error { return nil })
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, s.locks)
}

func TestDelete_ReleasesRatingLock(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertListing(ctx, owned("a", "")))

	_, err := s.MutateRatings(ctx, "a", func(l *models.Listing) error {
		_, err := rating.NewAggregator(rating.RefreshOnEdit).
			Submit(l, rating.Submission{UserID: "u1", Score: 4}, time.Now())
		return err
	})
	require.NoError(t, err)
	require.Contains(t, s.locks, "a")

	require.NoError(t, s.DeleteListing(ctx, "a"))
	assert.NotContains(t, s.locks, "a")
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().ListListings(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
