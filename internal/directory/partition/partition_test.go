package partition

import (
	"fmt"
	"math/rand"
	"testing"

	"business-directory/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	owner := "u1"
	listings := []*models.Listing{
		{ID: "a", IsAdminListing: true},
		{ID: "b", OwnerID: &owner},
		{ID: "c", IsAdminListing: true},
	}

	p := Split(listings)

	assert.Equal(t, Counts{All: 3, AdminAuthored: 2, UserAuthored: 1}, p.Counts())
	assert.Equal(t, "a", p.AdminAuthored[0].ID)
	assert.Equal(t, "c", p.AdminAuthored[1].ID)
	assert.Equal(t, "b", p.UserAuthored[0].ID)
}

func TestSplit_Empty(t *testing.T) {
	p := Split(nil)
	assert.Equal(t, Counts{}, p.Counts())
	assert.NotNil(t, p.AdminAuthored)
	assert.NotNil(t, p.UserAuthored)
}

func TestSplit_CoversInputWithoutOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 100; round++ {
		n := rng.Intn(30)
		listings := make([]*models.Listing, n)
		for i := range listings {
			listings[i] = &models.Listing{ID: fmt.Sprintf("%d-%d", round, i), IsAdminListing: rng.Intn(2) == 0}
		}

		p := Split(listings)

		seen := map[string]int{}
		for _, l := range p.AdminAuthored {
			seen[l.ID]++
		}
		for _, l := range p.UserAuthored {
			seen[l.ID]++
		}
		assert.Len(t, seen, n)
		for id, count := range seen {
			assert.Equal(t, 1, count, id)
		}
	}
}

func TestSplit_TracksSourceChanges(t *testing.T) {
	listings := []*models.Listing{{ID: "a", IsAdminListing: true}}
	assert.Equal(t, 1, Split(listings).Counts().AdminAuthored)

	listings = append(listings, &models.Listing{ID: "b", IsAdminListing: true})
	assert.Equal(t, 2, Split(listings).Counts().AdminAuthored)
}
