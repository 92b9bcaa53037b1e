package filter

import (
	"testing"

	"business-directory/internal/models"

	"github.com/stretchr/testify/assert"
)

func listing(id, name, desc string, cat models.Category, city string) *models.Listing {
	return &models.Listing{ID: id, Name: name, Description: desc, Category: cat, City: city}
}

func fixture() []*models.Listing {
	return []*models.Listing{
		listing("1", "Joe's Pizza", "Wood fired pies", models.CategoryRestaurant, "Austin"),
		listing("2", "Byte Repair", "Laptop and phone repair", models.CategoryTechnology, "Lucknow"),
		listing("3", "Green Grocer", "Fresh pizza dough daily", models.CategoryRetail, "lucknow "),
		listing("4", "Taj Tiffin", "Home style meals", models.CategoryRestaurant, "LUCKNOW"),
		listing("5", "Austin Tutors", "Math coaching", models.CategoryEducation, "austin"),
	}
}

func ids(ls []*models.Listing) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.ID)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{"identity", Criteria{}, []string{"1", "2", "3", "4", "5"}},
		{"text matches name case-insensitively", Criteria{Text: "PIZZA"}, []string{"1", "3"}},
		{"text matches description", Criteria{Text: "repair"}, []string{"2"}},
		{"category exact", Criteria{Category: models.CategoryRestaurant}, []string{"1", "4"}},
		{"city case-insensitive exact untrimmed", Criteria{City: "Lucknow"}, []string{"2", "4"}},
		{"city is not substring", Criteria{City: "Luck"}, []string{}},
		{"conjunction", Criteria{Text: "t", Category: models.CategoryRestaurant, City: "lucknow"}, []string{"4"}},
		{"no match", Criteria{Text: "zzz"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(fixture(), tt.criteria)))
		})
	}
}

func TestApply_IdentityPreservesElements(t *testing.T) {
	in := fixture()
	out := Apply(in, Criteria{})

	assert.Len(t, out, len(in))
	for i := range in {
		assert.Same(t, in[i], out[i])
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := fixture()
	_ = Apply(in, Criteria{City: "Austin"})
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(in))
}

func TestCities(t *testing.T) {
	got := Cities(append(fixture(), listing("6", "No City", "", models.CategoryOther, "")))
	assert.Equal(t, []string{"Austin", "LUCKNOW", "Lucknow", "austin", "lucknow "}, got)
}

func TestCategories(t *testing.T) {
	assert.Equal(t,
		[]models.Category{models.CategoryRestaurant, models.CategoryRetail, models.CategoryTechnology, models.CategoryEducation},
		Categories(fixture()))
}
