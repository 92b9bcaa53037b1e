// Package filter narrows a listing collection by free text and facets.
// Everything here is pure and safe to call concurrently on shared snapshots.
package filter

import (
	"sort"
	"strings"

	"business-directory/internal/models"
)

// Criteria is conjunctive; a zero-valued field matches everything.
type Criteria struct {
	Text     string          `json:"q,omitempty" form:"q"`
	Category models.Category `json:"category,omitempty" form:"category"`
	City     string          `json:"city,omitempty" form:"city"`
}

func (c Criteria) IsEmpty() bool {
	return c.Text == "" && c.Category == "" && c.City == ""
}

// Apply returns the listings matching c in their input order.
func Apply(listings []*models.Listing, c Criteria) []*models.Listing {
	out := make([]*models.Listing, 0, len(listings))
	text := strings.ToLower(c.Text)
	city := strings.ToLower(c.City)

	for _, l := range listings {
		if text != "" && !matchesText(l, text) {
			continue
		}
		if c.Category != "" && l.Category != c.Category {
			continue
		}
		// City is a facet: exact after case folding, no trimming.
		if city != "" && strings.ToLower(l.City) != city {
			continue
		}
		out = append(out, l)
	}
	return out
}

func matchesText(l *models.Listing, lowered string) bool {
	return strings.Contains(strings.ToLower(l.Name), lowered) ||
		strings.Contains(strings.ToLower(l.Description), lowered)
}

// Cities returns the distinct, case-preserved cities of the unfiltered
// collection in lexicographic order.
func Cities(listings []*models.Listing) []string {
	seen := make(map[string]struct{}, len(listings))
	out := make([]string, 0)
	for _, l := range listings {
		if l.City == "" {
			continue
		}
		if _, ok := seen[l.City]; ok {
			continue
		}
		seen[l.City] = struct{}{}
		out = append(out, l.City)
	}
	sort.Strings(out)
	return out
}

// Categories returns the categories present in listings, in catalogue order.
func Categories(listings []*models.Listing) []models.Category {
	present := make(map[models.Category]struct{})
	for _, l := range listings {
		present[l.Category] = struct{}{}
	}

	out := make([]models.Category, 0, len(present))
	for _, c := range models.Categories {
		if _, ok := present[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
