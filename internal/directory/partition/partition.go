// Package partition splits listings into admin-authored and user-authored
// sets for tabbed views.
package partition

import "business-directory/internal/models"

// Partition holds the same listings three ways. Every listing appears in All
// and in exactly one of the authored subsets.
type Partition struct {
	All           []*models.Listing `json:"all"`
	AdminAuthored []*models.Listing `json:"adminAuthored"`
	UserAuthored  []*models.Listing `json:"userAuthored"`
}

// Counts are the subset sizes shown on tab labels.
type Counts struct {
	All           int `json:"all"`
	AdminAuthored int `json:"adminAuthored"`
	UserAuthored  int `json:"userAuthored"`
}

// Split is recomputed from listings on every call; order within each subset
// follows the input.
func Split(listings []*models.Listing) Partition {
	p := Partition{
		All:           listings,
		AdminAuthored: make([]*models.Listing, 0),
		UserAuthored:  make([]*models.Listing, 0),
	}
	for _, l := range listings {
		if l.IsAdminListing {
			p.AdminAuthored = append(p.AdminAuthored, l)
		} else {
			p.UserAuthored = append(p.UserAuthored, l)
		}
	}
	return p
}

// Counts returns the size of each subset.
func (p Partition) Counts() Counts {
	return Counts{
		All:           len(p.All),
		AdminAuthored: len(p.AdminAuthored),
		UserAuthored:  len(p.UserAuthored),
	}
}
