// Package storage defines the persistence contract for listings and their
// ratings. Implementations report absence and uniqueness violations with the
// sentinels below; anything else is treated as a transient backend failure.
package storage

import (
	"context"
	stderrors "errors"

	"business-directory/internal/models"
)

var (
	ErrNotFound = stderrors.New("storage: not found")
	ErrConflict = stderrors.New("storage: conflict")
)

// MutateFunc edits a listing's ratings in place. Returning an error aborts
// the mutation and leaves storage untouched.
type MutateFunc func(l *models.Listing) error

type Store interface {
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	ListListings(ctx context.Context) ([]*models.Listing, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Listing, error)
	InsertListing(ctx context.Context, l *models.Listing) error
	UpdateListing(ctx context.Context, l *models.Listing) error
	DeleteListing(ctx context.Context, id string) error

	// MutateRatings runs fn against the current listing with all other
	// rating mutations for the same business excluded, and persists the
	// ratings and derived fields atomically.
	MutateRatings(ctx context.Context, businessID string, fn MutateFunc) (*models.Listing, error)
}
