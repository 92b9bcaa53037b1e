// Package memory is an in-process listing store for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"business-directory/internal/directory/rating"
	"business-directory/internal/models"
	"business-directory/internal/storage"
)

type Store struct {
	mu       sync.RWMutex
	listings map[string]*models.Listing
	order    []string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now func() time.Time
}

func New() *Store {
	return &Store{
		listings: make(map[string]*models.Listing),
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

func (s *Store) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return l.Clone(), nil
}

func (s *Store) ListListings(ctx context.Context) ([]*models.Listing, error) {
	return s.list(ctx, func(*models.Listing) bool { return true })
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*models.Listing, error) {
	return s.list(ctx, func(l *models.Listing) bool { return l.OwnedBy(ownerID) })
}

func (s *Store) list(ctx context.Context, keep func(*models.Listing) bool) ([]*models.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Listing, 0, len(s.order))
	for _, id := range s.order {
		if l := s.listings[id]; keep(l) {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (s *Store) InsertListing(ctx context.Context, l *models.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.listings[l.ID]; exists {
		return storage.ErrConflict
	}
	if l.OwnerID != nil {
		for _, existing := range s.listings {
			if existing.OwnedBy(*l.OwnerID) {
				return storage.ErrConflict
			}
		}
	}

	stored := l.Clone()
	if stored.Ratings == nil {
		stored.Ratings = []models.Rating{}
	}
	s.listings[l.ID] = stored
	s.order = append(s.order, l.ID)
	return nil
}

func (s *Store) UpdateListing(ctx context.Context, l *models.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.listings[l.ID]
	if !ok {
		return storage.ErrNotFound
	}
	next := current.Clone()
	next.Name = l.Name
	next.Category = l.Category
	next.Description = l.Description
	next.Email = l.Email
	next.Phone = l.Phone
	next.Address = l.Address
	next.City = l.City
	next.Image = l.Image
	next.UpdatedAt = l.UpdatedAt
	s.listings[l.ID] = next
	return nil
}

func (s *Store) DeleteListing(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.listings, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	s.locksMu.Lock()
	delete(s.locks, id)
	s.locksMu.Unlock()
	return nil
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	return m
}

// MutateRatings serializes per business with a dedicated mutex so the
// read-modify-write cannot interleave with another rating change.
func (s *Store) MutateRatings(ctx context.Context, businessID string, fn storage.MutateFunc) (*models.Listing, error) {
	s.mu.RLock()
	_, exists := s.listings[businessID]
	s.mu.RUnlock()
	if !exists {
		return nil, storage.ErrNotFound
	}

	lock := s.lockFor(businessID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.GetListing(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if err := fn(current); err != nil {
		return nil, err
	}
	rating.Recompute(current)
	current.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.listings[businessID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	stored.Ratings = current.Ratings
	stored.AverageRating = current.AverageRating
	stored.TotalRatings = current.TotalRatings
	stored.UpdatedAt = current.UpdatedAt
	return stored.Clone(), nil
}
