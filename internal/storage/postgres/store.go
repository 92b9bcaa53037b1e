package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"business-directory/internal/common/metrics"
	"business-directory/internal/directory/rating"
	"business-directory/internal/models"
	"business-directory/internal/storage"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const listingColumns = `id, name, category, description, email, phone, address, city, image,
	owner_id, is_admin_listing, average_rating, total_ratings, created_at, updated_at`

const ratingColumns = `id, business_id, user_id, user_name, score, comment, created_at`

type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate applies the schema inside one transaction.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range migrations {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.StorageDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// translate maps driver errors onto the storage sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", storage.ErrConflict, pqErr.Constraint)
		case "22P02": // malformed uuid: no such row can exist
			return storage.ErrNotFound
		}
	}
	return err
}

func (s *Store) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	defer observe("get_listing")()

	var l models.Listing
	if err := s.db.GetContext(ctx, &l, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id); err != nil {
		return nil, translate(err)
	}
	if err := s.attachRatings(ctx, s.db, []*models.Listing{&l}); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) ListListings(ctx context.Context) ([]*models.Listing, error) {
	defer observe("list_listings")()
	return s.selectListings(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY created_at, id`)
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*models.Listing, error) {
	defer observe("list_by_owner")()
	return s.selectListings(ctx, `SELECT `+listingColumns+` FROM listings WHERE owner_id = $1 ORDER BY created_at, id`, ownerID)
}

func (s *Store) selectListings(ctx context.Context, query string, args ...interface{}) ([]*models.Listing, error) {
	var rows []*models.Listing
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, translate(err)
	}
	if err := s.attachRatings(ctx, s.db, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// attachRatings loads ratings for every listing in one query, in submission
// order, and fills Ratings. Derived columns are trusted as stored.
func (s *Store) attachRatings(ctx context.Context, q sqlx.QueryerContext, listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	byID := make(map[string]*models.Listing, len(listings))
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		l.Ratings = []models.Rating{}
		byID[l.ID] = l
		ids = append(ids, l.ID)
	}

	var ratings []models.Rating
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE business_id = ANY($1::uuid[]) ORDER BY business_id, seq`
	if err := sqlx.SelectContext(ctx, q, &ratings, query, pq.Array(ids)); err != nil {
		return translate(err)
	}

	for _, r := range ratings {
		if l, ok := byID[r.BusinessID]; ok {
			l.Ratings = append(l.Ratings, r)
		}
	}
	return nil
}

func (s *Store) InsertListing(ctx context.Context, l *models.Listing) error {
	defer observe("insert_listing")()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES (:id, :name, :category, :description, :email, :phone, :address, :city, :image,
			:owner_id, :is_admin_listing, :average_rating, :total_ratings, :created_at, :updated_at)`, l)
	return translate(err)
}

// UpdateListing writes the editable fields. Ownership, ratings and
// createdAt are never touched here.
func (s *Store) UpdateListing(ctx context.Context, l *models.Listing) error {
	defer observe("update_listing")()

	res, err := s.db.NamedExecContext(ctx, `
		UPDATE listings SET
			name = :name, category = :category, description = :description, email = :email,
			phone = :phone, address = :address, city = :city, image = :image, updated_at = :updated_at
		WHERE id = :id`, l)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}

func (s *Store) DeleteListing(ctx context.Context, id string) error {
	defer observe("delete_listing")()

	res, err := s.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) MutateRatings(ctx context.Context, businessID string, fn storage.MutateFunc) (*models.Listing, error) {
	defer observe("mutate_ratings")()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rating tx: %w", err)
	}
	defer tx.Rollback()

	var l models.Listing
	if err := tx.GetContext(ctx, &l, `SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, businessID); err != nil {
		return nil, translate(err)
	}
	if err := s.attachRatings(ctx, tx, []*models.Listing{&l}); err != nil {
		return nil, err
	}

	before := make(map[string]models.Rating, len(l.Ratings))
	for _, r := range l.Ratings {
		before[r.ID] = r
	}

	if err := fn(&l); err != nil {
		return nil, err
	}
	// the derived columns are written from the ratings, never trusted from fn
	rating.Recompute(&l)
	l.UpdatedAt = s.now().UTC()

	if err := writeRatingDiff(ctx, tx, before, l.Ratings); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE listings SET average_rating = $1, total_ratings = $2, updated_at = $3 WHERE id = $4`,
		l.AverageRating, l.TotalRatings, l.UpdatedAt, l.ID,
	); err != nil {
		return nil, translate(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rating tx: %w", err)
	}
	return &l, nil
}

func writeRatingDiff(ctx context.Context, tx *sqlx.Tx, before map[string]models.Rating, after []models.Rating) error {
	seen := make(map[string]bool, len(after))
	for _, r := range after {
		seen[r.ID] = true
		old, existed := before[r.ID]
		switch {
		case !existed:
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO ratings (`+ratingColumns+`)
				VALUES (:id, :business_id, :user_id, :user_name, :score, :comment, :created_at)`, r); err != nil {
				return translate(err)
			}
		case old != r:
			if _, err := tx.NamedExecContext(ctx, `
				UPDATE ratings SET user_name = :user_name, score = :score, comment = :comment, created_at = :created_at
				WHERE id = :id`, r); err != nil {
				return translate(err)
			}
		}
	}

	for id := range before {
		if !seen[id] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM ratings WHERE id = $1`, id); err != nil {
				return translate(err)
			}
		}
	}
	return nil
}
