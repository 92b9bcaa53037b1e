package service

import (
	"context"
	"strings"

	"business-directory/internal/directory/rating"
	"business-directory/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

// RateListing records the caller's score for a business, replacing any
// earlier rating of theirs.
func (s *Service) RateListing(ctx context.Context, session models.Session, businessID string, score int, comment string) (_ *models.Listing, err error) {
	ctx, done := s.begin(ctx, "rate", attribute.String("listing.id", businessID))
	defer func() {
		s.recordMutation("rate", err)
		done(err)
	}()

	if err := authorize(opRate, session, subject{}); err != nil {
		return nil, err
	}
	if err := rating.ValidateScore(score); err != nil {
		return nil, err
	}

	sub := rating.Submission{
		UserID:   session.UserID(),
		UserName: session.Principal.Name,
		Score:    score,
		Comment:  strings.TrimSpace(comment),
	}
	return s.mutateRatings(ctx, session, businessID, func(l *models.Listing) error {
		_, err := s.aggregator.Submit(l, sub, s.now().UTC())
		return err
	})
}

// RemoveRating deletes the caller's rating for a business.
func (s *Service) RemoveRating(ctx context.Context, session models.Session, businessID string) (_ *models.Listing, err error) {
	ctx, done := s.begin(ctx, "unrate", attribute.String("listing.id", businessID))
	defer func() {
		s.recordMutation("unrate", err)
		done(err)
	}()

	if err := authorize(opUnrate, session, subject{}); err != nil {
		return nil, err
	}

	return s.mutateRatings(ctx, session, businessID, func(l *models.Listing) error {
		_, err := s.aggregator.Remove(l, session.UserID())
		return err
	})
}

func (s *Service) mutateRatings(ctx context.Context, session models.Session, businessID string, fn func(*models.Listing) error) (*models.Listing, error) {
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	l, err := s.store.MutateRatings(sctx, businessID, fn)
	if err != nil {
		return nil, translate(err, "Listing", businessID)
	}

	s.invalidate()
	s.mirror(ctx, l, false)
	return present(session, l), nil
}

// Ratings is the public read of a business's ratings.
func (s *Service) Ratings(ctx context.Context, businessID string) (_ *models.RatingSummary, err error) {
	ctx, done := s.begin(ctx, "ratings", attribute.String("listing.id", businessID))
	defer func() { done(err) }()

	l, err := s.load(ctx, businessID)
	if err != nil {
		return nil, err
	}
	summary := rating.Summary(l)
	return &summary, nil
}
