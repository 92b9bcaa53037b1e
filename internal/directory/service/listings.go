package service

import (
	"context"
	stderrors "errors"
	"path"

	"business-directory/internal/common/errors"
	"business-directory/internal/common/metrics"
	"business-directory/internal/directory/filter"
	"business-directory/internal/directory/partition"
	"business-directory/internal/media"
	"business-directory/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// QueryResult is a filtered page of listings plus the facets for the
// filter controls.
type QueryResult struct {
	Listings   []*models.Listing `json:"listings"`
	Cities     []string          `json:"cities"`
	Categories []models.Category `json:"categories"`
	Counts     partition.Counts  `json:"counts"`
}

// List returns the listings visible in scope, in storage order.
func (s *Service) List(ctx context.Context, session models.Session, scope Scope) (_ []*models.Listing, err error) {
	ctx, done := s.begin(ctx, "list", attribute.String("scope", scope.String()))
	defer func() { done(err) }()

	op, sub := scope.operation()
	if err := authorize(op, session, sub); err != nil {
		return nil, err
	}
	metrics.DirectoryQueries.WithLabelValues(scope.String()).Inc()

	all, err := s.listings(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Listing, 0, len(all))
	for _, l := range all {
		if scope.admits(l) {
			out = append(out, present(session, l))
		}
	}
	return out, nil
}

// Query narrows the scoped listings by criteria. Facets and counts are
// derived from the unfiltered scoped collection.
func (s *Service) Query(ctx context.Context, session models.Session, scope Scope, c filter.Criteria) (*QueryResult, error) {
	scoped, err := s.List(ctx, session, scope)
	if err != nil {
		return nil, err
	}

	return &QueryResult{
		Listings:   filter.Apply(scoped, c),
		Cities:     filter.Cities(scoped),
		Categories: filter.Categories(scoped),
		Counts:     partition.Split(scoped).Counts(),
	}, nil
}

// Get fetches one listing straight from storage.
func (s *Service) Get(ctx context.Context, session models.Session, id string) (_ *models.Listing, err error) {
	ctx, done := s.begin(ctx, "get", attribute.String("listing.id", id))
	defer func() { done(err) }()

	l, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return present(session, l), nil
}

func (s *Service) load(ctx context.Context, id string) (*models.Listing, error) {
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	l, err := s.store.GetListing(sctx, id)
	if err != nil {
		return nil, translate(err, "Listing", id)
	}
	return l, nil
}

// MyListing returns the caller's own listing.
func (s *Service) MyListing(ctx context.Context, session models.Session) (_ *models.Listing, err error) {
	ctx, done := s.begin(ctx, "my_listing")
	defer func() { done(err) }()

	if err := authorize(opMyListing, session, subject{}); err != nil {
		return nil, err
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	owned, err := s.store.ListByOwner(sctx, session.UserID())
	if err != nil {
		return nil, translate(err, "Listing", "")
	}
	if len(owned) == 0 {
		return nil, errors.NewNotFoundError("Listing", "owner:"+session.UserID())
	}
	return owned[0], nil
}

// Create registers a listing. Customers get one listing they own; admins
// author unowned admin listings without limit.
func (s *Service) Create(ctx context.Context, session models.Session, payload models.ListingPayload) (_ *models.Listing, err error) {
	ctx, done := s.begin(ctx, "create")
	defer func() {
		s.recordMutation("create", err)
		done(err)
	}()

	if err := authorize(opCreate, session, subject{}); err != nil {
		return nil, err
	}

	payload, err = validatePayload(normalizePayload(payload), s.config.MaxImageBytes)
	if err != nil {
		return nil, err
	}
	if err := checkImageRef(payload, ""); err != nil {
		return nil, err
	}

	admin := session.IsAdmin()
	if !admin {
		if err := s.ensureNoListing(ctx, session.UserID()); err != nil {
			return nil, err
		}
	}

	image, err := s.storeImage(ctx, payload)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	l := &models.Listing{
		ID:             uuid.NewString(),
		Name:           payload.Name,
		Category:       payload.Category,
		Description:    payload.Description,
		Email:          payload.Email,
		Phone:          payload.Phone,
		Address:        payload.Address,
		City:           payload.City,
		Image:          image,
		IsAdminListing: admin,
		Ratings:        []models.Rating{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !admin {
		owner := session.UserID()
		l.OwnerID = &owner
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()
	if err := s.store.InsertListing(sctx, l); err != nil {
		s.discardImage(ctx, image, "")
		return nil, translate(err, "Listing", l.ID)
	}

	s.invalidate()
	s.mirror(ctx, l, false)
	s.logger.Info("listing created", map[string]interface{}{
		"listingId": l.ID,
		"admin":     admin,
		"userId":    session.UserID(),
	})
	return l, nil
}

func (s *Service) ensureNoListing(ctx context.Context, ownerID string) error {
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	owned, err := s.store.ListByOwner(sctx, ownerID)
	if err != nil {
		return translate(err, "Listing", "")
	}
	if len(owned) > 0 {
		return errors.NewConflictError("You already have a business listing", "one listing per owner")
	}
	return nil
}

// Update rewrites the editable fields of a listing the caller owns, or any
// listing for admins.
func (s *Service) Update(ctx context.Context, session models.Session, id string, payload models.ListingPayload) (_ *models.Listing, err error) {
	ctx, done := s.begin(ctx, "update", attribute.String("listing.id", id))
	defer func() {
		s.recordMutation("update", err)
		done(err)
	}()

	if !session.Authenticated() {
		return nil, authorize(opUpdate, session, subject{})
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(opUpdate, session, subject{ownerID: current.OwnerID}); err != nil {
		return nil, err
	}

	payload, err = validatePayload(normalizePayload(payload), s.config.MaxImageBytes)
	if err != nil {
		return nil, err
	}
	if err := checkImageRef(payload, current.Image); err != nil {
		return nil, err
	}

	image := current.Image
	if len(payload.ImageData) > 0 {
		if image, err = s.storeImage(ctx, payload); err != nil {
			return nil, err
		}
	}

	next := current.Clone()
	next.Name = payload.Name
	next.Category = payload.Category
	next.Description = payload.Description
	next.Email = payload.Email
	next.Phone = payload.Phone
	next.Address = payload.Address
	next.City = payload.City
	next.Image = image
	next.UpdatedAt = s.now().UTC()

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()
	if err := s.store.UpdateListing(sctx, next); err != nil {
		s.discardImage(ctx, image, current.Image)
		return nil, translate(err, "Listing", id)
	}
	s.invalidate()

	if image != current.Image {
		s.discardImage(ctx, current.Image, "")
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mirror(ctx, updated, false)
	return updated, nil
}

// Delete removes a listing and its ratings, returning what was removed.
func (s *Service) Delete(ctx context.Context, session models.Session, id string) (_ *models.Listing, err error) {
	ctx, done := s.begin(ctx, "delete", attribute.String("listing.id", id))
	defer func() {
		s.recordMutation("delete", err)
		done(err)
	}()

	if !session.Authenticated() {
		return nil, authorize(opDelete, session, subject{})
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(opDelete, session, subject{ownerID: current.OwnerID}); err != nil {
		return nil, err
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()
	if err := s.store.DeleteListing(sctx, id); err != nil {
		return nil, translate(err, "Listing", id)
	}

	s.invalidate()
	s.discardImage(ctx, current.Image, "")
	s.mirror(ctx, current, true)
	s.logger.Info("listing deleted", map[string]interface{}{
		"listingId": id,
		"userId":    session.UserID(),
	})
	return current, nil
}

// storeImage uploads new image bytes. Without bytes there is nothing to
// store and the listing keeps no new reference.
func (s *Service) storeImage(ctx context.Context, p models.ListingPayload) (string, error) {
	if len(p.ImageData) == 0 {
		return "", nil
	}
	if s.media == nil {
		return "", errors.NewFieldError("image", "Image uploads are not enabled")
	}

	name := p.ImageName
	if name == "" {
		name = "listing-image"
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()
	ref, err := s.media.Put(sctx, path.Base(name), p.ImageData)
	if err != nil {
		if stderrors.Is(err, media.ErrTooLarge) {
			return "", media.AsValidation(err)
		}
		return "", errors.NewUnavailableError("media", err)
	}
	return ref, nil
}

// discardImage removes ref unless it is the reference being kept.
func (s *Service) discardImage(ctx context.Context, ref, keep string) {
	if s.media == nil || ref == "" || ref == keep {
		return
	}
	sctx, cancel := s.storageCtx(context.WithoutCancel(ctx))
	defer cancel()

	if err := s.media.Delete(sctx, ref); err != nil {
		s.logger.Warn("failed to remove image", map[string]interface{}{"ref": ref, "error": err})
	}
}
