package service

import (
	"context"

	"business-directory/internal/common/metrics"
	"business-directory/internal/directory/filter"
	"business-directory/internal/models"
	"business-directory/internal/search"

	"go.opentelemetry.io/otel/attribute"
)

// Search ranks public listings by relevance through the search index. When
// no index is configured, or it fails, it falls back to filtering the
// snapshot, which keeps storage order.
func (s *Service) Search(ctx context.Context, session models.Session, c filter.Criteria) (_ []*models.Listing, err error) {
	ctx, done := s.begin(ctx, "search", attribute.String("q", c.Text))
	defer func() { done(err) }()

	metrics.DirectoryQueries.WithLabelValues("search").Inc()

	all, err := s.listings(ctx)
	if err != nil {
		return nil, err
	}

	if s.index != nil && c.Text != "" {
		ictx, cancel := s.storageCtx(ctx)
		res, ierr := s.index.Search(ictx, search.Query{Text: c.Text, Category: string(c.Category), City: c.City})
		cancel()
		if ierr == nil {
			return presentAll(session, byIDs(all, res.IDs)), nil
		}
		s.logger.Warn("search index unavailable, filtering snapshot", map[string]interface{}{"error": ierr})
	}

	return presentAll(session, filter.Apply(all, c)), nil
}

// byIDs resolves index hits against the snapshot, in hit order. Hits for
// listings the snapshot no longer has are dropped.
func byIDs(all []*models.Listing, ids []string) []*models.Listing {
	index := make(map[string]*models.Listing, len(all))
	for _, l := range all {
		index[l.ID] = l
	}
	out := make([]*models.Listing, 0, len(ids))
	for _, id := range ids {
		if l, ok := index[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Reindex rebuilds the search index from storage.
func (s *Service) Reindex(ctx context.Context, ix *search.Index) (int, error) {
	sctx, cancel := s.storageCtx(ctx)
	all, err := s.store.ListListings(sctx)
	cancel()
	if err != nil {
		return 0, translate(err, "Listing", "")
	}
	return ix.Reindex(ctx, all)
}
