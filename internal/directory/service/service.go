// Package service orchestrates the directory: it owns the listing snapshot,
// applies filtering and partitioning on demand, enforces who may mutate what,
// and is the one place storage and auth failures are translated into the
// error taxonomy.
package service

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"
	"time"

	"business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/common/metrics"
	"business-directory/internal/common/observability"
	"business-directory/internal/directory/contactgate"
	"business-directory/internal/directory/rating"
	"business-directory/internal/media"
	"business-directory/internal/models"
	"business-directory/internal/search"
	"business-directory/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

type Store = storage.Store

// Indexer mirrors listings into a full-text index. Implemented by
// *search.Index.
type Indexer interface {
	IndexListing(ctx context.Context, l *models.Listing) error
	DeleteListing(ctx context.Context, id string) error
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

type Config struct {
	RefreshInterval time.Duration
	StorageTimeout  time.Duration
	MaxImageBytes   int64
	RatingPolicy    rating.CreatedAtPolicy
}

func DefaultConfig() Config {
	return Config{
		RefreshInterval: 30 * time.Second,
		StorageTimeout:  5 * time.Second,
		MaxImageBytes:   media.MaxImageBytes,
		RatingPolicy:    rating.RefreshOnEdit,
	}
}

// Deps are the collaborators. Store is required; Media, Index, Gate and
// Obs may be nil.
type Deps struct {
	Store  Store
	Media  media.Store
	Index  Indexer
	Gate   *contactgate.Gate
	Obs    *observability.Observability
	Logger logger.Logger
}

type snapshot struct {
	listings   []*models.Listing
	loadedAt   time.Time
	generation uint64
}

// Service is safe for concurrent use.
type Service struct {
	config     Config
	store      Store
	media      media.Store
	index      Indexer
	gate       *contactgate.Gate
	obs        *observability.Observability
	logger     logger.Logger
	aggregator *rating.Aggregator
	now        func() time.Time

	mu         sync.RWMutex
	snap       *snapshot
	generation uint64
	loads      singleflight.Group
}

// New fills zero config fields from DefaultConfig.
func New(config Config, deps Deps) *Service {
	def := DefaultConfig()
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = def.RefreshInterval
	}
	if config.StorageTimeout <= 0 {
		config.StorageTimeout = def.StorageTimeout
	}
	if config.MaxImageBytes <= 0 || config.MaxImageBytes > media.MaxImageBytes {
		config.MaxImageBytes = media.MaxImageBytes
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Service{
		config:     config,
		store:      deps.Store,
		media:      deps.Media,
		index:      deps.Index,
		gate:       deps.Gate,
		obs:        deps.Obs,
		logger:     log.WithFields(map[string]interface{}{"component": "directory-service"}),
		aggregator: rating.NewAggregator(config.RatingPolicy),
		now:        time.Now,
	}
}

// storageCtx bounds every storage call.
func (s *Service) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.StorageTimeout)
}

// translate maps storage failures into the taxonomy. Errors that already
// carry a code pass through untouched.
func translate(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsStandard(err); ok {
		return err
	}
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		return errors.NewNotFoundError(resource, id)
	case stderrors.Is(err, storage.ErrConflict):
		return errors.NewConflictError("You already have a business listing", "one listing per owner")
	default:
		return errors.NewUnavailableError("storage", err)
	}
}

// begin opens a span and returns a finish func that records the outcome in
// both the tracer and the operation metrics.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := s.now()
	ctx, span := s.obs.StartSpan(ctx, "directory."+op, attrs...)
	return ctx, func(err error) {
		status := "ok"
		if err != nil {
			status = string(errors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		}
		span.End()
		s.obs.RecordOperation(ctx, op, status, s.now().Sub(start))
	}
}

func (s *Service) recordMutation(op string, err error) {
	code := "ok"
	if err != nil {
		code = string(errors.CodeOf(err))
	}
	metrics.DirectoryMutations.WithLabelValues(op, code).Inc()
}

// invalidate marks the snapshot stale. Any load already in flight will be
// discarded rather than installed.
func (s *Service) invalidate() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// listings returns the current snapshot, reloading it when it is older than
// the refresh interval or was invalidated by a mutation. The slice and its
// elements are shared and must not be modified.
func (s *Service) listings(ctx context.Context) ([]*models.Listing, error) {
	s.mu.RLock()
	snap, gen := s.snap, s.generation
	s.mu.RUnlock()

	if snap != nil && snap.generation == gen && s.now().Sub(snap.loadedAt) < s.config.RefreshInterval {
		return snap.listings, nil
	}

	// Loads are shared per generation: a read that starts after a mutation
	// never joins a load that began before it.
	v, err, _ := s.loads.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		return s.reload(context.WithoutCancel(ctx), gen)
	})
	if err != nil {
		if snap != nil {
			metrics.SnapshotRefreshes.WithLabelValues("stale").Inc()
			s.logger.Warn("snapshot refresh failed, serving last good read", map[string]interface{}{
				"error":    err,
				"loadedAt": snap.loadedAt,
			})
			return snap.listings, nil
		}
		return nil, err
	}
	return v.([]*models.Listing), nil
}

func (s *Service) reload(ctx context.Context, gen uint64) ([]*models.Listing, error) {
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	loaded, err := s.store.ListListings(sctx)
	if err != nil {
		metrics.SnapshotRefreshes.WithLabelValues("error").Inc()
		return nil, translate(err, "Listing", "")
	}

	s.mu.Lock()
	if s.generation == gen {
		s.snap = &snapshot{listings: loaded, loadedAt: s.now(), generation: gen}
	}
	s.mu.Unlock()

	metrics.SnapshotRefreshes.WithLabelValues("ok").Inc()
	return loaded, nil
}

// mirror pushes a changed listing to the search index. Index failures are
// never surfaced to the caller.
func (s *Service) mirror(ctx context.Context, l *models.Listing, deleted bool) {
	if s.index == nil {
		return
	}
	ictx, cancel := s.storageCtx(context.WithoutCancel(ctx))
	defer cancel()

	var err error
	if deleted {
		err = s.index.DeleteListing(ictx, l.ID)
	} else {
		err = s.index.IndexListing(ictx, l)
	}
	if err != nil {
		s.logger.Warn("search index update failed", map[string]interface{}{
			"listingId": l.ID,
			"deleted":   deleted,
			"error":     err,
		})
	}
}

// present shapes a listing for the caller: the phone number is only shown
// to the owner and admins, everyone else goes through the contact gate.
func present(session models.Session, l *models.Listing) *models.Listing {
	if can(opSeePhone, session, subject{ownerID: l.OwnerID}) {
		return l.Clone()
	}
	return l.WithoutPhone()
}

func presentAll(session models.Session, in []*models.Listing) []*models.Listing {
	out := make([]*models.Listing, len(in))
	for i, l := range in {
		out[i] = present(session, l)
	}
	return out
}
