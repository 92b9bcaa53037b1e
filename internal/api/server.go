// Package api exposes the directory over HTTP with gin.
package api

import (
	"context"
	"net/http"
	"time"

	"business-directory/internal/common/auth"
	"business-directory/internal/common/config"
	"business-directory/internal/common/database"
	"business-directory/internal/common/logger"
	"business-directory/internal/directory/contactgate"
	"business-directory/internal/directory/filter"
	"business-directory/internal/directory/service"
	"business-directory/internal/media"
	"business-directory/internal/models"

	"github.com/gin-gonic/gin"
)

// Directory is the part of *service.Service the handlers call.
type Directory interface {
	List(ctx context.Context, session models.Session, scope service.Scope) ([]*models.Listing, error)
	Query(ctx context.Context, session models.Session, scope service.Scope, c filter.Criteria) (*service.QueryResult, error)
	Search(ctx context.Context, session models.Session, c filter.Criteria) ([]*models.Listing, error)
	Get(ctx context.Context, session models.Session, id string) (*models.Listing, error)
	MyListing(ctx context.Context, session models.Session) (*models.Listing, error)
	Create(ctx context.Context, session models.Session, payload models.ListingPayload) (*models.Listing, error)
	Update(ctx context.Context, session models.Session, id string, payload models.ListingPayload) (*models.Listing, error)
	Delete(ctx context.Context, session models.Session, id string) (*models.Listing, error)
	RateListing(ctx context.Context, session models.Session, businessID string, score int, comment string) (*models.Listing, error)
	RemoveRating(ctx context.Context, session models.Session, businessID string) (*models.Listing, error)
	Ratings(ctx context.Context, businessID string) (*models.RatingSummary, error)
	RevealContact(ctx context.Context, session models.Session, businessID string) (*contactgate.RevealResult, error)
	SubmitLead(ctx context.Context, session models.Session, businessID string, form contactgate.LeadForm) (*contactgate.RevealResult, error)
	CancelContact(ctx context.Context, session models.Session, businessID string) (contactgate.State, error)
}

// TokenIssuer signs tokens for the login endpoint.
type TokenIssuer interface {
	Issue(p models.Principal) (string, time.Time, error)
}

type Options struct {
	Directory     Directory
	Authenticator auth.Authenticator
	Issuer        TokenIssuer // optional; disables /api/auth/login when nil
	Users         []config.UserCredential
	Media         media.Store // optional; disables /api/media when nil
	Health        []database.Pinger
	Logger        logger.Logger
	Mode          string // gin mode
}

type Server struct {
	dir    Directory
	authn  auth.Authenticator
	issuer TokenIssuer
	users  []config.UserCredential
	media  media.Store
	health []database.Pinger
	logger logger.Logger
	engine *gin.Engine
}

func New(opts Options) *Server {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	s := &Server{
		dir:    opts.Directory,
		authn:  opts.Authenticator,
		issuer: opts.Issuer,
		users:  opts.Users,
		media:  opts.Media,
		health: opts.Health,
		logger: log.WithFields(map[string]interface{}{"component": "http-api"}),
		engine: gin.New(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine
	r.Use(gin.Recovery(), s.observe(), s.session(), s.authenticate())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")

	api.POST("/auth/login", s.handleLogin)
	api.GET("/media/:ref", s.handleMedia)

	biz := api.Group("/business")
	{
		biz.GET("", s.handleList)
		biz.GET("/facets", s.handleFacets)
		biz.GET("/search", s.handleSearch)
		biz.GET("/my-business", s.handleMyListing)
		biz.POST("", s.handleCreate)
		biz.GET("/:id", s.handleGet)
		biz.PUT("/:id", s.handleUpdate)
		biz.DELETE("/:id", s.handleDelete)

		biz.POST("/:id/contact/reveal", s.handleReveal)
		biz.POST("/:id/contact/lead", s.handleLead)
		biz.POST("/:id/contact/cancel", s.handleCancelContact)

		admin := biz.Group("/admin", s.requireAdmin())
		admin.GET("/all", s.handleAdminList(service.AdminAll()))
		admin.GET("/listings", s.handleAdminList(service.AdminAdminOnly()))
		admin.GET("/public-listings", s.handleAdminList(service.AdminUserOnly()))
		admin.POST("", s.handleCreate)
		admin.PUT("/:id", s.handleUpdate)
		admin.DELETE("/:id", s.handleDelete)
	}

	rating := api.Group("/rating")
	{
		rating.GET("/:businessId", s.handleRatings)
		rating.POST("/:businessId", s.handleRate)
		rating.DELETE("/:businessId", s.handleUnrate)
	}
}
