package main

import (
	"context"
	"fmt"
	"time"

	"business-directory/internal/common/auth"
	"business-directory/internal/common/camunda"
	"business-directory/internal/common/config"
	"business-directory/internal/common/database"
	httpclient "business-directory/internal/common/http"
	"business-directory/internal/common/logger"
	"business-directory/internal/common/observability"
	"business-directory/internal/common/zoho"
	"business-directory/internal/directory/contactgate"
	"business-directory/internal/directory/rating"
	"business-directory/internal/directory/service"
	"business-directory/internal/leads"
	"business-directory/internal/media"
	"business-directory/internal/search"
	"business-directory/internal/storage"
	"business-directory/internal/storage/memory"
	"business-directory/internal/storage/postgres"
)

// app holds every backend the commands share. Fields are nil when the
// corresponding backend is not configured.
type app struct {
	cfg    *config.Config
	logger logger.Logger

	pg    *database.PostgresClient
	redis *database.RedisClient
	es    *database.ElasticsearchClient
	mongo *database.MongoClient
	zeebe *camunda.Client
	obs   *observability.Observability

	store storage.Store
	index *search.Index

	closers []func(context.Context)
}

func newApp(cfg *config.Config) *app {
	zl := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zl).
		WithFields(map[string]interface{}{"service": cfg.App.Name, "env": cfg.App.Environment})
	a := &app{cfg: cfg, logger: log}
	a.onClose(func(context.Context) { _ = zl.Sync() })
	return a
}

func (a *app) onClose(fn func(context.Context)) {
	a.closers = append(a.closers, fn)
}

// Close releases backends in reverse order of opening.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
}

// retryWithBackoff retries op with exponential backoff while a dependency
// comes up.
func (a *app) retryWithBackoff(name string, attempts int, delay time.Duration, op func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if i < attempts-1 {
			a.logger.Warn(name+" failed, retrying", map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, err)
}

func (a *app) openPostgres(ctx context.Context) error {
	if a.pg != nil {
		return nil
	}
	timeout := config.GetDuration(a.cfg.Directory.StorageTimeout)
	err := a.retryWithBackoff("postgres connection", 10, time.Second, func() error {
		pg, err := database.NewPostgres(ctx, a.cfg.Database.Postgres, timeout)
		if err != nil {
			return err
		}
		a.pg = pg
		return nil
	})
	if err != nil {
		return err
	}
	a.onClose(func(context.Context) { _ = a.pg.Close() })
	return nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Directory.Store {
	case config.StorePostgres:
		if err := a.openPostgres(ctx); err != nil {
			return err
		}
		a.store = postgres.New(a.pg.DB)
	default:
		a.logger.Warn("using in-memory listing store; data is lost on restart", nil)
		a.store = memory.New()
	}
	return nil
}

func (a *app) openIndex(ctx context.Context) error {
	if !a.cfg.Search.Enabled {
		return nil
	}
	es, err := database.NewElasticsearch(a.cfg.Database.Elasticsearch)
	if err != nil {
		return fmt.Errorf("elasticsearch: %w", err)
	}
	a.es = es
	a.index = search.NewIndex(es.Client, a.cfg.Search.Index)

	if err := a.index.EnsureIndex(ctx); err != nil {
		// The directory keeps working on snapshot filtering without the index.
		a.logger.Warn("search index unavailable", map[string]interface{}{"error": err})
	}
	return nil
}

func (a *app) openZeebe() error {
	if a.zeebe != nil {
		return nil
	}
	err := a.retryWithBackoff("zeebe client", 10, time.Second, func() error {
		c, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         a.cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(a.cfg.Camunda.RequestTimeout),
			MessageTTL:             time.Hour,
		})
		if err != nil {
			return err
		}
		a.zeebe = c
		return nil
	})
	if err != nil {
		return err
	}
	a.onClose(func(context.Context) { _ = a.zeebe.Close() })
	return nil
}

func (a *app) openObservability() error {
	obs, err := observability.New(a.cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	a.obs = obs
	a.onClose(func(context.Context) { obs.Shutdown() })

	if a.cfg.Observability.JaegerEndpoint == "" {
		return nil
	}
	tr, err := observability.NewTracing(a.cfg.Observability.ServiceName, a.cfg.Observability.JaegerEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	obs.AttachTracing(tr)
	return nil
}

func (a *app) gateStore(ctx context.Context) (contactgate.StateStore, error) {
	if a.cfg.ContactGate.Store != config.StoreRedis {
		return contactgate.NewMemoryStore(), nil
	}
	rc, err := database.NewRedis(ctx, a.cfg.Database.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.redis = rc
	a.onClose(func(context.Context) { _ = rc.Close() })
	return contactgate.NewRedisStore(rc.Client, a.cfg.ContactGate.KeyPrefix, config.GetDuration(a.cfg.ContactGate.SessionTTL)), nil
}

func (a *app) mediaStore(ctx context.Context) (media.Store, error) {
	if a.cfg.Media.Store != config.StoreGridFS {
		return media.NewMemoryStore(a.cfg.Media.MaxBytes), nil
	}
	mc, err := database.NewMongo(ctx, a.cfg.Database.Mongo)
	if err != nil {
		return nil, fmt.Errorf("mongo: %w", err)
	}
	a.mongo = mc
	a.onClose(func(ctx context.Context) { _ = mc.Close(ctx) })
	return media.NewGridFSStore(mc.DB, a.cfg.Media.Bucket, a.cfg.Media.MaxBytes)
}

// leadSink fans leads out to every configured destination.
func (a *app) leadSink() (leads.Sink, error) {
	var sinks []leads.Named

	if a.cfg.Leads.WebhookURL != "" {
		client := httpclient.NewClient(config.GetDuration(a.cfg.ContactGate.LeadTimeout))
		sinks = append(sinks, leads.Named{Name: "webhook", Sink: leads.NewWebhookSink(a.cfg.Leads.WebhookURL, client)})
	}
	if a.cfg.Leads.Zeebe {
		if err := a.openZeebe(); err != nil {
			return nil, err
		}
		sinks = append(sinks, leads.Named{Name: "zeebe", Sink: leads.NewZeebeSink(a.zeebe, a.cfg.Leads.MessageName)})
	}
	if a.cfg.Leads.CRM {
		crm := zoho.NewCRMClient(a.cfg.Integrations.Zoho.BaseURL, a.cfg.Integrations.Zoho.AuthToken)
		sinks = append(sinks, leads.Named{Name: "crm", Sink: leads.NewCRMSink(crm)})
	}

	if len(sinks) == 0 {
		return leads.Noop{}, nil
	}
	return leads.NewFanOut(a.logger, sinks...), nil
}

// authenticator returns the configured authenticator and, for JWT, the
// token issuer used by the login endpoint.
func (a *app) authenticator() (auth.Authenticator, *auth.JWTAuthenticator, error) {
	if a.cfg.Auth.Provider == config.ProviderKeycloak {
		kc := a.cfg.Auth.Keycloak
		return auth.NewKeycloakAuthenticator(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret), nil, nil
	}
	j := a.cfg.Auth.JWT
	jwtAuth, err := auth.NewJWTAuthenticator(j.Secret, j.Issuer, j.Algorithm, config.GetDuration(j.TTL))
	if err != nil {
		return nil, nil, err
	}
	return jwtAuth, jwtAuth, nil
}

// directory assembles the service with every backend serve needs.
func (a *app) directory(ctx context.Context) (*service.Service, media.Store, error) {
	if err := a.openObservability(); err != nil {
		return nil, nil, err
	}
	if err := a.openStore(ctx); err != nil {
		return nil, nil, err
	}
	if err := a.openIndex(ctx); err != nil {
		return nil, nil, err
	}

	gateStore, err := a.gateStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	sink, err := a.leadSink()
	if err != nil {
		return nil, nil, err
	}
	images, err := a.mediaStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	policy, err := rating.ParsePolicy(a.cfg.Directory.RatingCreatedAtPolicy)
	if err != nil {
		return nil, nil, err
	}

	gate := contactgate.New(contactgate.Config{
		LeadTimeout: config.GetDuration(a.cfg.ContactGate.LeadTimeout),
	}, gateStore, sink, a.logger)

	deps := service.Deps{
		Store:  a.store,
		Media:  images,
		Gate:   gate,
		Obs:    a.obs,
		Logger: a.logger,
	}
	if a.index != nil {
		deps.Index = a.index
	}

	svc := service.New(service.Config{
		RefreshInterval: config.GetDuration(a.cfg.Directory.RefreshInterval),
		StorageTimeout:  config.GetDuration(a.cfg.Directory.StorageTimeout),
		MaxImageBytes:   a.cfg.Media.MaxBytes,
		RatingPolicy:    policy,
	}, deps)
	return svc, images, nil
}

// pingers lists the opened backends for the health endpoint.
func (a *app) pingers() []database.Pinger {
	var out []database.Pinger
	if a.pg != nil {
		out = append(out, a.pg)
	}
	if a.redis != nil {
		out = append(out, a.redis)
	}
	if a.es != nil {
		out = append(out, a.es)
	}
	if a.mongo != nil {
		out = append(out, a.mongo)
	}
	if a.zeebe != nil {
		out = append(out, a.zeebe)
	}
	return out
}
