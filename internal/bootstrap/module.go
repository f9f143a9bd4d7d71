package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"safetyportal/internal/bootstrap/config"
	"safetyportal/internal/bootstrap/database"
	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/errs"
	"safetyportal/internal/infrastructure/auth"
	cacheinfra "safetyportal/internal/infrastructure/cache"
	"safetyportal/internal/infrastructure/events"
	"safetyportal/internal/infrastructure/fetch"
	"safetyportal/internal/infrastructure/metrics"
	"safetyportal/internal/infrastructure/persistence/relational/repository"
	"safetyportal/internal/infrastructure/persistence/relational/uow"
	"safetyportal/internal/infrastructure/storage"
	"safetyportal/internal/interfaces/httpapi"
	"safetyportal/internal/ports"
	"safetyportal/internal/usecase/pdfexport"
	"safetyportal/internal/usecase/refdata"
	"safetyportal/internal/usecase/reportedit"
	"safetyportal/internal/usecase/reportform"
	"safetyportal/internal/usecase/reporttable"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(
		fx.Annotate(repository.NewObservationRepository, fx.As(new(ports.ObservationRepository))),
		fx.Annotate(repository.NewActionPlanRepository, fx.As(new(ports.ActionPlanRepository))),
		fx.Annotate(repository.NewCategoryLinkRepository, fx.As(new(ports.CategoryLinkRepository))),
		fx.Annotate(repository.NewReferenceRepository, fx.As(new(ports.ReferenceRepository))),
		fx.Annotate(repository.NewUserRepository, fx.As(new(ports.UserRepository))),
		fx.Annotate(uow.NewUnitOfWork, fx.As(new(ports.UnitOfWork))),
	),
	fx.Provide(
		provideStorage,
		provideCache,
		provideEvents,
		provideBuckets,
		provideTokens,
		metrics.NewPrometheus,
		func(p *metrics.Prometheus) ports.Metrics { return p },
		func() ports.Authenticator { return ports.ContextAuthenticator{} },
		func() ports.ImageFetcher { return fetch.NewHTTPFetcher(&http.Client{Timeout: 15 * time.Second}) },
	),
	fx.Provide(
		reportform.NewService,
		reportedit.NewService,
		provideTable,
		refdata.NewService,
		pdfexport.NewImageCache,
		provideResolver,
		pdfexport.NewRenderer,
		pdfexport.NewExporter,
		provideHTTP,
	),
	fx.Provide(provideApp),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideStorage(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	sc := cfg.Storage
	switch sc.Driver {
	case "", "fs":
		return storage.NewFSStore(sc.FSRoot, sc.PublicBaseURL)
	case "memory":
		return storage.NewMemoryStore(sc.PublicBaseURL), nil
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Options{
			Region:        sc.S3.Region,
			Endpoint:      sc.S3.Endpoint,
			PathStyle:     sc.S3.PathStyle,
			PublicBaseURL: sc.PublicBaseURL,
		})
	case "gcs":
		store, err := storage.NewGCSStore(ctx, storage.GCSOptions{
			Endpoint:        sc.GCS.Endpoint,
			CredentialsFile: sc.GCS.CredentialsFile,
			PublicBaseURL:   sc.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return store.Close() }})
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", sc.Driver)
	}
}

func provideCache(lc fx.Lifecycle, ctx context.Context, cfg config.Config, db *gorm.DB) (ports.Cache, error) {
	switch cfg.Cache.Driver {
	case "", "memory":
		return cacheinfra.NewMemoryCache(), nil
	case "sqlite", "db":
		return cacheinfra.NewDBCache(db), nil
	case "redis":
		rdb, err := cacheinfra.DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return rdb.Close() }})
		return cacheinfra.NewRedisCache(rdb, cfg.App.Name), nil
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.Cache.Driver)
	}
}

func provideEvents(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.EventPublisher, error) {
	switch cfg.Events.Driver {
	case "", "noop":
		return ports.NoopPublisher{}, nil
	case "nats":
		conn, err := events.DialNATS(logging.WithAttrs(ctx, slog.String("component", "infrastructure.events")), cfg.Events.NATSURL)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return conn.Drain() }})
		return events.NewNATSPublisher(conn, cfg.Events.SubjectPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported events driver %q", cfg.Events.Driver)
	}
}

func provideBuckets(cfg config.Config) ports.Buckets {
	return ports.Buckets{Observation: cfg.Storage.ObservationBucket, ActionPlan: cfg.Storage.ActionPlanBucket}
}

// provideTokens returns nil without a configured secret. Commands that only
// touch the database still start; serve and token refuse to run.
func provideTokens(ctx context.Context, cfg config.Config) (*auth.TokenService, error) {
	if cfg.Auth.JWTSecret == "" {
		logging.Warn(logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")), "auth.jwt_secret is empty, bearer tokens are disabled")
		return nil, nil
	}
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	return tokens, errs.Wrap(err, "create token service")
}

type tableParams struct {
	fx.In

	Config       config.Config
	Observations ports.ObservationRepository
	Plans        ports.ActionPlanRepository
	Links        ports.CategoryLinkRepository
	Events       ports.EventPublisher
}

func provideTable(p tableParams) *reporttable.Controller {
	return reporttable.NewController(p.Observations, p.Plans, p.Links, p.Events, p.Config.Table.PageSize)
}

func provideResolver(cfg config.Config, objects ports.ObjectStorage, fetcher ports.ImageFetcher, cache *pdfexport.ImageCache) *pdfexport.Resolver {
	return pdfexport.NewResolver(objects, fetcher, cache, cfg.Cache.ImageTTL)
}

type httpParams struct {
	fx.In

	Config  config.Config
	Users   ports.UserRepository
	Tokens  *auth.TokenService
	Storage ports.ObjectStorage
	Buckets ports.Buckets
	Metrics *metrics.Prometheus
	Submit  *reportform.Service
	Edit    *reportedit.Service
	Table   *reporttable.Controller
	Refdata *refdata.Service
	PDF     *pdfexport.Exporter
}

func provideHTTP(p httpParams) *httpapi.Server {
	return httpapi.NewServer(httpapi.Deps{
		Users:          p.Users,
		Tokens:         p.Tokens,
		Storage:        p.Storage,
		Buckets:        p.Buckets,
		Metrics:        p.Metrics,
		Submit:         p.Submit,
		Edit:           p.Edit,
		Table:          p.Table,
		Refdata:        p.Refdata,
		PDF:            p.PDF,
		AllowedOrigins: p.Config.HTTP.AllowedOrigins,
		MaxUploadBytes: p.Config.HTTP.MaxUploadMB << 20,
	})
}

type appParams struct {
	fx.In

	Config  config.Config
	DB      *gorm.DB
	Users   ports.UserRepository
	Tokens  *auth.TokenService
	Submit  *reportform.Service
	Edit    *reportedit.Service
	Table   *reporttable.Controller
	Refdata *refdata.Service
	PDF     *pdfexport.Exporter
	HTTP    *httpapi.Server
}

func provideApp(p appParams) *App {
	return &App{
		Config:  p.Config,
		DB:      p.DB,
		Users:   p.Users,
		Tokens:  p.Tokens,
		Submit:  p.Submit,
		Edit:    p.Edit,
		Table:   p.Table,
		Refdata: p.Refdata,
		PDF:     p.PDF,
		HTTP:    p.HTTP,
	}
}
