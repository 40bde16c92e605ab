package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/config"
	"github.com/moody-app/moody/internal/database"
	"github.com/moody-app/moody/internal/middleware"
	"github.com/moody-app/moody/internal/modules/beacon"
	"github.com/moody-app/moody/internal/modules/insight"
	"github.com/moody-app/moody/internal/modules/session"
	"github.com/moody-app/moody/internal/pkg/clock"
	"github.com/moody-app/moody/internal/pkg/docstore"
	jwtpkg "github.com/moody-app/moody/internal/pkg/jwt"
	"github.com/moody-app/moody/internal/pkg/photostore"
	pkgredis "github.com/moody-app/moody/internal/pkg/redis"
	"go.uber.org/zap"
)

// Deps are the external services the app runs on. New dials them from
// config; tests pass in-memory ones to Build.
type Deps struct {
	Docs     docstore.Store
	Redis    *pkgredis.Client
	Photos   photostore.Store
	Analyzer insight.Analyzer
	Clock    clock.Clock
}

// App holds all application dependencies.
type App struct {
	cfg      *config.AppConfig
	deps     Deps
	router   *gin.Engine
	logger   *zap.Logger
	sessions *session.Registry
	db       *database.DB
	cancel   context.CancelFunc
	started  time.Time
}

// New connects Mongo, Redis, photo storage and the AI provider, then
// builds the app on them.
func New(ctx context.Context, logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	db, err := database.Connect(ctx, cfg.Mongo, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	rc, err := pkgredis.Connect(ctx, pkgredis.Options{
		URL:      cfg.Redis.URL,
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		_ = db.Close(context.Background())
		return nil, fmt.Errorf("redis: %w", err)
	}
	photos, err := photostore.New(photostore.Options{
		Driver:          cfg.Photos.Driver,
		Endpoint:        cfg.Photos.Endpoint,
		Region:          cfg.Photos.Region,
		Bucket:          cfg.Photos.Bucket,
		AccessKeyID:     cfg.Photos.AccessKeyID,
		SecretAccessKey: cfg.Photos.SecretAccessKey,
		CustomDomain:    cfg.Photos.CustomDomain,
		UseSSL:          cfg.Photos.UseSSL,
	})
	if err != nil {
		_ = rc.Close()
		_ = db.Close(context.Background())
		return nil, fmt.Errorf("photo storage: %w", err)
	}

	var analyzer insight.Analyzer
	if p := cfg.AI.InsightProviderConfig(); p != nil {
		gen, err := insight.NewGenerator(p)
		if err != nil {
			logger.Warn("insight provider unusable, insights disabled", zap.String("provider", p.ID), zap.Error(err))
		} else {
			analyzer = insight.NewLLMAnalyzer(gen)
		}
	} else {
		logger.Warn("no AI provider enabled, insights disabled")
	}

	a, err := Build(logger, cfg, Deps{Docs: db.Docs, Redis: rc, Photos: photos, Analyzer: analyzer})
	if err != nil {
		_ = rc.Close()
		_ = db.Close(context.Background())
		return nil, err
	}
	a.db = db
	return a, nil
}

// Build wires the modules onto deps and starts the session sweeper.
func Build(logger *zap.Logger, cfg *config.AppConfig, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if deps.Docs == nil || deps.Redis == nil || deps.Photos == nil {
		return nil, errors.New("docs, redis and photos are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	deps.Clock = clock.OrReal(deps.Clock)
	jwtpkg.SetSecret(cfg.JWTSecret)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt_secret is empty, using built-in default secret")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:     cfg,
		deps:    deps,
		router:  router,
		logger:  logger,
		cancel:  cancel,
		started: deps.Clock.Now(),
	}
	a.registerRoutes()
	go a.sessions.Run(ctx)
	return a, nil
}

// exitDispatcher posts page-exit writes to the configured beacon URL, or
// hands them straight to the local beacon service.
func exitDispatcher(cfg *config.AppConfig, local *beacon.Service, logger *zap.Logger) beacon.Dispatcher {
	if cfg.Beacon.URL != "" {
		return beacon.NewClient(cfg.Beacon.URL, cfg.Beacon.Timeout, logger)
	}
	return beacon.NewLocal(local, cfg.Beacon.Timeout)
}

// Addr returns the listen address.
func (a *App) Addr() string { return a.cfg.Addr() }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Sessions is the live session registry.
func (a *App) Sessions() *session.Registry { return a.sessions }

// Shutdown flushes every session, then releases the connections.
func (a *App) Shutdown(ctx context.Context) error {
	a.cancel()
	errs := []error{a.sessions.Close(ctx)}
	if a.deps.Redis != nil {
		errs = append(errs, a.deps.Redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close(ctx))
	}
	return errors.Join(errs...)
}
