package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/middleware"
	"github.com/moody-app/moody/internal/models"
	"github.com/moody-app/moody/internal/modules/beacon"
	"github.com/moody-app/moody/internal/modules/entry"
	"github.com/moody-app/moody/internal/modules/insight"
	"github.com/moody-app/moody/internal/modules/journal"
	"github.com/moody-app/moody/internal/modules/memories"
	"github.com/moody-app/moody/internal/modules/quote"
	"github.com/moody-app/moody/internal/modules/servertime"
	"github.com/moody-app/moody/internal/modules/session"
	"github.com/moody-app/moody/internal/pkg/apperr"
	"github.com/moody-app/moody/internal/pkg/docstore"
	jwtpkg "github.com/moody-app/moody/internal/pkg/jwt"
	"github.com/moody-app/moody/internal/pkg/mood"
	"github.com/moody-app/moody/internal/pkg/response"
)

const apiPrefix = "/api"

func (a *App) registerRoutes() {
	r := a.router
	cfg := a.cfg
	authMW := middleware.Auth()

	r.NoRoute(func(c *gin.Context) { response.NotFound(c) })
	r.NoMethod(func(c *gin.Context) { response.MethodNotAllowed(c) })

	appInfo := gin.H{
		"name":    "moody",
		"version": "1.0.0",
	}
	r.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, appInfo) })

	api := r.Group(apiPrefix)
	api.GET("", func(c *gin.Context) { c.JSON(http.StatusOK, appInfo) })
	api.GET("/health", a.health)
	servertime.RegisterRoutes(api, a.deps.Clock, cfg.Location)
	quote.RegisterRoutes(api, a.deps.Clock, cfg.Location)

	// Page-exit writes carry their credential in the body.
	beaconSvc := beacon.NewService(a.deps.Docs, jwtpkg.Verify, a.logger.Named("beacon"))
	beacon.NewHandler(beaconSvc).RegisterRoutes(api, nil)

	a.sessions = session.NewRegistry(session.Deps{
		Docs:          a.deps.Docs,
		Moods:         mood.Default,
		Location:      cfg.Location,
		Clock:         a.deps.Clock,
		Logger:        a.logger.Named("session"),
		MoodDebounce:  cfg.Autosave.MoodDebounce,
		TypedDebounce: cfg.Autosave.TypedDebounce,
		VoiceDebounce: cfg.Autosave.VoiceDebounce,
		SavedDisplay:  cfg.Autosave.SavedDisplay,
		DictationCap:  journal.MaxDictation,
		Exit:          exitDispatcher(cfg, beaconSvc, a.logger.Named("beacon")),
		Token: func(uid string) (string, error) {
			return jwtpkg.Sign(uid, time.Minute)
		},
	}, cfg.Session.IdleTimeout)
	session.NewHandler(a.sessions).RegisterRoutes(api, authMW)
	entry.NewHandler(session.EntryResolver(a.sessions), mood.Default).RegisterRoutes(api, authMW)
	journal.NewHandler(session.JournalResolver(a.sessions)).RegisterRoutes(api, authMW)

	cache := memories.NewCache(a.deps.Redis, a.deps.Clock, cfg.Memories.CacheTTL)
	memSvc := memories.NewService(a.deps.Docs, a.deps.Photos, cache, memories.Options{
		MaxSize:   int64(cfg.Photos.MaxSizeMB) << 20,
		MaxPerDay: cfg.Photos.MaxPerDay,
		Location:  cfg.Location,
		Clock:     a.deps.Clock,
		Logger:    a.logger.Named("memories"),
	})
	memories.NewHandler(memSvc).RegisterRoutes(api, authMW)

	providerID := ""
	if p := cfg.AI.InsightProviderConfig(); p != nil {
		providerID = p.ID
	}
	insightSvc := insight.NewService(a.deps.Docs, a.deps.Analyzer, providerID, a.deps.Clock, a.logger.Named("insight"))
	var limit gin.HandlerFunc
	if n := cfg.RateLimit.InsightsPerMinute; n > 0 {
		limit = middleware.RateLimit(a.deps.Redis, "insights", n, time.Minute, a.logger)
	}
	insight.NewHandler(insightSvc, limit).RegisterRoutes(api, authMW)
}

// health pings the document store and redis. A missing document still
// proves the store answered.
func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	_, err := a.deps.Docs.Get(ctx, docstore.SubKey("health", models.InsightsCollection, "probe"))
	dbOK := err == nil || apperr.KindOf(err) == apperr.KindNotFound
	redisOK := a.deps.Redis.Raw().Ping(ctx).Err() == nil

	status, code := "ok", http.StatusOK
	if !dbOK || !redisOK {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":   status,
		"database": dbOK,
		"redis":    redisOK,
		"sessions": a.sessions.Len(),
		"uptime":   humanizeDuration(a.deps.Clock.Since(a.started)),
	})
}

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	if d < time.Hour {
		return d.Truncate(time.Minute).String()
	}
	if d < 24*time.Hour {
		return d.Truncate(time.Hour).String()
	}
	return d.Truncate(24 * time.Hour).String()
}
