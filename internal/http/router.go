// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, authentication, idempotency, and rate
// limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-anime-catalog/docs"
	"github.com/tbourn/go-anime-catalog/internal/config"
	"github.com/tbourn/go-anime-catalog/internal/domain"
	"github.com/tbourn/go-anime-catalog/internal/http/handlers"
	"github.com/tbourn/go-anime-catalog/internal/http/middleware"
	"github.com/tbourn/go-anime-catalog/internal/repo"
	"github.com/tbourn/go-anime-catalog/internal/services"
)

// readyTimeout bounds the database ping behind /ready.
const readyTimeout = 2 * time.Second

// userRepoShim adapts the repository free functions to the services.UserRepo
// interface expected by the AuthService.
type userRepoShim struct{}

// GetUserByUsername proxies repo.GetUserByUsername.
func (userRepoShim) GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return repo.GetUserByUsername(ctx, db, username)
}

// CreateUser proxies repo.CreateUser.
func (userRepoShim) CreateUser(ctx context.Context, db *gorm.DB, name, username, passwordHash, authorities string) (*domain.User, error) {
	return repo.CreateUser(ctx, db, name, username, passwordHash, authorities)
}

// idempotencyShim adapts the repo idempotency functions to
// handlers.IdempotencyStore, applying the configured TTL.
type idempotencyShim struct {
	db  *gorm.DB
	ttl time.Duration
}

// Lookup proxies repo.GetIdempotency.
func (s idempotencyShim) Lookup(ctx context.Context, username, key string) (int64, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, username, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rec.AnimeID, true, nil
}

// Remember proxies repo.SaveIdempotency. A concurrent duplicate is not an
// error: the first record wins.
func (s idempotencyShim) Remember(ctx context.Context, username, key string, animeID int64) error {
	r := repo.Replay{Username: username, Key: key, AnimeID: animeID, Status: http.StatusCreated}
	_, err := repo.SaveIdempotency(ctx, s.db, r, time.Now().UTC(), s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// NewAuthService builds the AuthService used by RegisterRoutes, exposed so
// the server bootstrap can seed credentials through the same repository
// wiring.
func NewAuthService(db *gorm.DB, cost int) *services.AuthService {
	s := services.NewAuthService(db, userRepoShim{})
	s.Cost = cost
	return s
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. db holds credentials and idempotency records; store backs the
// catalog (SQLite or memory).
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger (or Logger): structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. gzip, CORS and security headers
//
// The catalog group then runs BasicAuth, the idempotency validator and the
// per-user rate limiter, in that order, so both of the latter key on the
// authenticated username.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, store services.AnimeStore, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging, with redaction unless disabled
	if cfg.LogRedact {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"X-API-Key"},
		}))
	} else {
		r.Use(middleware.Logger())
	}

	// 4) Panic recovery to a 500 ErrorDetail (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compression, CORS posture, security headers
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.TitleNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.TitleMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness and readiness
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()
		if err := repo.Ping(ctx, db); err != nil {
			handlers.Fail(c, http.StatusServiceUnavailable, handlers.TitleUnavailable, handlers.ErrCodeUnavailable, "database unreachable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/store
	authSvc := NewAuthService(db, cfg.BcryptCost)
	animeSvc := services.NewAnimeService(store)
	idem := idempotencyShim{db: db, ttl: cfg.IdempotencyTTL}
	h := handlers.New(animeSvc, idem)

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	api := groupWithPrefix(r, cfg.APIBasePath)
	anime := api.Group("/anime",
		middleware.BasicAuth(authSvc.Authenticate),
		middleware.IdempotencyValidator(
			middleware.IdempotencyOptions{MaxLen: 200},
			func(ctx context.Context, username, key string, now time.Time) (bool, error) {
				rec, err := repo.GetIdempotency(ctx, db, username, key, now)
				return err == nil && rec != nil, nil
			},
		),
		rl.Handler(),
		middleware.RequireRole(domain.RoleUser),
	)
	{
		anime.GET("", h.List)
		anime.GET("/all", h.ListAll)
		anime.GET("/find", h.FindByName)
		anime.GET("/:id", h.FindByID)
		anime.POST("", h.Save)
		anime.PUT("", h.Replace)
		anime.DELETE("/:id", h.Delete)
		anime.DELETE("/admin/:id", middleware.RequireRole(domain.RoleAdmin), h.AdminDelete)
	}
}

// corsMiddleware returns the CORS chain: allow-all when no origins are
// configured, otherwise an allowlist that echoes the matching Origin.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", handlers.HeaderIdempotencyReplayed},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// Force ACAO: * even for requests without an Origin header.
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
