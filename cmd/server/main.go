// Command server runs the anime catalog HTTP API.
//
//	@title						Anime Catalog API
//	@version					1.0
//	@description				CRUD catalog of anime behind HTTP Basic authentication.
//	@BasePath					/
//	@securityDefinitions.basic	BasicAuth
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-anime-catalog/internal/config"
	httpapi "github.com/tbourn/go-anime-catalog/internal/http"
	"github.com/tbourn/go-anime-catalog/internal/observability"
	"github.com/tbourn/go-anime-catalog/internal/repo"
	"github.com/tbourn/go-anime-catalog/internal/services"
	"github.com/tbourn/go-anime-catalog/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

const purgeInterval = 10 * time.Minute

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	version = sysutil.Version(version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open sqlite")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("automigrate")
	}

	n, err := httpapi.NewAuthService(db, cfg.BcryptCost).Seed(ctx, seedUsers(cfg.AuthUsers))
	if err != nil {
		log.Fatal().Err(err).Msg("seed users")
	}
	log.Info().Int("created", n).Int("configured", len(cfg.AuthUsers)).Msg("credentials provisioned")

	store := newStore(cfg, db)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, store, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeIdempotency(ctx, db, purgeInterval)

	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.Store).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
}

// newStore picks the anime backend. The memory store is seeded with the
// demo titles when SEED_ANIME is set.
func newStore(cfg config.Config, db *gorm.DB) services.AnimeStore {
	if cfg.Store == config.StoreMemory {
		if cfg.SeedAnime {
			return repo.NewMemoryStore("DBZ", "Berserk")
		}
		return repo.NewMemoryStore()
	}
	return repo.NewSQLStore(db)
}

func seedUsers(specs []config.UserSpec) []services.SeedUser {
	out := make([]services.SeedUser, 0, len(specs))
	for _, s := range specs {
		out = append(out, services.SeedUser{
			Name:        s.Username,
			Username:    s.Username,
			Password:    s.Password,
			Authorities: strings.Join(s.Roles, ","),
		})
	}
	return out
}

// purgeIdempotency deletes expired idempotency records every interval until
// ctx is cancelled.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("purged expired idempotency keys")
			}
		}
	}
}
