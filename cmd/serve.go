package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RestJSON/internal/auth"
	"RestJSON/internal/config"
	"RestJSON/internal/db"
	"RestJSON/internal/handler"
	"RestJSON/internal/logger"
	"RestJSON/internal/model"
	"RestJSON/internal/permit"
	"RestJSON/internal/resolver"
	"RestJSON/internal/router"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, loadConfig())
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	ex, err := db.Open(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		logger.Error("db_init_failed", map[string]any{"driver": cfg.DB.Driver, "error": err.Error()})
		return err
	}
	defer ex.Close()
	logger.Info("db_connected", map[string]any{"driver": cfg.DB.Driver})

	reg.UseJoinCache(joinCache(ctx, cfg))

	dict, err := model.LoadLocales(cfg.LocalesDir, cfg.Locale)
	if err != nil {
		logger.Warn("locales_disabled", map[string]any{"error": err.Error()})
	}

	var jwt *auth.JWTValidator
	if cfg.Auth.Enabled {
		if jwt, err = auth.NewJWTValidator(cfg.Auth.JWT); err != nil {
			logger.Error("jwt_init_failed", map[string]any{"error": err.Error()})
			return err
		}
	}
	var authz resolver.Authorizer = auth.AllowAll{}
	if cfg.Authz.Enabled {
		casbin, err := auth.NewCasbinAuthorizer(cfg.Authz, cfg.Auth.JWT.RoleClaim, cfg.Auth.Enabled)
		if err != nil {
			logger.Error("authz_init_failed", map[string]any{"error": err.Error()})
			return err
		}
		authz = casbin
	}

	h := &handler.ResourceHandler{
		Registry:   reg,
		Compiler:   resolver.NewCompiler(reg, ex, authz),
		Writer:     resolver.NewWriter(ex, authz, permit.New()),
		Dispatcher: &handler.Dispatcher{Dict: dict, ReturnErrorData: cfg.ReturnErrorData},
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.InitRoutes(cfg, h, jwt),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server_shutdown_failed", map[string]any{"error": err.Error()})
		}
	}()

	logger.Info("server_start", map[string]any{"port": cfg.Port, "prefix": cfg.APIPrefix})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server_error", map[string]any{"error": err.Error()})
		return err
	}
	logger.Info("server_stopped", nil)
	return nil
}

// joinCache shares through-path joins over redis when REDIS_ADDR is set.
// Stale entries from a previous deployment are flushed at boot.
func joinCache(ctx context.Context, cfg *config.Config) model.JoinCache {
	ttl := time.Duration(cfg.JoinCache.TTLSec) * time.Second
	if cfg.RedisAddr == "" {
		return model.NewMemoryJoinCache(ttl, int(cfg.JoinCache.MaxEntries))
	}
	rdb, err := db.InitRedis(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis_unavailable", map[string]any{"addr": cfg.RedisAddr, "error": err.Error()})
		return model.NewMemoryJoinCache(ttl, int(cfg.JoinCache.MaxEntries))
	}
	cache := model.NewRedisJoinCache(rdb, ttl)
	if err := cache.Flush(ctx); err != nil {
		logger.Warn("join_cache_flush_failed", map[string]any{"error": err.Error()})
	}
	logger.Info("join_cache_redis", map[string]any{"addr": cfg.RedisAddr})
	return cache
}
