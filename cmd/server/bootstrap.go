package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/rosterd/internal/api"
	"github.com/charlesng35/rosterd/internal/app"
	"github.com/charlesng35/rosterd/internal/app/maintenance"
	iauth "github.com/charlesng35/rosterd/internal/auth"
	"github.com/charlesng35/rosterd/internal/cache"
	"github.com/charlesng35/rosterd/internal/database"
	"github.com/charlesng35/rosterd/internal/jobs"
	"github.com/charlesng35/rosterd/internal/middleware"
	"github.com/charlesng35/rosterd/internal/services"
	"github.com/charlesng35/rosterd/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB       *gorm.DB
	Cache    cache.Store
	Audit    *services.AuditService
	Students *services.StudentService
	Runner   *jobs.Runner
	Cleaner  *maintenance.Cleaner
	Router   *gin.Engine
}

// bootstrapRuntime initialises the database, cache, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown(context.Background(), log)
		}
	}()

	switch mode := strings.TrimSpace(cfg.Server.GinMode); mode {
	case "":
		gin.SetMode(gin.ReleaseMode)
	default:
		gin.SetMode(mode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	secret, err := database.EnsureJWTSecret(ctx, stack.DB, cfg.Auth.JWT.Secret)
	if err != nil {
		return nil, fmt.Errorf("persist jwt secret: %w", err)
	}
	cfg.Auth.JWT.Secret = secret
	if app.WeakJWTSecret(secret) {
		log.Warn("jwt secret is shorter than recommended", zap.Int("min_bytes", app.MinJWTSecretBytes))
	}

	var backend string
	stack.Cache, backend, err = cfg.Cache.OpenStore(stack.DB, logger.WithModule("cache"))
	if err != nil {
		return nil, err
	}

	layer := cache.NewLayer(stack.Cache, append(cfg.Cache.LayerOptions(), cache.WithLogger(logger.WithModule("cache")))...)
	log.Info("cache ready", zap.String("backend", backend), zap.Duration("ttl", layer.TTL()))

	stack.Audit, err = services.NewAuditService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	creds, err := iauth.NewCredentialStore(stack.DB, jwtSvc, append(cfg.Auth.CredentialOptions(), iauth.WithAuditService(stack.Audit))...)
	if err != nil {
		return nil, fmt.Errorf("initialise credential store: %w", err)
	}

	gate, err := iauth.NewGate(creds)
	if err != nil {
		return nil, fmt.Errorf("initialise access gate: %w", err)
	}

	records, err := services.NewStudentStore(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise student store: %w", err)
	}

	stack.Students, err = services.NewStudentService(records, layer, services.WithStudentAudit(stack.Audit))
	if err != nil {
		return nil, fmt.Errorf("initialise student service: %w", err)
	}

	stack.Runner = jobs.NewRunner(cfg.Jobs.RunnerConfig(),
		jobs.WithHandler(jobs.KindBulkLoad, jobs.BulkLoadHandler(stack.Students, stack.Audit)),
		jobs.WithHandler(jobs.KindBulkDelete, jobs.BulkDeleteHandler(stack.Students, stack.Audit)),
	)

	stack.Cleaner = maintenance.NewCleaner(stack.Cache, stack.Audit,
		maintenance.WithCacheSweepSchedule(cfg.Maintenance.CacheSweepSchedule),
		maintenance.WithAuditSchedule(cfg.Maintenance.AuditSchedule),
		maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:          stack.DB,
		Config:      cfg,
		Credentials: creds,
		Gate:        gate,
		Students:    stack.Students,
		Audit:       stack.Audit,
		Jobs:        stack.Runner,
		Cache:       stack.Cache,
		RateStore:   middleware.NewRateStore(stack.Cache),
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown drains background work and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) error {
	if s == nil {
		return nil
	}

	var errs error

	if s.Runner != nil {
		if err := s.Runner.Stop(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-ctx.Done():
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if rc, ok := s.Cache.(*cache.RedisClient); ok && rc != nil {
		errs = multierr.Append(errs, rc.Close())
	}

	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
	}

	return errs
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg, err := cfg.Database.DatabaseOptions()
	if err != nil {
		return nil, err
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}
