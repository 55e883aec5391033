package cli

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/rosterd/internal/app"
	iauth "github.com/charlesng35/rosterd/internal/auth"
	"github.com/charlesng35/rosterd/internal/cache"
	"github.com/charlesng35/rosterd/internal/database"
	"github.com/charlesng35/rosterd/internal/services"
	"github.com/charlesng35/rosterd/pkg/logger"
)

// environment is the subset of the server runtime a command needs.
type environment struct {
	cfg   *app.Config
	db    *gorm.DB
	store cache.Store
	audit *services.AuditService
}

func openEnvironment(ctx context.Context, opts *RootOptions) (*environment, error) {
	var (
		cfg *app.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = app.LoadConfig(opts.ConfigPath)
	} else {
		cfg, err = app.LoadConfig()
	}
	if err != nil {
		return nil, err
	}

	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	if err := app.ConfigureLogging(level, "console"); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	if _, err := app.ApplyRuntimeDefaults(cfg); err != nil {
		return nil, err
	}

	dbCfg, err := cfg.Database.DatabaseOptions()
	if err != nil {
		return nil, err
	}
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	env := &environment{cfg: cfg, db: db}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	secret, err := database.EnsureJWTSecret(ctx, db, cfg.Auth.JWT.Secret)
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	cfg.Auth.JWT.Secret = secret

	if env.audit, err = services.NewAuditService(db); err != nil {
		_ = env.Close()
		return nil, err
	}
	return env, nil
}

func (e *environment) cacheLayer() (*cache.Layer, error) {
	if e.store == nil {
		store, backend, err := e.cfg.Cache.OpenStore(e.db, logger.WithModule("cache"))
		if err != nil {
			return nil, err
		}
		logger.WithModule("cli").Debug("cache opened", zap.String("backend", backend))
		e.store = store
	}
	return cache.NewLayer(e.store, e.cfg.Cache.LayerOptions()...), nil
}

func (e *environment) students() (*services.StudentService, error) {
	layer, err := e.cacheLayer()
	if err != nil {
		return nil, err
	}
	records, err := services.NewStudentStore(e.db)
	if err != nil {
		return nil, err
	}
	return services.NewStudentService(records, layer, services.WithStudentAudit(e.audit))
}

func (e *environment) credentials() (*iauth.CredentialStore, error) {
	jwtSvc, err := iauth.NewJWTService(e.cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, err
	}
	return iauth.NewCredentialStore(e.db, jwtSvc, append(e.cfg.Auth.CredentialOptions(), iauth.WithAuditService(e.audit))...)
}

func (e *environment) Close() error {
	var errs error
	if rc, ok := e.store.(*cache.RedisClient); ok && rc != nil {
		errs = multierr.Append(errs, rc.Close())
	}
	return multierr.Append(errs, database.Close(e.db))
}
