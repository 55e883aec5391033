package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/rosterd/internal/cache"
	"github.com/charlesng35/rosterd/internal/services"
	"github.com/charlesng35/rosterd/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultCacheSweepSpec     = "@every 10m"
	defaultAuditSpec          = "@daily"
)

// Cleaner coordinates background maintenance tasks such as purging expired
// cache entries and pruning stale audit logs.
type Cleaner struct {
	cache     cache.Purger
	audit     *services.AuditService
	cron      *cron.Cron
	log       *zap.Logger
	enabled   bool
	retention int

	cacheSchedule string
	auditSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithCacheSweepSchedule overrides the cron specification for expired cache entry removal.
func WithCacheSweepSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. The cache sweep runs
// only when store can purge expired entries; Redis expires keys on its own.
func NewCleaner(store cache.Store, audit *services.AuditService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		audit:         audit,
		retention:     defaultAuditRetentionDays,
		cacheSchedule: defaultCacheSweepSpec,
		auditSchedule: defaultAuditSpec,
		log:           logger.WithModule("maintenance"),
	}
	if purger, ok := store.(cache.Purger); ok {
		cleaner.cache = purger
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.cache != nil || cleaner.audit != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			if err := c.sweepCache(context.Background()); err != nil {
				c.log.Warn("cache sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			if err := c.pruneAudit(context.Background()); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.cache != nil {
		errs = multierr.Append(errs, c.sweepCache(ctx))
	}

	if c.audit != nil && c.retention > 0 {
		errs = multierr.Append(errs, c.pruneAudit(ctx))
	}

	return errs
}

func (c *Cleaner) sweepCache(ctx context.Context) error {
	start := time.Now()
	removed, err := c.cache.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		c.log.Debug("expired cache entries purged",
			zap.Int64("removed", removed),
			zap.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

func (c *Cleaner) pruneAudit(ctx context.Context) error {
	removed, err := c.audit.CleanupOlderThan(ctx, c.retention)
	if err != nil {
		return err
	}
	if removed > 0 {
		c.log.Info("audit logs pruned", zap.Int64("removed", removed), zap.Int("retention_days", c.retention))
	}
	return nil
}
