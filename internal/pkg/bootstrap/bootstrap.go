package bootstrap

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/MeterGate/app/repository"
	"github.com/ManuelReschke/MeterGate/internal/pkg/billing"
	"github.com/ManuelReschke/MeterGate/internal/pkg/cache"
	"github.com/ManuelReschke/MeterGate/internal/pkg/config"
	"github.com/ManuelReschke/MeterGate/internal/pkg/database"
	"github.com/ManuelReschke/MeterGate/internal/pkg/env"
	"github.com/ManuelReschke/MeterGate/internal/pkg/lifecycle"
	"github.com/ManuelReschke/MeterGate/internal/pkg/mail"
	"github.com/ManuelReschke/MeterGate/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/MeterGate/internal/pkg/s3archive"
	"github.com/ManuelReschke/MeterGate/internal/pkg/scheduler"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Components is the wired service graph shared by the binaries.
type Components struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client // nil without CACHE_HOST
	Repos     *repository.Repositories
	Billing   *billing.Service
	Registry  *lifecycle.Registry
	Scheduler *scheduler.Manager
	Reports   *cache.ReportStore
	Outcomes  *counter.WebhookOutcomes
}

// New loads configuration and connects every dependency.
func New(ctx context.Context) (*Components, error) {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := database.SetupDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	repository.InitializeFactory(db)

	c := &Components{
		Config: cfg,
		DB:     db,
		Repos:  repository.GetGlobalRepositories(),
	}

	if cfg.CacheEnabled() {
		c.Redis = cache.SetupCache(cfg.CacheHost, cfg.CachePortInt(), env.GetEnv("CACHE_PASSWORD", ""))
		c.Reports = cache.NewReportStore(c.Redis, 0)
		c.Outcomes = counter.NewWebhookOutcomes(c.Redis)
	}

	c.Billing = NewBillingService(cfg, c.Repos, c.Outcomes)
	c.Registry = lifecycle.NewRegistry(lifecycle.Deps{
		Credentials:    c.Repos.Credential,
		AccessLogs:     c.Repos.AccessLog,
		BatchSize:      cfg.Jobs.BatchSize,
		SecurityWindow: cfg.Jobs.SecurityWindow,
		ReportSinks:    ReportSinks(ctx, cfg, c.Reports),
	})

	c.Scheduler, err = NewScheduler(cfg, c.Registry, c.Redis)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewBillingService builds the reconciliation service. Without a Stripe secret
// key the service still processes webhooks but cannot refund or look up
// identities at the provider.
func NewBillingService(cfg *config.Config, repos *repository.Repositories, outcomes *counter.WebhookOutcomes) *billing.Service {
	var provider billing.Provider
	if p, err := billing.NewStripeProvider(cfg.StripeSecretKey); err != nil {
		log.Warnf("[Billing] Provider disabled: %v", err)
	} else {
		provider = p
	}
	if cfg.StripeWebhookSecret == "" {
		log.Warn("[Billing] STRIPE_WEBHOOK_SECRET not set, every webhook will be rejected")
	}

	opts := []billing.Option{}
	if outcomes != nil {
		opts = append(opts, billing.WithOutcomeRecorder(outcomes))
	}
	return billing.NewService(billing.StoresFromRepositories(repos), provider, billing.Config{
		WebhookSecret:        cfg.StripeWebhookSecret,
		DefaultPremiumWindow: cfg.DefaultPremiumWindow,
		LookupTimeout:        cfg.LookupTimeout,
	}, opts...)
}

// ReportSinks returns the configured weekly report sinks. A sink that cannot
// be set up is logged and left out.
func ReportSinks(ctx context.Context, cfg *config.Config, reports *cache.ReportStore) []lifecycle.ReportSink {
	var sinks []lifecycle.ReportSink
	if reports != nil {
		sinks = append(sinks, reports)
	}
	if cfg.Mail.To != "" {
		sinks = append(sinks, mail.NewReportSink(mail.NewSMTPMailer(cfg.Mail), cfg.Mail.To))
	}
	if cfg.S3.Bucket != "" {
		client, err := s3archive.NewClient(ctx, cfg.S3)
		if err != nil {
			log.Warnf("[S3Archive] Report archive disabled: %v", err)
		} else {
			sinks = append(sinks, s3archive.NewReportSink(client))
		}
	}
	return sinks
}

// NewScheduler registers every job of the registry on its configured schedule.
func NewScheduler(cfg *config.Config, reg *lifecycle.Registry, rdb *redis.Client) (*scheduler.Manager, error) {
	var opts []scheduler.Option
	if cfg.Jobs.LockEnabled {
		if rdb == nil {
			log.Warn("[Scheduler] JOBS_LOCK_ENABLED without CACHE_HOST, running without lock")
		} else {
			opts = append(opts, scheduler.WithLocker(cache.NewLocker(rdb), cfg.Jobs.LockTTL))
		}
	}
	m := scheduler.NewManager(opts...)

	schedules := Schedules(cfg)
	for _, name := range reg.Names() {
		job, err := reg.Get(name)
		if err != nil {
			return nil, err
		}
		if err := m.Register(job, schedules[name]); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Schedules maps job names to their cron specs.
func Schedules(cfg *config.Config) map[string]string {
	return map[string]string{
		lifecycle.JobQuotaReset:   cfg.Jobs.QuotaResetSchedule,
		lifecycle.JobRotation:     cfg.Jobs.RotationSchedule,
		lifecycle.JobSecurity:     cfg.Jobs.SecuritySchedule,
		lifecycle.JobWeeklyReport: cfg.Jobs.WeeklyReportSchedule,
	}
}
