package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/MeterGate/app/repository"
	"github.com/ManuelReschke/MeterGate/internal/pkg/cache"
	"github.com/ManuelReschke/MeterGate/internal/pkg/lifecycle"
	"github.com/ManuelReschke/MeterGate/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/MeterGate/internal/pkg/scheduler"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// JobRunner runs lifecycle jobs on demand.
type JobRunner interface {
	RunNow(ctx context.Context, name string) (*lifecycle.Result, error)
	Jobs() map[string]string
	IsRunning() bool
}

// ReportReader returns the most recent weekly report.
type ReportReader interface {
	Latest(ctx context.Context) (*lifecycle.Report, error)
}

// OutcomeReader returns the webhook outcome counters.
type OutcomeReader interface {
	Snapshot(ctx context.Context) ([]counter.OutcomeCount, error)
}

// AdminController handles the operator endpoints
type AdminController struct {
	repos    *repository.Repositories
	jobs     JobRunner
	reports  ReportReader
	outcomes OutcomeReader
}

// NewAdminController creates a new admin controller. reports and outcomes may
// be nil when Redis is not configured.
func NewAdminController(repos *repository.Repositories, jobs JobRunner, reports ReportReader, outcomes OutcomeReader) *AdminController {
	return &AdminController{
		repos:    repos,
		jobs:     jobs,
		reports:  reports,
		outcomes: outcomes,
	}
}

// HandleListJobs returns the registered jobs, their schedules and whether the
// scheduler is running in this process.
func (ac *AdminController) HandleListJobs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"jobs": ac.jobs.Jobs(), "scheduler_running": ac.jobs.IsRunning()})
}

// HandleRunJob runs one job synchronously and returns its result.
func (ac *AdminController) HandleRunJob(c *fiber.Ctx) error {
	name := c.Params("name")
	log.Infof("[Admin] Manual run of %s requested from %s", name, c.IP())

	res, err := ac.jobs.RunNow(c.UserContext(), name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		return errorJSON(c, fiber.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, scheduler.ErrJobLocked):
		return errorJSON(c, fiber.StatusConflict, "locked", err.Error())
	case err != nil:
		log.Errorf("[Admin] Job %s failed: %v", name, err)
		return errorJSON(c, fiber.StatusInternalServerError, "job_failed", err.Error())
	}
	return c.JSON(res)
}

// HandleLatestReport returns the cached weekly report.
func (ac *AdminController) HandleLatestReport(c *fiber.Ctx) error {
	if ac.reports == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "unavailable", "Report cache not configured")
	}
	r, err := ac.reports.Latest(c.UserContext())
	switch {
	case errors.Is(err, cache.ErrNoReport):
		return errorJSON(c, fiber.StatusNotFound, "not_found", "No weekly report generated yet")
	case errors.Is(err, cache.ErrNotConfigured):
		return errorJSON(c, fiber.StatusServiceUnavailable, "unavailable", "Report cache not configured")
	case err != nil:
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load report")
	}
	return c.JSON(r)
}

// HandleWebhookOutcomes returns the webhook outcome counters.
func (ac *AdminController) HandleWebhookOutcomes(c *fiber.Ctx) error {
	if ac.outcomes == nil {
		return c.JSON(fiber.Map{"outcomes": []counter.OutcomeCount{}})
	}
	counts, err := ac.outcomes.Snapshot(c.UserContext())
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load counters")
	}
	if counts == nil {
		counts = []counter.OutcomeCount{}
	}
	return c.JSON(fiber.Map{"outcomes": counts})
}

// HandleGetSubscriber returns the premium state of one subscriber.
func (ac *AdminController) HandleGetSubscriber(c *fiber.Ctx) error {
	sub, err := ac.repos.Subscriber.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subscriber")
	}
	if sub == nil {
		return errorJSON(c, fiber.StatusNotFound, "not_found", "Subscriber not found")
	}
	return c.JSON(fiber.Map{
		"id":                    sub.ID,
		"premium":               sub.Premium,
		"premium_until":         formatTimePtr(sub.PremiumUntil),
		"external_customer_ref": sub.CustomerRef(),
	})
}

// HandleDashboard returns credential counts for a quick overview.
func (ac *AdminController) HandleDashboard(c *fiber.Ctx) error {
	ctx := c.UserContext()
	total, err := ac.repos.Credential.CountAll(ctx)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count credentials")
	}
	active, err := ac.repos.Credential.CountActive(ctx)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count credentials")
	}
	return c.JSON(fiber.Map{
		"credentials_total":  total,
		"credentials_active": active,
		"jobs":               ac.jobs.Jobs(),
	})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
