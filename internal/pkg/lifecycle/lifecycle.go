// Package lifecycle holds the scheduled credential jobs: daily quota reset,
// expiry rotation, the security heuristic and the weekly report.
package lifecycle

import (
	"context"
	"time"

	"github.com/ManuelReschke/MeterGate/app/models"
	"github.com/google/uuid"
)

// Job names, used by the scheduler, the admin trigger and cmd/jobs.
const (
	JobQuotaReset   = "quota-reset"
	JobRotation     = "credential-rotation"
	JobSecurity     = "security-scan"
	JobWeeklyReport = "weekly-report"
)

// System actors recorded on deactivation.
const (
	ActorRotation = "system:rotation"
	ActorSecurity = "system:security"
)

const DefaultBatchSize = 500

// Job is one independently schedulable task. A returned error means the job
// as a whole failed; per-credential failures are reported in the Result.
type Job interface {
	Name() string
	Run(ctx context.Context) (*Result, error)
}

// CredentialStore is the credential surface used by the jobs.
type CredentialStore interface {
	ListActive(ctx context.Context, afterID uint, limit int) ([]models.Credential, error)
	FindExpired(ctx context.Context, now time.Time, afterID uint, limit int) ([]models.Credential, error)
	ResetDailyCounters(ctx context.Context) (int64, error)
	Deactivate(ctx context.Context, id uint, actor, reason string) error
	CountAll(ctx context.Context) (int64, error)
	CountActive(ctx context.Context) (int64, error)
}

// AccessLogSource aggregates access log rows.
type AccessLogSource interface {
	CountDistinctIPs(ctx context.Context, credentialID uint, since time.Time) (int64, error)
	CountDistinctUserAgents(ctx context.Context, credentialID uint, since time.Time) (int64, error)
	CountSuspicious(ctx context.Context, credentialID uint, since time.Time) (int64, error)
	CountTotal(ctx context.Context, credentialID uint, since time.Time) (int64, error)
	CountTotalSince(ctx context.Context, since time.Time) (int64, error)
	CountSuspiciousSince(ctx context.Context, since time.Time) (int64, error)
}

// ItemStatus is the typed per-credential outcome.
type ItemStatus string

const (
	ItemOK      ItemStatus = "ok"
	ItemSkipped ItemStatus = "skipped"
	ItemFailed  ItemStatus = "failed"
)

type ItemResult struct {
	CredentialID uint       `json:"credential_id"`
	Status       ItemStatus `json:"status"`
	Reason       string     `json:"reason,omitempty"`
	Error        string     `json:"error,omitempty"`
	Analysis     *Analysis  `json:"analysis,omitempty"`
}

// Result is what one job run did.
type Result struct {
	Job        string            `json:"job"`
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Processed  int               `json:"processed"`
	Affected   int64             `json:"affected"`
	Failed     int               `json:"failed"`
	Items      []ItemResult      `json:"items,omitempty"`
	Report     *Report           `json:"report,omitempty"`
	SinkErrors map[string]string `json:"sink_errors,omitempty"`
}

func newResult(job string, now time.Time) *Result {
	return &Result{Job: job, RunID: uuid.NewString(), StartedAt: now}
}

func (r *Result) add(item ItemResult) {
	r.Processed++
	if item.Status == ItemFailed {
		r.Failed++
	}
	r.Items = append(r.Items, item)
}

func (r *Result) finish(now time.Time) *Result {
	r.FinishedAt = now
	return r
}

func batchSizeOrDefault(n int) int {
	if n <= 0 {
		return DefaultBatchSize
	}
	return n
}
