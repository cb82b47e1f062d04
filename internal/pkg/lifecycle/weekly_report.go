package lifecycle

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const reportPeriod = 7 * 24 * time.Hour

// Recommendation thresholds.
const (
	HighSuspiciousRatio = 0.10
	HighTotalCalls      = 100000
	HighSuspiciousCalls = 50
)

// Report is the weekly security summary.
type Report struct {
	GeneratedAt            time.Time `json:"generated_at"`
	PeriodStart            time.Time `json:"period_start"`
	PeriodEnd              time.Time `json:"period_end"`
	TotalCredentials       int64     `json:"total_credentials"`
	ActiveCredentials      int64     `json:"active_credentials"`
	DeactivatedCredentials int64     `json:"deactivated_credentials"`
	TotalCalls             int64     `json:"total_calls"`
	SuspiciousCalls        int64     `json:"suspicious_calls"`
	SecurityScore          float64   `json:"security_score"`
	Recommendations        []string  `json:"recommendations"`
}

// ReportSink delivers a finished report somewhere.
type ReportSink interface {
	Name() string
	Deliver(ctx context.Context, r *Report) error
}

// SecurityScore is 100 minus the suspicious percentage, clamped to [0, 100].
// No traffic scores 100.
func SecurityScore(total, suspicious int64) float64 {
	if total <= 0 {
		return 100
	}
	score := 100 - float64(suspicious)/float64(total)*100
	score = math.Max(0, math.Min(100, score))
	return math.Round(score*100) / 100
}

// Recommendations derives the advice lines for a report.
func Recommendations(total, suspicious int64) []string {
	var out []string
	if total > 0 && float64(suspicious)/float64(total) > HighSuspiciousRatio {
		out = append(out, "More than 10% of calls were suspicious: review rejected and throttled clients.")
	}
	if total > HighTotalCalls {
		out = append(out, "Call volume exceeded 100000 this week: review quota limits and capacity.")
	}
	if suspicious > HighSuspiciousCalls {
		out = append(out, "More than 50 suspicious calls: inspect the flagged credentials and consider rotating them.")
	}
	if len(out) == 0 {
		out = append(out, "No action required.")
	}
	return out
}

// Summary renders the report as plain text.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly security report %s - %s\n\n",
		r.PeriodStart.Format("2006-01-02"), r.PeriodEnd.Format("2006-01-02"))
	fmt.Fprintf(&b, "Credentials: %d total, %d active, %d deactivated\n",
		r.TotalCredentials, r.ActiveCredentials, r.DeactivatedCredentials)
	fmt.Fprintf(&b, "Calls: %d total, %d suspicious\n", r.TotalCalls, r.SuspiciousCalls)
	fmt.Fprintf(&b, "Security score: %.2f\n\nRecommendations:\n", r.SecurityScore)
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "- %s\n", rec)
	}
	return b.String()
}

// WeeklyReportJob aggregates the last seven days and hands the report to the
// configured sinks. Sink failures never fail the job.
type WeeklyReportJob struct {
	credentials CredentialStore
	logs        AccessLogSource
	sinks       []ReportSink
	now         func() time.Time
}

func NewWeeklyReportJob(credentials CredentialStore, logs AccessLogSource, sinks ...ReportSink) *WeeklyReportJob {
	return &WeeklyReportJob{credentials: credentials, logs: logs, sinks: sinks, now: time.Now}
}

func (j *WeeklyReportJob) Name() string { return JobWeeklyReport }

// Build computes the report without delivering it.
func (j *WeeklyReportJob) Build(ctx context.Context) (*Report, error) {
	now := j.now().UTC()
	since := now.Add(-reportPeriod)

	total, err := j.credentials.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count credentials: %w", err)
	}
	active, err := j.credentials.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active credentials: %w", err)
	}
	calls, err := j.logs.CountTotalSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("count calls: %w", err)
	}
	suspicious, err := j.logs.CountSuspiciousSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("count suspicious calls: %w", err)
	}

	return &Report{
		GeneratedAt:            now,
		PeriodStart:            since,
		PeriodEnd:              now,
		TotalCredentials:       total,
		ActiveCredentials:      active,
		DeactivatedCredentials: total - active,
		TotalCalls:             calls,
		SuspiciousCalls:        suspicious,
		SecurityScore:          SecurityScore(calls, suspicious),
		Recommendations:        Recommendations(calls, suspicious),
	}, nil
}

func (j *WeeklyReportJob) Run(ctx context.Context) (*Result, error) {
	res := newResult(j.Name(), j.now())
	report, err := j.Build(ctx)
	if err != nil {
		return res.finish(j.now()), err
	}
	res.Report = report

	for _, sink := range j.sinks {
		if err := sink.Deliver(ctx, report); err != nil {
			log.Errorf("[Lifecycle] Weekly report delivery via %s failed: %v", sink.Name(), err)
			if res.SinkErrors == nil {
				res.SinkErrors = map[string]string{}
			}
			res.SinkErrors[sink.Name()] = err.Error()
			continue
		}
		res.Affected++
	}

	log.Infof("[Lifecycle] Weekly report: score %.2f over %d calls, delivered to %d/%d sinks",
		report.SecurityScore, report.TotalCalls, res.Affected, len(j.sinks))
	return res.finish(j.now()), nil
}
