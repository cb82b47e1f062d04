package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Security heuristic thresholds. A credential is flagged when any count
// exceeds its limit inside the window.
const (
	MaxDistinctIPs        = 5
	MaxDistinctUserAgents = 3
	MaxSuspiciousCalls    = 5
	MaxTotalCalls         = 10000
)

// AutoDeactivateSuspiciousCalls is the only threshold that acts.
const AutoDeactivateSuspiciousCalls = 10

const DefaultSecurityWindow = 24 * time.Hour

// Analysis is the access pattern of one credential over the window.
type Analysis struct {
	DistinctIPs        int64    `json:"distinct_ips"`
	DistinctUserAgents int64    `json:"distinct_user_agents"`
	SuspiciousCalls    int64    `json:"suspicious_calls"`
	TotalCalls         int64    `json:"total_calls"`
	Suspicious         bool     `json:"suspicious"`
	Reasons            []string `json:"reasons,omitempty"`
	Deactivate         bool     `json:"deactivate"`
}

// Evaluate applies the thresholds to the raw counts.
func (a Analysis) Evaluate() Analysis {
	a.Reasons = nil
	if a.DistinctIPs > MaxDistinctIPs {
		a.Reasons = append(a.Reasons, "distinct_ips")
	}
	if a.DistinctUserAgents > MaxDistinctUserAgents {
		a.Reasons = append(a.Reasons, "distinct_user_agents")
	}
	if a.SuspiciousCalls > MaxSuspiciousCalls {
		a.Reasons = append(a.Reasons, "suspicious_calls")
	}
	if a.TotalCalls > MaxTotalCalls {
		a.Reasons = append(a.Reasons, "total_calls")
	}
	a.Suspicious = len(a.Reasons) > 0
	a.Deactivate = a.SuspiciousCalls > AutoDeactivateSuspiciousCalls
	return a
}

// SecurityJob scores recent activity of every active credential and
// deactivates the worst offenders. False positives are expected.
type SecurityJob struct {
	credentials CredentialStore
	logs        AccessLogSource
	window      time.Duration
	batchSize   int
	now         func() time.Time
}

func NewSecurityJob(credentials CredentialStore, logs AccessLogSource, window time.Duration, batchSize int) *SecurityJob {
	if window <= 0 {
		window = DefaultSecurityWindow
	}
	return &SecurityJob{
		credentials: credentials,
		logs:        logs,
		window:      window,
		batchSize:   batchSizeOrDefault(batchSize),
		now:         time.Now,
	}
}

func (j *SecurityJob) Name() string { return JobSecurity }

func (j *SecurityJob) analyze(ctx context.Context, credentialID uint, since time.Time) (Analysis, error) {
	var a Analysis
	var err error
	if a.DistinctIPs, err = j.logs.CountDistinctIPs(ctx, credentialID, since); err != nil {
		return a, fmt.Errorf("count distinct ips: %w", err)
	}
	if a.DistinctUserAgents, err = j.logs.CountDistinctUserAgents(ctx, credentialID, since); err != nil {
		return a, fmt.Errorf("count distinct user agents: %w", err)
	}
	if a.SuspiciousCalls, err = j.logs.CountSuspicious(ctx, credentialID, since); err != nil {
		return a, fmt.Errorf("count suspicious calls: %w", err)
	}
	if a.TotalCalls, err = j.logs.CountTotal(ctx, credentialID, since); err != nil {
		return a, fmt.Errorf("count calls: %w", err)
	}
	return a.Evaluate(), nil
}

func (j *SecurityJob) Run(ctx context.Context) (*Result, error) {
	now := j.now()
	since := now.Add(-j.window)
	res := newResult(j.Name(), now)
	flagged := 0

	var afterID uint
	for {
		page, err := j.credentials.ListActive(ctx, afterID, j.batchSize)
		if err != nil {
			return res.finish(j.now()), fmt.Errorf("list active credentials after %d: %w", afterID, err)
		}
		for _, cred := range page {
			afterID = cred.ID
			item := j.inspect(ctx, cred.ID, since)
			if item.Analysis != nil && item.Analysis.Suspicious {
				flagged++
			}
			res.add(item)
		}
		if len(page) < j.batchSize {
			break
		}
	}

	log.Infof("[Lifecycle] Security scan: %d credentials, %d flagged, %d deactivated, %d failed",
		res.Processed, flagged, res.Affected, res.Failed)
	return res.finish(j.now()), nil
}

// inspect analyses one credential. Errors stay inside the item.
func (j *SecurityJob) inspect(ctx context.Context, credentialID uint, since time.Time) ItemResult {
	item := ItemResult{CredentialID: credentialID, Status: ItemOK, Reason: "clean"}

	a, err := j.analyze(ctx, credentialID, since)
	if err != nil {
		log.Errorf("[Lifecycle] Security analysis of credential %d failed: %v", credentialID, err)
		item.Status = ItemFailed
		item.Error = err.Error()
		return item
	}
	item.Analysis = &a
	if !a.Suspicious {
		return item
	}

	item.Reason = "flagged"
	log.Warnf("[Lifecycle] Credential %d flagged as suspicious: %v", credentialID, a.Reasons)
	if !a.Deactivate {
		return item
	}

	reason := fmt.Sprintf("suspicious activity: %d suspicious calls", a.SuspiciousCalls)
	if err := j.credentials.Deactivate(ctx, credentialID, ActorSecurity, reason); err != nil {
		log.Errorf("[Lifecycle] Failed to deactivate suspicious credential %d: %v", credentialID, err)
		item.Status = ItemFailed
		item.Error = err.Error()
		return item
	}
	item.Reason = "deactivated"
	return item
}
