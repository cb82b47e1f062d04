package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ManuelReschke/MeterGate/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func ptr(t time.Time) *time.Time { return &t }

func TestQuotaResetJob(t *testing.T) {
	creds := newFakeCredentials(
		models.Credential{ID: 1, DailyQuotaUsed: 10, MinuteQuotaUsed: 3, IsActive: true},
		models.Credential{ID: 2, DailyQuotaUsed: 0, MinuteQuotaUsed: 1, IsActive: false},
	)
	job := NewQuotaResetJob(creds)

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, JobQuotaReset, res.Job)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, int64(1), res.Affected)

	res, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Affected)

	c1 := creds.get(1)
	assert.Zero(t, c1.DailyQuotaUsed)
	assert.Equal(t, int64(3), c1.MinuteQuotaUsed)
	assert.True(t, c1.IsActive)
	assert.False(t, creds.get(2).IsActive)
}

func TestQuotaResetJob_StoreFailure(t *testing.T) {
	creds := newFakeCredentials()
	creds.listErr = errStoreDown
	_, err := NewQuotaResetJob(creds).Run(context.Background())
	assert.ErrorIs(t, err, errStoreDown)
}

func TestRotationJob(t *testing.T) {
	yesterday := testNow.Add(-24 * time.Hour)
	tomorrow := testNow.Add(24 * time.Hour)
	creds := newFakeCredentials(
		models.Credential{ID: 1, IsActive: true, ExpiresAt: ptr(yesterday)},
		models.Credential{ID: 2, IsActive: true, ExpiresAt: ptr(tomorrow)},
		models.Credential{ID: 3, IsActive: true},
		models.Credential{ID: 4, IsActive: true, ExpiresAt: ptr(testNow)},
		models.Credential{ID: 5, IsActive: true, ExpiresAt: ptr(yesterday)},
	)
	job := NewRotationJob(creds, 1)
	job.now = fixedClock

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, int64(2), res.Affected)

	assert.False(t, creds.get(1).IsActive)
	assert.Equal(t, ActorRotation, creds.get(1).DeactivatedBy)
	assert.False(t, creds.get(5).IsActive)
	assert.True(t, creds.get(2).IsActive)
	assert.True(t, creds.get(3).IsActive)
	// expires_at == now is not expired yet.
	assert.True(t, creds.get(4).IsActive)

	again, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Processed)
}

func TestRotationJob_ItemFailureDoesNotAbortBatch(t *testing.T) {
	yesterday := testNow.Add(-time.Hour)
	creds := newFakeCredentials(
		models.Credential{ID: 1, IsActive: true, ExpiresAt: ptr(yesterday)},
		models.Credential{ID: 2, IsActive: true, ExpiresAt: ptr(yesterday)},
	)
	creds.deactivateErr[1] = errStoreDown
	job := NewRotationJob(creds, 10)
	job.now = fixedClock

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Items, 2)
	assert.Equal(t, ItemFailed, res.Items[0].Status)
	assert.Equal(t, ItemOK, res.Items[1].Status)
	assert.False(t, creds.get(2).IsActive)
}

type looseExpiryStore struct {
	*fakeCredentials
}

// FindExpired returns every active credential, as a store with a skewed clock would.
func (s looseExpiryStore) FindExpired(ctx context.Context, _ time.Time, afterID uint, limit int) ([]models.Credential, error) {
	return s.ListActive(ctx, afterID, limit)
}

func TestRotationJob_SkipsCredentialsNotYetExpired(t *testing.T) {
	creds := newFakeCredentials(
		models.Credential{ID: 1, IsActive: true, ExpiresAt: ptr(testNow.Add(-time.Minute))},
		models.Credential{ID: 2, IsActive: true, ExpiresAt: ptr(testNow.Add(time.Minute))},
		models.Credential{ID: 3, IsActive: true},
	)
	job := NewRotationJob(looseExpiryStore{creds}, 10)
	job.now = fixedClock

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Affected)
	require.Len(t, res.Items, 3)
	assert.Equal(t, ItemOK, res.Items[0].Status)
	assert.Equal(t, ItemSkipped, res.Items[1].Status)
	assert.Equal(t, "not_expired", res.Items[1].Reason)
	assert.Equal(t, ItemSkipped, res.Items[2].Status)
	assert.False(t, creds.get(1).IsActive)
	assert.True(t, creds.get(2).IsActive)
	assert.True(t, creds.get(3).IsActive)
}

func TestAnalysisEvaluate(t *testing.T) {
	a := Analysis{DistinctIPs: 6}.Evaluate()
	assert.True(t, a.Suspicious)
	assert.False(t, a.Deactivate)
	assert.Equal(t, []string{"distinct_ips"}, a.Reasons)

	a = Analysis{DistinctIPs: 5, DistinctUserAgents: 3, SuspiciousCalls: 5, TotalCalls: 10000}.Evaluate()
	assert.False(t, a.Suspicious)

	a = Analysis{SuspiciousCalls: 10}.Evaluate()
	assert.True(t, a.Suspicious)
	assert.False(t, a.Deactivate)

	a = Analysis{SuspiciousCalls: 11}.Evaluate()
	assert.True(t, a.Deactivate)
}

func TestSecurityJob(t *testing.T) {
	creds := newFakeCredentials(
		models.Credential{ID: 1, IsActive: true}, // many ips only
		models.Credential{ID: 2, IsActive: true}, // abusive
		models.Credential{ID: 3, IsActive: true}, // clean
		models.Credential{ID: 4, IsActive: true}, // broken analysis
		models.Credential{ID: 5, IsActive: false},
	)
	logs := &fakeLogs{
		perCredential: map[uint]usage{
			1: {ips: 6, uas: 1, total: 20},
			2: {ips: 1, uas: 1, suspicious: 11, total: 30},
			3: {ips: 1, uas: 1, total: 5},
			5: {suspicious: 100},
		},
		failFor: map[uint]bool{4: true},
	}
	job := NewSecurityJob(creds, logs, 0, 2)
	job.now = fixedClock

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 1, res.Failed)

	byID := map[uint]ItemResult{}
	for _, item := range res.Items {
		byID[item.CredentialID] = item
	}

	require.NotNil(t, byID[1].Analysis)
	assert.True(t, byID[1].Analysis.Suspicious)
	assert.Equal(t, "flagged", byID[1].Reason)
	assert.True(t, creds.get(1).IsActive)

	assert.Equal(t, "deactivated", byID[2].Reason)
	assert.False(t, creds.get(2).IsActive)
	assert.Equal(t, ActorSecurity, creds.get(2).DeactivatedBy)

	assert.Equal(t, "clean", byID[3].Reason)
	assert.Equal(t, ItemFailed, byID[4].Status)
	assert.True(t, creds.get(4).IsActive)

	_, inspected := byID[5]
	assert.False(t, inspected)
}

func TestSecurityJob_ListFailureFailsJob(t *testing.T) {
	creds := newFakeCredentials()
	creds.listErr = errStoreDown
	_, err := NewSecurityJob(creds, &fakeLogs{}, time.Hour, 10).Run(context.Background())
	assert.ErrorIs(t, err, errStoreDown)
}

func TestSecurityScore(t *testing.T) {
	assert.Equal(t, float64(100), SecurityScore(0, 0))
	assert.Equal(t, float64(100), SecurityScore(0, 25))
	assert.Equal(t, float64(90), SecurityScore(100, 10))
	assert.Equal(t, float64(0), SecurityScore(10, 10))
	assert.Equal(t, float64(0), SecurityScore(10, 50))

	for total := int64(0); total < 50; total += 7 {
		for suspicious := int64(0); suspicious < 80; suspicious += 9 {
			score := SecurityScore(total, suspicious)
			assert.GreaterOrEqual(t, score, float64(0))
			assert.LessOrEqual(t, score, float64(100))
		}
	}
}

func TestRecommendations(t *testing.T) {
	assert.Equal(t, []string{"No action required."}, Recommendations(1000, 10))
	assert.Len(t, Recommendations(100, 20), 1)
	assert.Len(t, Recommendations(200000, 60), 2)
	assert.Len(t, Recommendations(400, 60), 2)
}

func TestWeeklyReportJob(t *testing.T) {
	creds := newFakeCredentials(
		models.Credential{ID: 1, IsActive: true},
		models.Credential{ID: 2, IsActive: false},
		models.Credential{ID: 3, IsActive: true},
	)
	logs := &fakeLogs{totalSince: 1000, suspiciousSince: 150}
	good := &recordingSink{name: "cache"}
	bad := &recordingSink{name: "mail", err: errors.New("smtp down")}

	job := NewWeeklyReportJob(creds, logs, good, bad)
	job.now = fixedClock

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Report)

	r := res.Report
	assert.Equal(t, int64(3), r.TotalCredentials)
	assert.Equal(t, int64(2), r.ActiveCredentials)
	assert.Equal(t, int64(1), r.DeactivatedCredentials)
	assert.Equal(t, float64(85), r.SecurityScore)
	assert.Equal(t, testNow.Add(-7*24*time.Hour), r.PeriodStart)
	assert.Len(t, r.Recommendations, 2)
	assert.Contains(t, r.Summary(), "Security score: 85.00")

	assert.Len(t, good.reports, 1)
	assert.Equal(t, int64(1), res.Affected)
	assert.Equal(t, "smtp down", res.SinkErrors["mail"])
}

func TestWeeklyReportJob_StoreFailure(t *testing.T) {
	job := NewWeeklyReportJob(newFakeCredentials(), &fakeLogs{err: errStoreDown})
	_, err := job.Run(context.Background())
	assert.ErrorIs(t, err, errStoreDown)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(Deps{Credentials: newFakeCredentials(), AccessLogs: &fakeLogs{}})
	assert.Equal(t, []string{JobRotation, JobQuotaReset, JobSecurity, JobWeeklyReport}, r.Names())

	j, err := r.Get(JobSecurity)
	require.NoError(t, err)
	assert.Equal(t, JobSecurity, j.Name())

	_, err = r.Get("nope")
	assert.Error(t, err)
}
