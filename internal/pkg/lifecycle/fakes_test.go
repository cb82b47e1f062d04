package lifecycle

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ManuelReschke/MeterGate/app/models"
)

var errStoreDown = errors.New("store unavailable")

type fakeCredentials struct {
	mu            sync.Mutex
	rows          map[uint]*models.Credential
	listErr       error
	deactivateErr map[uint]error
	pageCalls     int
}

func newFakeCredentials(creds ...models.Credential) *fakeCredentials {
	f := &fakeCredentials{rows: map[uint]*models.Credential{}, deactivateErr: map[uint]error{}}
	for i := range creds {
		c := creds[i]
		f.rows[c.ID] = &c
	}
	return f
}

func (f *fakeCredentials) sorted(match func(*models.Credential) bool, afterID uint, limit int) []models.Credential {
	var out []models.Credential
	for _, c := range f.rows {
		if c.ID > afterID && match(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *fakeCredentials) ListActive(_ context.Context, afterID uint, limit int) ([]models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sorted(func(c *models.Credential) bool { return c.IsActive }, afterID, limit), nil
}

func (f *fakeCredentials) FindExpired(_ context.Context, now time.Time, afterID uint, limit int) ([]models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sorted(func(c *models.Credential) bool { return c.IsActive && c.IsExpired(now) }, afterID, limit), nil
}

func (f *fakeCredentials) ResetDailyCounters(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return 0, f.listErr
	}
	var n int64
	for _, c := range f.rows {
		if c.DailyQuotaUsed != 0 {
			c.DailyQuotaUsed = 0
			n++
		}
	}
	return n, nil
}

func (f *fakeCredentials) Deactivate(_ context.Context, id uint, actor, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deactivateErr[id]; err != nil {
		return err
	}
	c := f.rows[id]
	if !c.IsActive {
		return nil
	}
	c.IsActive = false
	c.DeactivatedBy = actor
	c.DeactivationReason = reason
	return nil
}

func (f *fakeCredentials) CountAll(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

func (f *fakeCredentials) CountActive(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, c := range f.rows {
		if c.IsActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeCredentials) get(id uint) models.Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

type usage struct {
	ips, uas, suspicious, total int64
}

type fakeLogs struct {
	perCredential   map[uint]usage
	failFor         map[uint]bool
	totalSince      int64
	suspiciousSince int64
	err             error
}

func (f *fakeLogs) lookup(id uint) (usage, error) {
	if f.err != nil {
		return usage{}, f.err
	}
	if f.failFor[id] {
		return usage{}, errStoreDown
	}
	return f.perCredential[id], nil
}

func (f *fakeLogs) CountDistinctIPs(_ context.Context, id uint, _ time.Time) (int64, error) {
	u, err := f.lookup(id)
	return u.ips, err
}

func (f *fakeLogs) CountDistinctUserAgents(_ context.Context, id uint, _ time.Time) (int64, error) {
	u, err := f.lookup(id)
	return u.uas, err
}

func (f *fakeLogs) CountSuspicious(_ context.Context, id uint, _ time.Time) (int64, error) {
	u, err := f.lookup(id)
	return u.suspicious, err
}

func (f *fakeLogs) CountTotal(_ context.Context, id uint, _ time.Time) (int64, error) {
	u, err := f.lookup(id)
	return u.total, err
}

func (f *fakeLogs) CountTotalSince(context.Context, time.Time) (int64, error) {
	return f.totalSince, f.err
}

func (f *fakeLogs) CountSuspiciousSince(context.Context, time.Time) (int64, error) {
	return f.suspiciousSince, f.err
}

type recordingSink struct {
	name    string
	err     error
	reports []*Report
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, r *Report) error {
	if s.err != nil {
		return s.err
	}
	s.reports = append(s.reports, r)
	return nil
}
