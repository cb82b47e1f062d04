package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// QuotaResetJob zeroes every credential's daily counter. Running it twice in
// a day is harmless.
type QuotaResetJob struct {
	credentials CredentialStore
	now         func() time.Time
}

func NewQuotaResetJob(credentials CredentialStore) *QuotaResetJob {
	return &QuotaResetJob{credentials: credentials, now: time.Now}
}

func (j *QuotaResetJob) Name() string { return JobQuotaReset }

func (j *QuotaResetJob) Run(ctx context.Context) (*Result, error) {
	res := newResult(j.Name(), j.now())
	n, err := j.credentials.ResetDailyCounters(ctx)
	if err != nil {
		return res.finish(j.now()), fmt.Errorf("reset daily counters: %w", err)
	}
	res.Affected = n
	log.Infof("[Lifecycle] Daily quota reset cleared %d credentials", n)
	return res.finish(j.now()), nil
}
