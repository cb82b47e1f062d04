package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// RotationJob deactivates credentials whose expiry has passed.
type RotationJob struct {
	credentials CredentialStore
	batchSize   int
	now         func() time.Time
}

func NewRotationJob(credentials CredentialStore, batchSize int) *RotationJob {
	return &RotationJob{credentials: credentials, batchSize: batchSizeOrDefault(batchSize), now: time.Now}
}

func (j *RotationJob) Name() string { return JobRotation }

func (j *RotationJob) Run(ctx context.Context) (*Result, error) {
	now := j.now()
	res := newResult(j.Name(), now)

	var afterID uint
	for {
		page, err := j.credentials.FindExpired(ctx, now, afterID, j.batchSize)
		if err != nil {
			return res.finish(j.now()), fmt.Errorf("find expired credentials after %d: %w", afterID, err)
		}
		for _, cred := range page {
			afterID = cred.ID
			// The store filters on its own clock; skip rows this clock does not see expired yet.
			if !cred.IsExpired(now) {
				res.add(ItemResult{CredentialID: cred.ID, Status: ItemSkipped, Reason: "not_expired"})
				continue
			}
			item := ItemResult{CredentialID: cred.ID, Status: ItemOK, Reason: "expired"}
			if err := j.credentials.Deactivate(ctx, cred.ID, ActorRotation, "expired"); err != nil {
				log.Errorf("[Lifecycle] Failed to deactivate expired credential %d: %v", cred.ID, err)
				item.Status = ItemFailed
				item.Error = err.Error()
			} else {
				res.Affected++
			}
			res.add(item)
		}
		if len(page) < j.batchSize {
			break
		}
	}

	log.Infof("[Lifecycle] Rotation deactivated %d of %d expired credentials", res.Affected, res.Processed)
	return res.finish(j.now()), nil
}
