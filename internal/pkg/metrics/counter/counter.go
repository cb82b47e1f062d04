package counter

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/ManuelReschke/MeterGate/internal/pkg/billing"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const webhookOutcomesKey = "billing:webhook:outcomes"

// WebhookOutcomes counts processed webhook events per type and outcome in a
// Redis hash. Field layout is "<event type>|<status>".
type WebhookOutcomes struct {
	rdb redis.Cmdable
}

func NewWebhookOutcomes(rdb redis.Cmdable) *WebhookOutcomes {
	return &WebhookOutcomes{rdb: rdb}
}

// RecordOutcome increments the counter for one processed event. Errors are
// logged only, counting must never fail a webhook.
func (w *WebhookOutcomes) RecordOutcome(ctx context.Context, eventType string, status billing.OutcomeStatus) {
	if w == nil || w.rdb == nil {
		return
	}
	if err := w.rdb.HIncrBy(ctx, webhookOutcomesKey, field(eventType, status), 1).Err(); err != nil {
		log.Warnf("[Metrics] Failed to count webhook outcome %s/%s: %v", eventType, status, err)
	}
}

// OutcomeCount is one row of the outcome snapshot.
type OutcomeCount struct {
	EventType string                `json:"event_type"`
	Status    billing.OutcomeStatus `json:"status"`
	Count     int64                 `json:"count"`
}

// Snapshot returns all counters sorted by event type and status.
func (w *WebhookOutcomes) Snapshot(ctx context.Context) ([]OutcomeCount, error) {
	if w == nil || w.rdb == nil {
		return nil, nil
	}
	data, err := w.rdb.HGetAll(ctx, webhookOutcomesKey).Result()
	if err != nil {
		return nil, err
	}
	return parseCounts(data), nil
}

func field(eventType string, status billing.OutcomeStatus) string {
	if eventType == "" {
		eventType = "unknown"
	}
	return eventType + "|" + string(status)
}

func parseCounts(data map[string]string) []OutcomeCount {
	counts := make([]OutcomeCount, 0, len(data))
	for k, v := range data {
		i := strings.LastIndex(k, "|")
		if i <= 0 {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		counts = append(counts, OutcomeCount{
			EventType: k[:i],
			Status:    billing.OutcomeStatus(k[i+1:]),
			Count:     n,
		})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].EventType != counts[j].EventType {
			return counts[i].EventType < counts[j].EventType
		}
		return counts[i].Status < counts[j].Status
	})
	return counts
}
