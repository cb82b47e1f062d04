package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/MeterGate/internal/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
)

const LatestReportKey = "metergate:reports:weekly:latest"

// ErrNoReport is returned when no weekly report was stored yet.
var ErrNoReport = errors.New("no weekly report available")

// ReportStore keeps the most recent weekly report in Redis.
type ReportStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewReportStore creates the store. ttl 0 keeps the key forever.
func NewReportStore(rdb redis.Cmdable, ttl time.Duration) *ReportStore {
	return &ReportStore{rdb: rdb, ttl: ttl}
}

func (s *ReportStore) Name() string { return "cache" }

// Deliver stores r as the latest report.
func (s *ReportStore) Deliver(ctx context.Context, r *lifecycle.Report) error {
	if s == nil || s.rdb == nil {
		return ErrNotConfigured
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return s.rdb.Set(ctx, LatestReportKey, data, s.ttl).Err()
}

// Latest returns the stored report.
func (s *ReportStore) Latest(ctx context.Context) (*lifecycle.Report, error) {
	if s == nil || s.rdb == nil {
		return nil, ErrNotConfigured
	}
	data, err := s.rdb.Get(ctx, LatestReportKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoReport
	}
	if err != nil {
		return nil, err
	}
	var r lifecycle.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}
