package s3archive

import (
	"context"
	"encoding/json"

	"github.com/ManuelReschke/MeterGate/internal/pkg/lifecycle"
)

// ReportSink archives each weekly report as <prefix>/<period end>.json.
type ReportSink struct {
	client *Client
}

func NewReportSink(c *Client) *ReportSink {
	return &ReportSink{client: c}
}

func (s *ReportSink) Name() string { return "s3" }

// ReportKey returns the object key a report is archived under.
func (s *ReportSink) ReportKey(r *lifecycle.Report) string {
	return s.client.Key(r.PeriodEnd.UTC().Format("2006-01-02") + ".json")
}

func (s *ReportSink) Deliver(ctx context.Context, r *lifecycle.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return s.client.Put(ctx, s.ReportKey(r), "application/json", data)
}
