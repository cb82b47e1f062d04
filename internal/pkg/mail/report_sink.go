package mail

import (
	"context"
	"fmt"
	"html"

	"github.com/ManuelReschke/MeterGate/internal/pkg/lifecycle"
)

// ReportSink mails the weekly report to a fixed recipient.
type ReportSink struct {
	mailer *SMTPMailer
	to     string
}

func NewReportSink(mailer *SMTPMailer, to string) *ReportSink {
	return &ReportSink{mailer: mailer, to: to}
}

func (s *ReportSink) Name() string { return "mail" }

func (s *ReportSink) Deliver(ctx context.Context, r *lifecycle.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := fmt.Sprintf("Weekly security report %s", r.PeriodEnd.Format("2006-01-02"))
	body := "<html><body><pre>" + html.EscapeString(r.Summary()) + "</pre></body></html>"
	return s.mailer.SendMail(s.to, subject, body)
}
