package export

import (
	"context"
	"fmt"

	"filippo.io/age"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/payroll-vault/internal/audit"
)

// ReportWriter marshals audit reports, seals them when recipients are set and
// hands them to a Sink.
type ReportWriter struct {
	sink       Sink
	recipients []age.Recipient
}

// NewReportWriter constructs a writer. With no recipients reports are stored as plain JSON.
func NewReportWriter(sink Sink, recipients ...age.Recipient) *ReportWriter {
	return &ReportWriter{sink: sink, recipients: recipients}
}

// WriteReport stores rep under payroll-<id>/<timestamp>-<uuid>.json[.age].
func (w *ReportWriter) WriteReport(ctx context.Context, rep audit.Report) (string, error) {
	body, err := rep.Marshal()
	if err != nil {
		return "", fmt.Errorf("export: marshal report: %w", err)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("payroll-%d/%s-%s.json", rep.PayrollID, rep.GeneratedAt.UTC().Format("20060102T150405Z"), id)
	contentType := "application/json"
	if len(w.recipients) > 0 {
		if body, err = Seal(body, w.recipients...); err != nil {
			return "", err
		}
		key += ".age"
		contentType = "application/octet-stream"
	}
	return w.sink.Put(ctx, key, body, contentType)
}
