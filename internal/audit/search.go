package audit

import (
	"strings"

	"github.com/and161185/payroll-vault/internal/model"
)

// Search keeps records whose employee id or hash contains term, ignoring case.
// An empty term keeps everything.
func Search(records []model.AuditRecord, term string) []model.AuditRecord {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return records
	}
	var out []model.AuditRecord
	for _, r := range records {
		if strings.Contains(strings.ToLower(string(r.EmployeeID)), term) ||
			strings.Contains(strings.ToLower(r.Hash), term) {
			out = append(out, r)
		}
	}
	return out
}
