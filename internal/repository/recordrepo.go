package repository

import (
	"context"

	"github.com/and161185/payroll-vault/internal/model"
)

// RecordRepository owns encrypted metadata blobs keyed by (payroll, data type).
type RecordRepository interface {
	// PutRecord atomically re-checks that caller employs the payroll and upserts the blob (last write wins).
	PutRecord(ctx context.Context, caller model.Identity, payrollID uint64, dataType string, blob model.EncryptedBlob) (*model.EncryptedRecord, error)
	// GetRecord loads a blob by key.
	GetRecord(ctx context.Context, payrollID uint64, dataType string) (*model.EncryptedRecord, error)
	// ListDataTypes returns the tags stored for a payroll in lexical order.
	ListDataTypes(ctx context.Context, payrollID uint64) ([]string, error)
}
