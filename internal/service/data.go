package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/payroll-vault/internal/identity"
	"github.com/and161185/payroll-vault/internal/limiter"
	"github.com/and161185/payroll-vault/internal/model"
	"github.com/and161185/payroll-vault/internal/proof"
	"github.com/and161185/payroll-vault/internal/repository"
)

// DataService defines the encrypted metadata store operations.
type DataService interface {
	// EncryptAndStoreData upserts a proof-checked blob under (payrollID, dataType).
	EncryptAndStoreData(ctx context.Context, caller model.Identity, payrollID uint64,
		encryptedData model.EncryptedBlob, inputProof []byte, dataType string) (bool, error)
	// GetEncryptedData returns the stored ciphertext; no authorization gate.
	GetEncryptedData(ctx context.Context, payrollID uint64, dataType string) (model.EncryptedBlob, error)
	// ListDataTypes returns the tags stored for an existing payroll.
	ListDataTypes(ctx context.Context, payrollID uint64) ([]string, error)
}

type DataServiceImpl struct {
	records repository.RecordRepository
	gate    *identity.Gate
	check   proofCheck
	pub     Publisher
}

// NewDataService constructs DataService. lim may be nil.
func NewDataService(
	records repository.RecordRepository,
	gate *identity.Gate,
	verifier proof.Verifier,
	lim limiter.Limiter,
	pub Publisher,
	log *zap.Logger,
) *DataServiceImpl {
	return &DataServiceImpl{
		records: records,
		gate:    gate,
		check:   proofCheck{verifier: verifier, lim: lim, log: loggerOrNop(log)},
		pub:     publisherOrNop(pub),
	}
}

// EncryptAndStoreData does not look at isActive: metadata stays writable after deactivation.
func (s *DataServiceImpl) EncryptAndStoreData(
	ctx context.Context, caller model.Identity, payrollID uint64,
	encryptedData model.EncryptedBlob, inputProof []byte, dataType string,
) (bool, error) {
	if strings.TrimSpace(dataType) == "" {
		return false, invalid("empty data type")
	}
	if _, err := s.gate.RequireEmployer(ctx, caller, payrollID); err != nil {
		return false, err
	}
	if err := s.check.verify(ctx, caller, encryptedData, inputProof, proof.DataContext(payrollID, dataType)); err != nil {
		return false, err
	}
	rec, err := s.records.PutRecord(ctx, caller, payrollID, dataType, encryptedData)
	if err != nil {
		return false, err
	}
	s.pub.Publish(model.Event{
		Kind:      model.EventEncryptedDataStored,
		PayrollID: payrollID,
		DataType:  dataType,
		At:        rec.StoredAt,
	})
	return true, nil
}

// GetEncryptedData is a plain read.
func (s *DataServiceImpl) GetEncryptedData(ctx context.Context, payrollID uint64, dataType string) (model.EncryptedBlob, error) {
	rec, err := s.records.GetRecord(ctx, payrollID, dataType)
	if err != nil {
		return nil, err
	}
	return rec.Ciphertext, nil
}

// ListDataTypes returns NotFound for unknown payrolls.
func (s *DataServiceImpl) ListDataTypes(ctx context.Context, payrollID uint64) ([]string, error) {
	if _, err := s.gate.Payroll(ctx, payrollID); err != nil {
		return nil, err
	}
	return s.records.ListDataTypes(ctx, payrollID)
}
