package audit

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/and161185/payroll-vault/internal/model"
)

// Entry is the serialized form of one audit record.
type Entry struct {
	PaymentID       uint64            `json:"paymentId"`
	EmployeeID      string            `json:"employeeId"`
	EncryptedAmount string            `json:"encryptedAmount"`
	Amount          string            `json:"amount,omitempty"`
	Hash            string            `json:"hash"`
	Timestamp       time.Time         `json:"timestamp"`
	Status          model.AuditStatus `json:"status"`
	Verified        bool              `json:"verified"`
}

// Report is a downloadable audit snapshot of one payroll.
type Report struct {
	PayrollID   uint64    `json:"payrollId"`
	Root        string    `json:"merkleRoot"`
	GeneratedAt time.Time `json:"generatedAt"`
	Entries     []Entry   `json:"records"`
}

// Leaf binds a record's commitment to the amount and time disclosed next to it:
// keccak(len(hash) ‖ hash ‖ len(amount) ‖ amount ‖ be64(unix) ‖ be32(nanos)).
func Leaf(hash, amount string, at time.Time) string {
	h := sha3.NewLegacyKeccak256()
	writeField(h, []byte(hash))
	writeField(h, []byte(amount))
	var ts [12]byte
	binary.BigEndian.PutUint64(ts[:8], uint64(at.Unix()))
	binary.BigEndian.PutUint32(ts[8:], uint32(at.Nanosecond()))
	h.Write(ts[:])
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// NewReport checks every record and commits to their leaves with a Merkle root.
func NewReport(payrollID uint64, records []model.AuditRecord, at time.Time) Report {
	rep := Report{PayrollID: payrollID, GeneratedAt: at.UTC(), Entries: make([]Entry, 0, len(records))}
	leaves := make([]string, 0, len(records))
	for _, r := range CheckAll(records) {
		rep.Entries = append(rep.Entries, Entry{
			PaymentID:       r.PaymentID,
			EmployeeID:      string(r.EmployeeID),
			EncryptedAmount: hex.EncodeToString(r.EncryptedAmount),
			Amount:          r.Amount,
			Hash:            r.Hash,
			Timestamp:       r.Timestamp,
			Status:          r.Status,
			Verified:        r.Verified,
		})
		leaves = append(leaves, Leaf(r.Hash, r.Amount, r.Timestamp))
	}
	rep.Root = MerkleRoot(leaves)
	return rep
}

// Records converts the entries back into audit records.
func (r Report) Records() ([]model.AuditRecord, error) {
	out := make([]model.AuditRecord, 0, len(r.Entries))
	for i, e := range r.Entries {
		ct, err := hex.DecodeString(e.EncryptedAmount)
		if err != nil {
			return nil, fmt.Errorf("record[%d]: encrypted amount: %w", i, err)
		}
		out = append(out, model.AuditRecord{
			PayrollID:       r.PayrollID,
			PaymentID:       e.PaymentID,
			EmployeeID:      model.Identity(e.EmployeeID),
			EncryptedAmount: ct,
			Amount:          e.Amount,
			Hash:            e.Hash,
			Timestamp:       e.Timestamp,
			Status:          e.Status,
			Verified:        e.Verified,
		})
	}
	return out, nil
}

// Check re-verifies every entry and the Merkle root. It reports the records
// with fresh verdicts and whether the root still matches; an edited amount or
// timestamp only shows up in the root.
func (r Report) Check() ([]model.AuditRecord, bool, error) {
	recs, err := r.Records()
	if err != nil {
		return nil, false, err
	}
	recs = CheckAll(recs)
	leaves := make([]string, len(recs))
	for i, rec := range recs {
		leaves[i] = Leaf(rec.Hash, rec.Amount, rec.Timestamp)
	}
	return recs, MerkleRoot(leaves) == r.Root, nil
}

// Marshal encodes the report as indented JSON.
func (r Report) Marshal() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ParseReport decodes a JSON report.
func ParseReport(b []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(b, &r); err != nil {
		return Report{}, err
	}
	return r, nil
}
