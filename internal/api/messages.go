package api

import (
	"time"

	"github.com/and161185/payroll-vault/internal/audit"
)

// Empty is returned by RPCs without a payload.
type Empty struct{}

// PayrollRef addresses one payroll.
type PayrollRef struct {
	PayrollID uint64 `json:"payrollId"`
}

type Payroll struct {
	ID            uint64    `json:"id"`
	Employer      string    `json:"employer"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	EmployeeCount uint8     `json:"employeeCount"`
	TotalAmount   uint8     `json:"totalAmount"`
	IsActive      bool      `json:"isActive"`
	IsVerified    bool      `json:"isVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Payment struct {
	ID              uint64    `json:"id"`
	PayrollID       uint64    `json:"payrollId"`
	Employee        string    `json:"employee"`
	EncryptedAmount []byte    `json:"encryptedAmount"`
	InputProof      []byte    `json:"inputProof"`
	CreatedAt       time.Time `json:"createdAt"`
}

type AuditRecord struct {
	PayrollID       uint64    `json:"payrollId"`
	PaymentID       uint64    `json:"paymentId"`
	EmployeeID      string    `json:"employeeId"`
	EncryptedAmount []byte    `json:"encryptedAmount"`
	Amount          string    `json:"amount,omitempty"`
	Hash            string    `json:"hash"`
	Timestamp       time.Time `json:"timestamp"`
	Status          string    `json:"status"`
	Verified        bool      `json:"verified"`
}

type CreatePayrollRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CreatePayrollResponse struct {
	PayrollID uint64 `json:"payrollId"`
}

// ListPayrollsRequest filters by employer; empty lists every payroll.
type ListPayrollsRequest struct {
	Employer string `json:"employer,omitempty"`
}

type ListPayrollsResponse struct {
	Payrolls []Payroll `json:"payrolls"`
}

type ProcessPaymentRequest struct {
	PayrollID       uint64 `json:"payrollId"`
	Employee        string `json:"employee"`
	EncryptedAmount []byte `json:"encryptedAmount"`
	InputProof      []byte `json:"inputProof"`
}

type ProcessPaymentResponse struct {
	PaymentID uint64 `json:"paymentId"`
}

type ListPaymentsResponse struct {
	Payments []Payment `json:"payments"`
}

type StoreDataRequest struct {
	PayrollID     uint64 `json:"payrollId"`
	DataType      string `json:"dataType"`
	EncryptedData []byte `json:"encryptedData"`
	InputProof    []byte `json:"inputProof"`
}

type StoreDataResponse struct {
	Stored bool `json:"stored"`
}

type GetDataRequest struct {
	PayrollID uint64 `json:"payrollId"`
	DataType  string `json:"dataType"`
}

type GetDataResponse struct {
	EncryptedData []byte `json:"encryptedData"`
}

type ListDataTypesResponse struct {
	DataTypes []string `json:"dataTypes"`
}

type ExportAuditRequest struct {
	PayrollID uint64 `json:"payrollId"`
	Term      string `json:"term,omitempty"`
}

type VerifyAuditRequest struct {
	Records []AuditRecord `json:"records"`
}

type AuditRecords struct {
	Records []AuditRecord `json:"records"`
}

// ExportAuditReportRequest asks for a report. With Publish set the server
// writes it to its report sink and returns only the location.
type ExportAuditReportRequest struct {
	PayrollID uint64 `json:"payrollId"`
	Publish   bool   `json:"publish,omitempty"`
}

type ExportAuditReportResponse struct {
	Location string        `json:"location,omitempty"`
	Report   *audit.Report `json:"report,omitempty"`
}

// SubscribeRequest selects events; zero PayrollID and empty Kinds match everything.
type SubscribeRequest struct {
	PayrollID uint64   `json:"payrollId,omitempty"`
	Kinds     []string `json:"kinds,omitempty"`
}

type AmountSummary struct {
	Size   int    `json:"size"`
	Digest string `json:"digest"`
}

type Event struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	PayrollID uint64         `json:"payrollId"`
	PaymentID uint64         `json:"paymentId,omitempty"`
	Employer  string         `json:"employer,omitempty"`
	Employee  string         `json:"employee,omitempty"`
	Name      string         `json:"name,omitempty"`
	DataType  string         `json:"dataType,omitempty"`
	Summary   *AmountSummary `json:"summary,omitempty"`
	At        time.Time      `json:"at"`
}
