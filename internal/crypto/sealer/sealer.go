// Package sealer contains the amount-sealing primitives shared by clients and
// the audit disclosure channel: per-payroll keys and AEAD bound to the payee.
package sealer

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/and161185/payroll-vault/internal/model"
)

// KeyLen is the master and per-payroll key length.
const KeyLen = chacha20poly1305.KeySize

// Rand returns n cryptographically secure random bytes.
func Rand(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// NewMasterKey returns a fresh random master key.
func NewMasterKey() ([]byte, error) { return Rand(KeyLen) }

// ParseKey decodes a hex master key.
func ParseKey(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, err
	}
	if len(b) != KeyLen {
		return nil, fmt.Errorf("key: want %d bytes, got %d", KeyLen, len(b))
	}
	return b, nil
}

// DerivePayrollKey derives a per-payroll key via HKDF-SHA256 using the payroll id as info.
func DerivePayrollKey(master []byte, payrollID uint64) ([]byte, error) {
	var info [16]byte
	copy(info[:8], "payroll:")
	binary.BigEndian.PutUint64(info[8:], payrollID)
	r := hkdf.New(sha256.New, master, nil, info[:])
	key := make([]byte, KeyLen)
	_, err := r.Read(key)
	return key, err
}

const (
	tagAmount byte = 'a'
	tagRecord byte = 'r'
)

// aad is be64(payrollID) || tag || label.
func aad(payrollID uint64, tag byte, label string) []byte {
	out := make([]byte, 0, 9+len(label))
	out = binary.BigEndian.AppendUint64(out, payrollID)
	out = append(out, tag)
	return append(out, label...)
}

// seal encrypts with XChaCha20-Poly1305 under the payroll key and a random
// nonce; the output is nonce || ciphertext.
func seal(master []byte, payrollID uint64, ad, plaintext []byte) ([]byte, error) {
	key, err := DerivePayrollKey(master, payrollID)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce, err := Rand(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, ad), nil
}

func open(master []byte, payrollID uint64, ad, blob []byte) ([]byte, error) {
	if len(blob) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("blob too short")
	}
	key, err := DerivePayrollKey(master, payrollID)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := blob[:chacha20poly1305.NonceSizeX]
	return aead.Open(nil, nonce, blob[chacha20poly1305.NonceSizeX:], ad)
}

// SealAmount encrypts a plaintext amount for one payee of one payroll.
func SealAmount(master []byte, payrollID uint64, employee model.Identity, amount string) (model.EncryptedBlob, error) {
	return seal(master, payrollID, aad(payrollID, tagAmount, string(employee)), []byte(amount))
}

// OpenAmount decrypts a blob produced by SealAmount for the same payroll and payee.
func OpenAmount(master []byte, payrollID uint64, employee model.Identity, blob model.EncryptedBlob) (string, error) {
	pt, err := open(master, payrollID, aad(payrollID, tagAmount, string(employee)), blob)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// SealRecord encrypts payroll metadata stored under dataType.
func SealRecord(master []byte, payrollID uint64, dataType string, data []byte) (model.EncryptedBlob, error) {
	return seal(master, payrollID, aad(payrollID, tagRecord, dataType), data)
}

// OpenRecord decrypts a blob produced by SealRecord.
func OpenRecord(master []byte, payrollID uint64, dataType string, blob model.EncryptedBlob) ([]byte, error) {
	return open(master, payrollID, aad(payrollID, tagRecord, dataType), blob)
}

// Discloser opens payment amounts with a master key; it is the authorized
// disclosure channel used by audit exports.
type Discloser struct {
	master []byte
}

// NewDiscloser wraps a master key.
func NewDiscloser(master []byte) *Discloser { return &Discloser{master: master} }

// Disclose returns the plaintext amount of p.
func (d *Discloser) Disclose(p model.Payment) (string, error) {
	return OpenAmount(d.master, p.PayrollID, p.Employee, p.EncryptedAmount)
}
