package proof

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const digestDomain = "payroll-vault/input-proof/v1"

// Digest is the message an attester signs for a ciphertext in a context.
func Digest(ciphertext, context []byte) []byte {
	h := sha3.New256()
	h.Write([]byte(digestDomain))
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(context)))
	h.Write(n[:])
	h.Write(context)
	h.Write(ciphertext)
	return h.Sum(nil)
}

// Attestation accepts proofs that are Ed25519 signatures over Digest made by
// any of the trusted attester keys.
type Attestation struct {
	keys []ed25519.PublicKey
}

var _ Verifier = (*Attestation)(nil)

// NewAttestation constructs a verifier trusting the given attester keys.
func NewAttestation(keys ...ed25519.PublicKey) *Attestation {
	return &Attestation{keys: append([]ed25519.PublicKey(nil), keys...)}
}

// Verify reports whether proof is a valid attestation of ciphertext in context.
func (a *Attestation) Verify(ciphertext, proof, context []byte) bool {
	if len(proof) != ed25519.SignatureSize || len(ciphertext) == 0 {
		return false
	}
	msg := Digest(ciphertext, context)
	for _, k := range a.keys {
		if ed25519.Verify(k, msg, proof) {
			return true
		}
	}
	return false
}

// ParsePublicKeys decodes hex-encoded Ed25519 attester keys.
func ParsePublicKeys(hexKeys []string) ([]ed25519.PublicKey, error) {
	out := make([]ed25519.PublicKey, 0, len(hexKeys))
	for i, s := range hexKeys {
		b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
		if err != nil {
			return nil, fmt.Errorf("attester[%d]: %w", i, err)
		}
		if len(b) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("attester[%d]: want %d bytes, got %d", i, ed25519.PublicKeySize, len(b))
		}
		out = append(out, ed25519.PublicKey(b))
	}
	return out, nil
}

// Signer produces attestations; used by clients and dev tooling.
type Signer struct {
	key ed25519.PrivateKey
}

// NewSigner wraps an Ed25519 private key.
func NewSigner(key ed25519.PrivateKey) *Signer { return &Signer{key: key} }

// ParseSigner decodes a hex-encoded Ed25519 seed or full private key.
func ParseSigner(hexKey string) (*Signer, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, err
	}
	switch len(b) {
	case ed25519.SeedSize:
		return NewSigner(ed25519.NewKeyFromSeed(b)), nil
	case ed25519.PrivateKeySize:
		return NewSigner(ed25519.PrivateKey(b)), nil
	default:
		return nil, fmt.Errorf("attester key: unexpected length %d", len(b))
	}
}

// Prove signs ciphertext for context.
func (s *Signer) Prove(ciphertext, context []byte) []byte {
	return ed25519.Sign(s.key, Digest(ciphertext, context))
}

// PublicKey returns the attester's public key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// GenerateKey returns a fresh attester key pair as hex (public key, seed).
func GenerateKey() (pub, seed string, err error) {
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", err
	}
	return hex.EncodeToString(pk), hex.EncodeToString(sk.Seed()), nil
}
