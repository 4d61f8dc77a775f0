package sealer

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2id parameters for passphrase-derived wrapping keys.
const (
	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1
	saltLen             = 16
)

var keyFileAD = []byte("payroll-vault/keyfile/v1")

// KeyFile is a master key wrapped under a passphrase.
type KeyFile struct {
	Version int    `json:"version"`
	Salt    []byte `json:"salt"`
	Wrapped []byte `json:"wrapped"`
}

// deriveKEK derives a wrapping key from a passphrase and salt using Argon2id.
func deriveKEK(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, KeyLen)
}

// WrapKey encrypts master under passphrase and returns the JSON key file.
func WrapKey(master, passphrase []byte) ([]byte, error) {
	if len(master) != KeyLen {
		return nil, fmt.Errorf("key: want %d bytes, got %d", KeyLen, len(master))
	}
	if len(passphrase) == 0 {
		return nil, errors.New("empty passphrase")
	}
	salt, err := Rand(saltLen)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(deriveKEK(passphrase, salt))
	if err != nil {
		return nil, err
	}
	nonce, err := Rand(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	wrapped := aead.Seal(append([]byte{}, nonce...), nonce, master, keyFileAD)
	return json.MarshalIndent(KeyFile{Version: 1, Salt: salt, Wrapped: wrapped}, "", "  ")
}

// UnwrapKey opens a key file produced by WrapKey.
func UnwrapKey(file, passphrase []byte) ([]byte, error) {
	var kf KeyFile
	if err := json.Unmarshal(file, &kf); err != nil {
		return nil, fmt.Errorf("key file: %w", err)
	}
	if kf.Version != 1 {
		return nil, fmt.Errorf("key file: unsupported version %d", kf.Version)
	}
	if len(kf.Wrapped) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("key file: wrapped key too short")
	}
	aead, err := chacha20poly1305.NewX(deriveKEK(passphrase, kf.Salt))
	if err != nil {
		return nil, err
	}
	nonce := kf.Wrapped[:chacha20poly1305.NonceSizeX]
	master, err := aead.Open(nil, nonce, kf.Wrapped[chacha20poly1305.NonceSizeX:], keyFileAD)
	if err != nil {
		return nil, errors.New("key file: wrong passphrase or corrupted file")
	}
	return master, nil
}
