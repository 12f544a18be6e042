// Package cryptox implements the symmetric and asymmetric primitives used to
// protect data at rest and in transit between accounts.
package cryptox

import (
	"errors"

	"golang.org/x/crypto/argon2"
)

// MasterKeySize is the AES-256 key length taken from the configured secret.
const MasterKeySize = 32

var (
	ErrInvalidKeySize   = errors.New("invalid key size")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// MasterKeyStore wraps and unwraps values under the process-wide master key.
// It is immutable after construction and safe for concurrent use.
type MasterKeyStore struct {
	key []byte
}

// NewMasterKeyStore builds a store from secret, which must be at least
// MasterKeySize bytes long. Only the first MasterKeySize bytes are used.
func NewMasterKeyStore(secret []byte) (*MasterKeyStore, error) {
	if len(secret) < MasterKeySize {
		return nil, ErrInvalidKeySize
	}
	key := make([]byte, MasterKeySize)
	copy(key, secret[:MasterKeySize])
	return &MasterKeyStore{key: key}, nil
}

// Wrap encrypts plaintext under the master key. Empty input is returned as is.
func (s *MasterKeyStore) Wrap(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	return EncryptString(s.key, plaintext)
}

// Unwrap decrypts a value produced by Wrap.
func (s *MasterKeyStore) Unwrap(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	return DecryptString(s.key, ciphertext)
}

// DeriveMasterKey stretches a passphrase into a MasterKeySize key with argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, MasterKeySize)
}
