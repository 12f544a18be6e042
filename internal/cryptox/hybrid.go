package cryptox

import (
	"crypto/rsa"
	"encoding/base64"

	"github.com/dmitrijs2005/schedkeeper/internal/common"
)

// SessionKeySize is the length of the per-message AES-256 key.
const SessionKeySize = 32

// Envelope is a hybrid-encrypted message: the payload under a one-off
// session key and that key wrapped for the recipient.
type Envelope struct {
	Payload    string
	WrappedKey string
}

// SealHybrid encrypts plaintext with a fresh session key and wraps the
// base64 form of that key to the recipient public key.
func SealHybrid(plaintext string, recipient *rsa.PublicKey) (*Envelope, error) {
	sessionKey := common.GenerateRandByteArray(SessionKeySize)
	defer common.WipeByteArray(sessionKey)

	payload, err := EncryptString(sessionKey, plaintext)
	if err != nil {
		return nil, err
	}

	wrapped, err := EncryptRSA([]byte(base64.StdEncoding.EncodeToString(sessionKey)), recipient)
	if err != nil {
		return nil, err
	}

	return &Envelope{Payload: payload, WrappedKey: wrapped}, nil
}

// OpenHybrid unwraps the session key with priv and decrypts the payload.
func OpenHybrid(env Envelope, priv *rsa.PrivateKey) (string, error) {
	encoded, err := DecryptRSA(env.WrappedKey, priv)
	if err != nil {
		return "", err
	}

	sessionKey, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil || len(sessionKey) != SessionKeySize {
		return "", ErrDecryptionFailed
	}
	defer common.WipeByteArray(sessionKey)

	return DecryptString(sessionKey, env.Payload)
}

// OpenLegacy decrypts a pre-hybrid message whose payload was RSA-encrypted
// directly to the recipient.
func OpenLegacy(payload string, priv *rsa.PrivateKey) (string, error) {
	pt, err := DecryptRSA(payload, priv)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
