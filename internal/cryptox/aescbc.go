package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
)

// zeroIV is the fixed initialisation vector used for every CBC operation.
// A fixed IV keeps encryption deterministic, which the encrypted email
// column relies on for equality lookups.
var zeroIV = make([]byte, aes.BlockSize)

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, ErrDecryptionFailed
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, ErrDecryptionFailed
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrDecryptionFailed
		}
	}
	return b[:len(b)-n], nil
}

// encryptCBC encrypts plaintext with AES-CBC under key using PKCS#7 padding.
func encryptCBC(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeySize, err)
	}

	padded := pkcs7Pad(append([]byte(nil), plaintext...), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, zeroIV).CryptBlocks(out, padded)

	return out, nil
}

func decryptCBC(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeySize, err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrDecryptionFailed
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, zeroIV).CryptBlocks(out, ciphertext)

	return pkcs7Unpad(out, aes.BlockSize)
}

// EncryptString encrypts a UTF-8 string under key and returns base64 text.
func EncryptString(key []byte, plaintext string) (string, error) {
	ct, err := encryptCBC(key, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

// DecryptString reverses EncryptString. Malformed base64, a bad block length
// or invalid padding all yield ErrDecryptionFailed.
func DecryptString(key []byte, ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	pt, err := decryptCBC(key, raw)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
