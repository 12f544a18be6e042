package cryptox

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMasterKeyStore_KeyLength(t *testing.T) {
	_, err := NewMasterKeyStore([]byte("too-short"))
	require.ErrorIs(t, err, ErrInvalidKeySize)

	long := append(append([]byte(nil), testSecret...), []byte("-ignored-tail")...)
	s1, err := NewMasterKeyStore(long)
	require.NoError(t, err)
	s2, err := NewMasterKeyStore(testSecret)
	require.NoError(t, err)

	ct1, err := s1.Wrap("payload")
	require.NoError(t, err)
	ct2, err := s2.Wrap("payload")
	require.NoError(t, err)
	assert.Equal(t, ct1, ct2, "only the first 32 bytes of the secret must be used")
}

func TestNewMasterKeyStore_CopiesSecret(t *testing.T) {
	secret := append([]byte(nil), testSecret...)
	s, err := NewMasterKeyStore(secret)
	require.NoError(t, err)

	ct, err := s.Wrap("value")
	require.NoError(t, err)

	secret[0] ^= 0xff

	pt, err := s.Unwrap(ct)
	require.NoError(t, err)
	assert.Equal(t, "value", pt)
}

func TestMasterKeyStore_RoundTrip(t *testing.T) {
	s, err := NewMasterKeyStore(testSecret)
	require.NoError(t, err)

	for _, in := range []string{"a", "alice@example.com", strings.Repeat("x", 16), "ünïcødé ✓", strings.Repeat("long ", 300)} {
		ct, err := s.Wrap(in)
		require.NoError(t, err)
		assert.NotEqual(t, in, ct)

		raw, err := base64.StdEncoding.DecodeString(ct)
		require.NoError(t, err)
		assert.Zero(t, len(raw)%16)

		pt, err := s.Unwrap(ct)
		require.NoError(t, err)
		assert.Equal(t, in, pt)
	}
}

func TestMasterKeyStore_EmptyIsIdentity(t *testing.T) {
	s, err := NewMasterKeyStore(testSecret)
	require.NoError(t, err)

	ct, err := s.Wrap("")
	require.NoError(t, err)
	assert.Empty(t, ct)

	pt, err := s.Unwrap("")
	require.NoError(t, err)
	assert.Empty(t, pt)
}

func TestMasterKeyStore_Deterministic(t *testing.T) {
	s, err := NewMasterKeyStore(testSecret)
	require.NoError(t, err)

	a, _ := s.Wrap("bob@example.com")
	b, _ := s.Wrap("bob@example.com")
	c, _ := s.Wrap("carol@example.com")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestMasterKeyStore_UnwrapMalformed(t *testing.T) {
	s, err := NewMasterKeyStore(testSecret)
	require.NoError(t, err)

	cases := map[string]string{
		"not base64":    "%%%not-base64%%%",
		"short block":   base64.StdEncoding.EncodeToString([]byte("0123456789")),
		"partial block": base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 17)),
	}
	for name, ct := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Unwrap(ct)
			assert.ErrorIs(t, err, ErrDecryptionFailed)
		})
	}
}

func TestPKCS7Unpad(t *testing.T) {
	good := append([]byte("0123456789ab"), 4, 4, 4, 4)
	out, err := pkcs7Unpad(good, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789ab"), out)

	bad := append([]byte("0123456789ab"), 1, 2, 3, 4)
	_, err = pkcs7Unpad(bad, 16)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	tooBig := append([]byte("0123456789abcde"), 17)
	_, err = pkcs7Unpad(tooBig, 16)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncryptString_RejectsBadKey(t *testing.T) {
	_, err := EncryptString([]byte("short"), "x")
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestDeriveMasterKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveMasterKey(password, salt)
	key2 := DeriveMasterKey(password, salt)

	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}
	if len(key1) != MasterKeySize {
		t.Errorf("expected %d bytes, got %d", MasterKeySize, len(key1))
	}
	if _, err := NewMasterKeyStore(key1); err != nil {
		t.Errorf("derived key must be accepted by the store: %v", err)
	}
}

func TestDeriveMasterKey_DifferentInputs(t *testing.T) {
	password := []byte("secret-password")

	key1 := DeriveMasterKey(password, []byte("salt-1"))
	key2 := DeriveMasterKey(password, []byte("salt-2"))

	if bytes.Equal(key1, key2) {
		t.Errorf("expected different results for different salts, got same")
	}
}
