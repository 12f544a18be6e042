package models

// KeyPair is an account's RSA key pair. The private key is only ever stored
// wrapped under the master key.
type KeyPair struct {
	AccountID         string
	PublicKey         string
	WrappedPrivateKey string
}
