package cryptox

// RevealFailedMarker replaces a field value that could not be decrypted.
const RevealFailedMarker = "[unreadable: wrong key or corrupted data]"

// FieldCipher protects a single column class (email) with the master key.
// Output is deterministic, so equal plaintexts produce equal ciphertexts and
// can be matched with a plain equality predicate.
type FieldCipher struct {
	store *MasterKeyStore
}

func NewFieldCipher(store *MasterKeyStore) *FieldCipher {
	return &FieldCipher{store: store}
}

// Protect encrypts plain for storage. An empty value yields nil so callers
// can store NULL.
func (f *FieldCipher) Protect(plain string) ([]byte, error) {
	if plain == "" {
		return nil, nil
	}
	ct, err := f.store.Wrap(plain)
	if err != nil {
		return nil, err
	}
	return []byte(ct), nil
}

// Open decrypts a stored value, returning ErrDecryptionFailed on failure.
func (f *FieldCipher) Open(ciphertext []byte) (string, error) {
	return f.store.Unwrap(string(ciphertext))
}

// Reveal is Open for display paths: failures become RevealFailedMarker.
func (f *FieldCipher) Reveal(ciphertext []byte) string {
	plain, err := f.Open(ciphertext)
	if err != nil {
		return RevealFailedMarker
	}
	return plain
}
