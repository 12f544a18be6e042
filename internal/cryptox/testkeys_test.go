package cryptox

import (
	"sync"
	"testing"
)

var (
	testPairsOnce sync.Once
	testPairs     [2]*KeyPair
	testPairsErr  error
)

// testKeyPairs returns two RSA key pairs shared by the package tests.
func testKeyPairs(t *testing.T) (*KeyPair, *KeyPair) {
	t.Helper()
	testPairsOnce.Do(func() {
		for i := range testPairs {
			testPairs[i], testPairsErr = GenerateKeyPair()
			if testPairsErr != nil {
				return
			}
		}
	})
	if testPairsErr != nil {
		t.Fatalf("generate key pair: %v", testPairsErr)
	}
	return testPairs[0], testPairs[1]
}

var testSecret = []byte("E546C8DF278CD5931069B522E695D4F2")
