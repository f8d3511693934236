package clienttest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"sync"
)

var (
	sharedKey     *ecdsa.PrivateKey
	sharedKeyOnce sync.Once
)

// SharedTestKey returns a cached ECDSA P-256 key for testing.
// Using a shared key avoids the overhead of key generation per test.
func SharedTestKey() *ecdsa.PrivateKey {
	sharedKeyOnce.Do(func() {
		key, err := GenerateTestKey()
		if err != nil {
			panic("clienttest: failed to generate key: " + err.Error())
		}
		sharedKey = key
	})
	return sharedKey
}

// GenerateTestKey creates a fresh ECDSA P-256 key for tests that need a
// key nobody else signs with.
func GenerateTestKey() (
	*ecdsa.PrivateKey,
	error,
) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}
