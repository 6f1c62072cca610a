package common

import "crypto/rand"

// GenerateRandByteArray returns size bytes from the system CSPRNG.
// It panics if the random source fails, which only happens on a broken host.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Used to drop secrets read from a terminal once they have been copied.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
