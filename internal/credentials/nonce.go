package credentials

import (
	"crypto/rand"
)

// fileNonceSize matches nacl/secretbox's 24-byte nonce requirement.
const fileNonceSize = 24

// nonce is a fixed-size random value used once per encryption operation.
type nonce [fileNonceSize]byte

// GenerateRandomNonce returns a cryptographically random nonce.
func GenerateRandomNonce() (nonce, error) {
	var n nonce
	if _, err := rand.Read(n[:]); err != nil {
		return nonce{}, err
	}
	return n, nil
}

// ToBytes returns a copy of the nonce's bytes.
func (n nonce) ToBytes() []byte {
	out := make([]byte, fileNonceSize)
	copy(out, n[:])
	return out
}
