// Package rng provides the randomness sources threaded through every protocol
// phase, and the seed expander used by OT extension.
package rng

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/chacha20"
)

// Reader returns the operating system's secure random source.
func Reader() io.Reader {
	return rand.Reader
}

// Deterministic is a ChaCha20 keystream. Two readers built from the same seed
// return the same bytes. It must only be used in tests and reproducible runs.
type Deterministic struct {
	c *chacha20.Cipher
}

func NewDeterministic(seed []byte) *Deterministic {
	key := sha256.Sum256(seed)
	nonce := make([]byte, chacha20.NonceSize)

	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce)
	if err != nil {
		// key and nonce sizes are fixed above
		panic(err)
	}
	return &Deterministic{c: c}
}

func (d *Deterministic) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	d.c.XORKeyStream(p, p)
	return len(p), nil
}

// Expand fills out with a keystream bound to key and domain.
func Expand(key [32]byte, domain []byte, out []byte) {
	nonce := sha256.Sum256(domain)

	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:chacha20.NonceSizeX])
	if err != nil {
		panic(err)
	}

	for i := range out {
		out[i] = 0
	}
	c.XORKeyStream(out, out)
}
