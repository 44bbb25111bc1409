// Package proofs
package proofs

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/pkg/errors"
)

const (
	HashSize = 32
	SaltSize = 32
)

var (
	ErrInvalidCommitment = errors.New("proofs: invalid commitment")
	ErrInvalidDLogProof  = errors.New("proofs: invalid dlog proof")
	ErrInvalidParams     = errors.New("proofs: invalid proof parameters")
	ErrInvalidLength     = errors.New("proofs: invalid encoded length")
)

// Commitment is a hiding and binding commitment H(data || salt).
type Commitment [HashSize]byte

// Salt is the commitment randomness, revealed together with the data.
type Salt [SaltSize]byte

// Hash is SHA-256 over length-prefixed parts, so distinct part lists never collide.
func Hash(parts ...[]byte) [HashSize]byte {
	h := sha256.New()
	var l [4]byte
	for _, part := range parts {
		binary.BigEndian.PutUint32(l[:], uint32(len(part)))
		h.Write(l[:])
		h.Write(part)
	}

	var out [HashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

func HashToScalar(parts ...[]byte) eckey.Scalar {
	d := Hash(parts...)
	return eckey.ScalarFromDigest(d[:])
}

// Commit samples a fresh salt and commits to the parts.
func Commit(rand io.Reader, parts ...[]byte) (Commitment, Salt, error) {
	var salt Salt
	if _, err := io.ReadFull(rand, salt[:]); err != nil {
		return Commitment{}, salt, errors.Wrap(err, "proofs: read salt")
	}

	return commitWithSalt(&salt, parts...), salt, nil
}

func (c Commitment) Verify(salt Salt, parts ...[]byte) error {
	expected := commitWithSalt(&salt, parts...)
	if subtle.ConstantTimeCompare(c[:], expected[:]) == 1 {
		return nil
	}
	return ErrInvalidCommitment
}

func commitWithSalt(salt *Salt, parts ...[]byte) Commitment {
	all := make([][]byte, 0, len(parts)+2)
	all = append(all, []byte("commitment"))
	all = append(all, parts...)
	all = append(all, salt[:])
	return Commitment(Hash(all...))
}

func (c Commitment) MarshalText() ([]byte, error) {
	return marshalHex(c[:]), nil
}

func (c *Commitment) UnmarshalText(input []byte) error {
	return unmarshalHex(c[:], input)
}

func (s Salt) MarshalText() ([]byte, error) {
	return marshalHex(s[:]), nil
}

func (s *Salt) UnmarshalText(input []byte) error {
	return unmarshalHex(s[:], input)
}

func marshalHex(b []byte) []byte {
	dst := make([]byte, hex.EncodedLen(len(b)))
	hex.Encode(dst, b)
	return dst
}

func unmarshalHex(dst []byte, input []byte) error {
	if len(input) != hex.EncodedLen(len(dst)) {
		return ErrInvalidLength
	}
	if _, err := hex.Decode(dst, input); err != nil {
		return errors.Wrap(err, "proofs: decode hex")
	}
	return nil
}

// MarshalHex and UnmarshalHex are shared by the fixed-width byte types of the
// protocol packages.
func MarshalHex(b []byte) []byte {
	return marshalHex(b)
}

func UnmarshalHex(dst []byte, input []byte) error {
	return unmarshalHex(dst, input)
}
