// Package eckey
package eckey

import (
	"encoding/hex"
	"io"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"
)

// ScalarSize is the canonical encoded width of a scalar.
const ScalarSize = 32

var (
	ErrScalarOverflow = errors.New("eckey: scalar is not less than the group order")
	ErrScalarLength   = errors.New("eckey: invalid scalar length")
)

// Order returns the secp256k1 group order n.
func Order() *big.Int {
	return new(big.Int).Set(secp256k1.Params().N)
}

// Scalar is an element of Z_n. The zero value is the scalar 0.
type Scalar struct {
	n secp256k1.ModNScalar
}

func NewScalar(v uint32) Scalar {
	var s Scalar
	s.n.SetInt(v)
	return s
}

// RandomScalar samples a uniformly random non-zero scalar by rejection.
func RandomScalar(rand io.Reader) (Scalar, error) {
	var buf [ScalarSize]byte
	defer zero(buf[:])

	for {
		if _, err := io.ReadFull(rand, buf[:]); err != nil {
			return Scalar{}, errors.Wrap(err, "eckey: read randomness")
		}

		var s Scalar
		if overflow := s.n.SetBytes(&buf); overflow == 0 && !s.n.IsZero() {
			return s, nil
		}
	}
}

// ScalarFromBytes decodes a 32-byte big-endian scalar, rejecting values >= n.
func ScalarFromBytes(b []byte) (Scalar, error) {
	if len(b) != ScalarSize {
		return Scalar{}, ErrScalarLength
	}

	var s Scalar
	if overflow := s.n.SetByteSlice(b); overflow {
		return Scalar{}, ErrScalarOverflow
	}
	return s, nil
}

// ScalarFromDigest interprets up to 32 bytes as a big-endian integer reduced mod n.
func ScalarFromDigest(digest []byte) Scalar {
	var s Scalar
	s.n.SetByteSlice(digest)
	return s
}

func ScalarFromBig(x *big.Int) Scalar {
	v := new(big.Int).Mod(x, secp256k1.Params().N)

	var buf [ScalarSize]byte
	v.FillBytes(buf[:])

	var s Scalar
	s.n.SetBytes(&buf)
	return s
}

func (s Scalar) Add(o Scalar) Scalar {
	r := s
	r.n.Add(&o.n)
	return r
}

func (s Scalar) Sub(o Scalar) Scalar {
	r := o
	r.n.Negate()
	r.n.Add(&s.n)
	return r
}

func (s Scalar) Mul(o Scalar) Scalar {
	r := s
	r.n.Mul(&o.n)
	return r
}

func (s Scalar) Negate() Scalar {
	r := s
	r.n.Negate()
	return r
}

// Inverse returns s^-1. The inverse of zero is zero, callers check IsZero first.
func (s Scalar) Inverse() Scalar {
	r := s
	r.n.InverseNonConst()
	return r
}

func (s Scalar) IsZero() bool {
	return s.n.IsZero()
}

func (s Scalar) Equal(o Scalar) bool {
	return s.n.Equals(&o.n)
}

// IsOverHalfOrder reports whether s > n/2.
func (s Scalar) IsOverHalfOrder() bool {
	return s.n.IsOverHalfOrder()
}

func (s Scalar) Bytes() [ScalarSize]byte {
	return s.n.Bytes()
}

func (s Scalar) BigInt() *big.Int {
	b := s.n.Bytes()
	return new(big.Int).SetBytes(b[:])
}

func (s Scalar) String() string {
	b := s.n.Bytes()
	return hex.EncodeToString(b[:])
}

// Zeroize clears the scalar in place.
func (s *Scalar) Zeroize() {
	s.n.Zero()
}

func (s Scalar) MarshalText() ([]byte, error) {
	b := s.n.Bytes()
	dst := make([]byte, hex.EncodedLen(ScalarSize))
	hex.Encode(dst, b[:])
	return dst, nil
}

func (s *Scalar) UnmarshalText(input []byte) error {
	if len(input) != hex.EncodedLen(ScalarSize) {
		return ErrScalarLength
	}

	var buf [ScalarSize]byte
	if _, err := hex.Decode(buf[:], input); err != nil {
		return errors.Wrap(err, "eckey: decode scalar")
	}

	v, err := ScalarFromBytes(buf[:])
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
