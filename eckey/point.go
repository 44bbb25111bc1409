package eckey

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"
)

// PointSize is the width of a SEC1 compressed point. The identity is encoded
// as PointSize zero bytes.
const PointSize = 33

var (
	ErrPointLength   = errors.New("eckey: invalid point length")
	ErrPointEncoding = errors.New("eckey: invalid point encoding")
)

// Point is a secp256k1 group element. The zero value is the identity.
type Point struct {
	p secp256k1.JacobianPoint
}

// Generator returns G.
func Generator() Point {
	return ScalarBaseMult(NewScalar(1))
}

// ScalarBaseMult returns k*G.
func ScalarBaseMult(k Scalar) Point {
	var r Point
	secp256k1.ScalarBaseMultNonConst(&k.n, &r.p)
	return r
}

func (p Point) Mul(k Scalar) Point {
	var r Point
	if p.IsIdentity() {
		return r
	}
	secp256k1.ScalarMultNonConst(&k.n, &p.p, &r.p)
	return r
}

func (p Point) Add(q Point) Point {
	var r Point
	secp256k1.AddNonConst(&p.p, &q.p, &r.p)
	return r
}

func (p Point) Negate() Point {
	if p.IsIdentity() {
		return Point{}
	}
	r := p.affine()
	r.p.Y.Negate(1).Normalize()
	return r
}

func (p Point) Sub(q Point) Point {
	return p.Add(q.Negate())
}

func (p Point) IsIdentity() bool {
	x, y, z := p.p.X, p.p.Y, p.p.Z
	x.Normalize()
	y.Normalize()
	z.Normalize()
	return (x.IsZero() && y.IsZero()) || z.IsZero()
}

func (p Point) Equal(q Point) bool {
	return p.Bytes() == q.Bytes()
}

// XScalar returns the affine x coordinate reduced mod n, and whether the
// reduction was needed.
func (p Point) XScalar() (Scalar, bool) {
	a := p.affine()

	var xb [32]byte
	a.p.X.PutBytes(&xb)

	var s Scalar
	overflow := s.n.SetBytes(&xb)
	return s, overflow != 0
}

// YIsOdd reports the parity of the affine y coordinate.
func (p Point) YIsOdd() bool {
	a := p.affine()
	return a.p.Y.IsOdd()
}

func (p Point) Bytes() [PointSize]byte {
	var out [PointSize]byte
	if p.IsIdentity() {
		return out
	}

	a := p.affine()
	pub := secp256k1.NewPublicKey(&a.p.X, &a.p.Y)
	copy(out[:], pub.SerializeCompressed())
	return out
}

func PointFromBytes(b []byte) (Point, error) {
	if len(b) != PointSize {
		return Point{}, ErrPointLength
	}

	if isZeroBytes(b) {
		return Point{}, nil
	}

	if b[0] != secp256k1.PubKeyFormatCompressedEven && b[0] != secp256k1.PubKeyFormatCompressedOdd {
		return Point{}, ErrPointEncoding
	}

	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return Point{}, errors.Wrap(ErrPointEncoding, err.Error())
	}

	var r Point
	pub.AsJacobian(&r.p)
	return r, nil
}

func (p Point) String() string {
	b := p.Bytes()
	return hex.EncodeToString(b[:])
}

func (p Point) MarshalText() ([]byte, error) {
	b := p.Bytes()
	dst := make([]byte, hex.EncodedLen(PointSize))
	hex.Encode(dst, b[:])
	return dst, nil
}

func (p *Point) UnmarshalText(input []byte) error {
	if len(input) != hex.EncodedLen(PointSize) {
		return ErrPointLength
	}

	var buf [PointSize]byte
	if _, err := hex.Decode(buf[:], input); err != nil {
		return errors.Wrap(err, "eckey: decode point")
	}

	v, err := PointFromBytes(buf[:])
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// HashToPoint maps the domain and parts to a curve point of unknown discrete
// log by try-and-increment on the x coordinate.
func HashToPoint(domain string, parts ...[]byte) Point {
	var ctr [4]byte
	for i := uint32(0); ; i++ {
		binary.BigEndian.PutUint32(ctr[:], i)

		h := sha256.New()
		writePart(h, []byte(domain))
		for _, part := range parts {
			writePart(h, part)
		}
		h.Write(ctr[:])

		var x secp256k1.FieldVal
		if overflow := x.SetByteSlice(h.Sum(nil)); overflow {
			continue
		}

		var y secp256k1.FieldVal
		if !secp256k1.DecompressY(&x, false, &y) {
			continue
		}
		y.Normalize()

		var r Point
		r.p.X.Set(&x)
		r.p.Y.Set(&y)
		r.p.Z.SetInt(1)
		return r
	}
}

func (p Point) affine() Point {
	if p.IsIdentity() {
		return Point{}
	}
	r := p
	r.p.ToAffine()
	r.p.X.Normalize()
	r.p.Y.Normalize()
	return r
}

type writer interface {
	Write(p []byte) (int, error)
}

func writePart(w writer, b []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(b)))
	w.Write(l[:])
	w.Write(b)
}

func isZeroBytes(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}
