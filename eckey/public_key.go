package eckey

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

var (
	// ErrPublicKeyNotOnCurve indicates that the public key's (X, Y) coordinates do
	// not lie on the secp256k1 curve.
	ErrPublicKeyNotOnCurve = errors.New("eckey: public key is not on secp256k1 curve")
)

// PointFromCoords builds a point from affine (X, Y) coordinates.
func PointFromCoords(x, y *big.Int) (Point, error) {
	if x == nil || y == nil || x.Sign() < 0 || y.Sign() < 0 || x.BitLen() > 256 || y.BitLen() > 256 {
		return Point{}, ErrPublicKeyNotOnCurve
	}

	var xb, yb [32]byte
	x.FillBytes(xb[:])
	y.FillBytes(yb[:])

	var fx, fy secp256k1.FieldVal
	if fx.SetBytes(&xb) != 0 || fy.SetBytes(&yb) != 0 {
		return Point{}, ErrPublicKeyNotOnCurve
	}

	pub := secp256k1.NewPublicKey(&fx, &fy)
	if !pub.IsOnCurve() {
		return Point{}, ErrPublicKeyNotOnCurve
	}

	var r Point
	pub.AsJacobian(&r.p)
	return r, nil
}

func PointFromECDSA(pk *ecdsa.PublicKey) (Point, error) {
	if pk == nil {
		return Point{}, ErrPublicKeyNotOnCurve
	}
	return PointFromCoords(pk.X, pk.Y)
}

// Coords returns the affine coordinates. The identity has no affine form and
// yields (0, 0).
func (p Point) Coords() (*big.Int, *big.Int) {
	a := p.affine()

	var xb, yb [32]byte
	a.p.X.PutBytes(&xb)
	a.p.Y.PutBytes(&yb)
	return new(big.Int).SetBytes(xb[:]), new(big.Int).SetBytes(yb[:])
}

// ToECDSA converts the point into a go-ethereum compatible public key.
func (p Point) ToECDSA() (*ecdsa.PublicKey, error) {
	if p.IsIdentity() {
		return nil, ErrPublicKeyNotOnCurve
	}

	x, y := p.Coords()
	return &ecdsa.PublicKey{
		Curve: crypto.S256(),
		X:     x,
		Y:     y,
	}, nil
}

// ToBTCEC converts the point into a btcec public key.
func (p Point) ToBTCEC() (*btcec.PublicKey, error) {
	if p.IsIdentity() {
		return nil, ErrPublicKeyNotOnCurve
	}

	b := p.Bytes()
	pub, err := btcec.ParsePubKey(b[:], btcec.S256())
	if err != nil {
		return nil, errors.Wrap(err, "eckey: parse public key")
	}
	return pub, nil
}
