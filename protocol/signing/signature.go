package signing

import (
	"github.com/btcsuite/btcd/btcec"
	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

var (
	ErrInvalidSignature  = errors.New("signing: invalid signature")
	ErrInvalidRecoveryID = errors.New("signing: invalid recovery id")
)

// compact signature header: 27 + recovery id, plus 4 for a compressed key
const compactHeader = 27 + 4

// Signature is an ECDSA signature (r, s).
type Signature struct {
	R eckey.Scalar `json:"r"`
	S eckey.Scalar `json:"s"`
}

// Bytes returns r || s.
func (sig *Signature) Bytes() []byte {
	r, s := sig.R.Bytes(), sig.S.Bytes()
	out := make([]byte, 0, 2*eckey.ScalarSize)
	out = append(out, r[:]...)
	return append(out, s[:]...)
}

// Ethereum returns r || s || v with v the recovery id, the layout accepted by
// go-ethereum's crypto.SigToPub.
func (sig *Signature) Ethereum(recid byte) []byte {
	return append(sig.Bytes(), recid)
}

// Compact returns the 65-byte Bitcoin compact form for a compressed key.
func (sig *Signature) Compact(recid byte) []byte {
	return append([]byte{compactHeader + recid}, sig.Bytes()...)
}

// VerifyEcdsaSignature checks (r, s) against digest and the public key. Both
// the raw and the low-s form of a signature verify.
func VerifyEcdsaSignature(digest Digest, pk eckey.Point, r, s eckey.Scalar) bool {
	if r.IsZero() || s.IsZero() {
		return false
	}

	pub, err := pk.ToBTCEC()
	if err != nil {
		return false
	}

	sig := &btcec.Signature{R: r.BigInt(), S: s.BigInt()}
	return sig.Verify(digest[:], pub)
}

// RecoverPublicKey recovers the signer's public key.
func RecoverPublicKey(digest Digest, sig *Signature, recid byte) (eckey.Point, error) {
	if recid > 3 {
		return eckey.Point{}, ErrInvalidRecoveryID
	}

	pub, _, err := btcec.RecoverCompact(btcec.S256(), sig.Compact(recid), digest[:])
	if err != nil {
		return eckey.Point{}, errors.Wrap(ErrInvalidSignature, err.Error())
	}
	return eckey.PointFromCoords(pub.X, pub.Y)
}

// RecoverAddress recovers the Ethereum address of the signer.
func RecoverAddress(digest Digest, sig *Signature, recid byte) (common.Address, error) {
	if recid > 1 {
		return common.Address{}, ErrInvalidRecoveryID
	}

	pub, err := crypto.SigToPub(digest[:], sig.Ethereum(recid))
	if err != nil {
		return common.Address{}, errors.Wrap(ErrInvalidSignature, err.Error())
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// recoveryID finds the id under which sig recovers pk.
func recoveryID(digest Digest, pk eckey.Point, sig *Signature) (byte, bool) {
	for recid := byte(0); recid < 4; recid++ {
		recovered, err := RecoverPublicKey(digest, sig, recid)
		if err == nil && recovered.Equal(pk) {
			return recid, true
		}
	}
	return 0, false
}
