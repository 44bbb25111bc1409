package proofs

import (
	"encoding/binary"
	"io"
	"math/big"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/pkg/errors"
)

// Params controls the soundness of a DLogProof: each repetition carries a
// challenge of ChallengeBits bits, so soundness is Repetitions*ChallengeBits.
type Params struct {
	Repetitions   int `json:"repetitions" mapstructure:"repetitions"`
	ChallengeBits int `json:"challenge_bits" mapstructure:"challenge_bits"`
}

var DefaultParams = Params{Repetitions: 1, ChallengeBits: 256}

func (p Params) Validate() error {
	switch {
	case p.Repetitions < 1 || p.Repetitions > 64:
		return errors.Wrapf(ErrInvalidParams, "repetitions %d", p.Repetitions)
	case p.ChallengeBits < 8 || p.ChallengeBits > 256:
		return errors.Wrapf(ErrInvalidParams, "challenge bits %d", p.ChallengeBits)
	case p.Repetitions*p.ChallengeBits < 128:
		return errors.Wrapf(ErrInvalidParams, "soundness %d bits", p.Repetitions*p.ChallengeBits)
	}
	return nil
}

// DLogProof is a Fiat-Shamir Schnorr proof of knowledge of x with Point = x*G.
type DLogProof struct {
	Point           eckey.Point    `json:"point"`
	RandCommitments []eckey.Point  `json:"rand_commitments"`
	Responses       []eckey.Scalar `json:"responses"`
}

func Prove(rand io.Reader, secret eckey.Scalar, sid []byte, params Params) (*DLogProof, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	proof := &DLogProof{
		Point:           eckey.ScalarBaseMult(secret),
		RandCommitments: make([]eckey.Point, params.Repetitions),
		Responses:       make([]eckey.Scalar, params.Repetitions),
	}

	nonces := make([]eckey.Scalar, params.Repetitions)
	for k := range nonces {
		r, err := eckey.RandomScalar(rand)
		if err != nil {
			return nil, err
		}
		nonces[k] = r
		proof.RandCommitments[k] = eckey.ScalarBaseMult(r)
	}

	for k, e := range proof.challenges(sid, params) {
		proof.Responses[k] = nonces[k].Add(e.Mul(secret))
		nonces[k].Zeroize()
	}
	return proof, nil
}

func (proof *DLogProof) Verify(sid []byte, params Params) error {
	if proof == nil || params.Validate() != nil {
		return ErrInvalidDLogProof
	}
	if len(proof.RandCommitments) != params.Repetitions || len(proof.Responses) != params.Repetitions {
		return ErrInvalidDLogProof
	}
	if proof.Point.IsIdentity() {
		return ErrInvalidDLogProof
	}

	for k, e := range proof.challenges(sid, params) {
		lhs := eckey.ScalarBaseMult(proof.Responses[k])
		rhs := proof.RandCommitments[k].Add(proof.Point.Mul(e))
		if !lhs.Equal(rhs) {
			return ErrInvalidDLogProof
		}
	}
	return nil
}

func (proof *DLogProof) challenges(sid []byte, params Params) []eckey.Scalar {
	parts := make([][]byte, 0, len(proof.RandCommitments)+4)
	parts = append(parts, []byte("dlog-challenge"), sid)
	pb := proof.Point.Bytes()
	parts = append(parts, pb[:])
	for _, c := range proof.RandCommitments {
		cb := c.Bytes()
		parts = append(parts, cb[:])
	}

	out := make([]eckey.Scalar, params.Repetitions)
	var ctr [4]byte
	for k := range out {
		binary.BigEndian.PutUint32(ctr[:], uint32(k))
		d := Hash(append(parts, ctr[:])...)

		e := new(big.Int).SetBytes(d[:])
		e.Rsh(e, uint(256-params.ChallengeBits))
		out[k] = eckey.ScalarFromBig(e)
	}
	return out
}

// ProveCommit produces a proof together with a commitment to it, so that the
// proof can be opened in a later round.
func ProveCommit(rand io.Reader, secret eckey.Scalar, sid []byte, params Params) (*DLogProof, Commitment, error) {
	proof, err := Prove(rand, secret, sid, params)
	if err != nil {
		return nil, Commitment{}, err
	}
	return proof, proof.commitment(sid), nil
}

// DecommitVerify checks the proof against its earlier commitment, then the proof itself.
func DecommitVerify(proof *DLogProof, commitment Commitment, sid []byte, params Params) error {
	if proof == nil {
		return ErrInvalidDLogProof
	}

	expected := proof.commitment(sid)
	if expected != commitment {
		return ErrInvalidCommitment
	}
	return proof.Verify(sid, params)
}

func (proof *DLogProof) commitment(sid []byte) Commitment {
	parts := [][]byte{[]byte("dlog-commitment"), sid}
	pb := proof.Point.Bytes()
	parts = append(parts, pb[:])
	for _, c := range proof.RandCommitments {
		cb := c.Bytes()
		parts = append(parts, cb[:])
	}
	return Commitment(Hash(parts...))
}
