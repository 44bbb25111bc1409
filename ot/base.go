// Package ot implements the oblivious transfer layer of the multiplication
// protocol: a batch of Kappa base OTs run once per ordered pair of parties
// during key generation, and a KOS-style extension that stretches the base
// seeds into any number of correlated OTs per signing session.
package ot

import (
	"encoding/binary"
	"io"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/proofs"
	"github.com/pkg/errors"
)

const (
	// Kappa is the computational security parameter and the number of base OTs.
	Kappa = 256
	// StatSecurity is the statistical security parameter.
	StatSecurity = 80

	SeedSize = 32
)

var (
	ErrInvalidBaseProof  = errors.New("ot: invalid proof of the base OT sender point")
	ErrInvalidBaseMsg    = errors.New("ot: malformed base OT message")
	ErrInvalidExtension  = errors.New("ot: invalid OT extension proof")
	ErrMalformedExtMsg   = errors.New("ot: malformed OT extension message")
	ErrInvalidBatchWidth = errors.New("ot: batch width must be a positive multiple of 8")
)

// Seed keys one base OT.
type Seed [SeedSize]byte

func (s Seed) MarshalText() ([]byte, error) {
	return proofs.MarshalHex(s[:]), nil
}

func (s *Seed) UnmarshalText(input []byte) error {
	return proofs.UnmarshalHex(s[:], input)
}

// BaseSender holds the secret a of the base OT sender, whose public point is A = a*G.
type BaseSender struct {
	Secret eckey.Scalar `json:"secret"`
}

// NewBaseSender samples a and proves knowledge of it under sid.
func NewBaseSender(rand io.Reader, sid []byte) (*BaseSender, *proofs.DLogProof, error) {
	a, err := eckey.RandomScalar(rand)
	if err != nil {
		return nil, nil, err
	}

	proof, err := proofs.Prove(rand, a, baseProofSID(sid), proofs.DefaultParams)
	if err != nil {
		return nil, nil, err
	}
	return &BaseSender{Secret: a}, proof, nil
}

// Seeds derives both seeds of every base OT from the receiver's points.
func (s *BaseSender) Seeds(sid []byte, points []eckey.Point) (seeds0, seeds1 [Kappa]Seed, err error) {
	if len(points) != Kappa {
		return seeds0, seeds1, errors.Wrapf(ErrInvalidBaseMsg, "got %d points", len(points))
	}

	for k, b := range points {
		if b.IsIdentity() {
			return seeds0, seeds1, errors.Wrapf(ErrInvalidBaseMsg, "identity point at %d", k)
		}
		c := offsetPoint(sid, k)
		seeds0[k] = baseSeed(sid, k, b.Mul(s.Secret))
		seeds1[k] = baseSeed(sid, k, b.Sub(c).Mul(s.Secret))
	}
	return seeds0, seeds1, nil
}

// BaseReceiver holds the per-OT secrets r_k of the base OT receiver.
type BaseReceiver struct {
	Choices Block          `json:"choices"`
	Secrets []eckey.Scalar `json:"secrets"`
}

// NewBaseReceiver samples r_k and publishes B_k = r_k*G + c_k*C_k.
func NewBaseReceiver(rand io.Reader, sid []byte, choices Block) (*BaseReceiver, []eckey.Point, error) {
	r := &BaseReceiver{
		Choices: choices,
		Secrets: make([]eckey.Scalar, Kappa),
	}
	points := make([]eckey.Point, Kappa)

	for k := 0; k < Kappa; k++ {
		sk, err := eckey.RandomScalar(rand)
		if err != nil {
			return nil, nil, err
		}
		r.Secrets[k] = sk

		b := eckey.ScalarBaseMult(sk)
		if choices.Bit(k) {
			b = b.Add(offsetPoint(sid, k))
		}
		points[k] = b
	}
	return r, points, nil
}

// Seeds verifies the sender's proof and derives the chosen seed of every base OT.
func (r *BaseReceiver) Seeds(sid []byte, proof *proofs.DLogProof) ([Kappa]Seed, error) {
	var seeds [Kappa]Seed
	if len(r.Secrets) != Kappa {
		return seeds, errors.Wrapf(ErrInvalidBaseMsg, "got %d secrets", len(r.Secrets))
	}
	if err := proof.Verify(baseProofSID(sid), proofs.DefaultParams); err != nil {
		return seeds, ErrInvalidBaseProof
	}

	for k, sk := range r.Secrets {
		seeds[k] = baseSeed(sid, k, proof.Point.Mul(sk))
	}
	return seeds, nil
}

// Zeroize wipes the per-OT secrets.
func (r *BaseReceiver) Zeroize() {
	for k := range r.Secrets {
		r.Secrets[k].Zeroize()
	}
}

func baseProofSID(sid []byte) []byte {
	d := proofs.Hash([]byte("base-ot-sender"), sid)
	return d[:]
}

func offsetPoint(sid []byte, k int) eckey.Point {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(k))
	return eckey.HashToPoint("base-ot-offset", sid, idx[:])
}

func baseSeed(sid []byte, k int, p eckey.Point) Seed {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(k))
	pb := p.Bytes()
	return Seed(proofs.Hash([]byte("base-ot-seed"), sid, idx[:], pb[:]))
}
