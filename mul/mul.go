// Package mul turns a multiplicative relation between two parties into
// additive shares. The receiver holds a random input chi, the sender holds a
// batch of inputs a_c, and afterwards the two output shares of each c sum to
// a_c * chi. It runs over correlated OTs from package ot and carries a linear
// consistency check that catches a malicious sender.
package mul

import (
	"encoding/binary"
	"io"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/ot"
	"github.com/chain5j/chain5j-dkls/proofs"
	"github.com/pkg/errors"
)

const (
	// BatchSize is the number of sender inputs multiplied with one receiver input.
	BatchSize = 2
	// EncodingBits is the number of OTs used to encode the receiver input.
	EncodingBits = eckey.ScalarSize*8 + ot.StatSecurity
)

var (
	ErrInconsistentMultiplication = errors.New("mul: inconsistent multiplication self-check")
	ErrMalformedReply             = errors.New("mul: malformed sender reply")
)

// ReceiverKeep is the receiver state between its two steps.
type ReceiverKeep struct {
	Choices []byte     `json:"choices"`
	Rows    []ot.Block `json:"rows"`
}

// Zeroize wipes the choice bits and OT rows.
func (k *ReceiverKeep) Zeroize() {
	for i := range k.Choices {
		k.Choices[i] = 0
	}
	for i := range k.Rows {
		k.Rows[i] = ot.Block{}
	}
}

// SenderReply carries the correlations and the check values of the sender.
type SenderReply struct {
	Tau    [][2 * BatchSize]eckey.Scalar `json:"tau"`
	CheckA [BatchSize]eckey.Scalar       `json:"check_a"`
	Eta    [][BatchSize]eckey.Scalar     `json:"eta"`
}

// ReceiverInit samples the receiver's random input chi, encoded by random choice
// bits, and returns the OT-extension message for the sender.
func ReceiverInit(rand io.Reader, setup *ot.ReceiverSetup, sid []byte) (eckey.Scalar, *ReceiverKeep, *ot.ExtensionMessage, error) {
	choices := make([]byte, EncodingBits/8)
	if _, err := io.ReadFull(rand, choices); err != nil {
		return eckey.Scalar{}, nil, nil, errors.Wrap(err, "mul: read choice bits")
	}

	rows, msg, err := setup.Extend(rand, sid, choices, EncodingBits)
	if err != nil {
		return eckey.Scalar{}, nil, nil, err
	}

	var chi eckey.Scalar
	for i, g := range gadget(sid) {
		if choiceBit(choices, i) {
			chi = chi.Add(g)
		}
	}

	return chi, &ReceiverKeep{Choices: choices, Rows: rows}, msg, nil
}

// Send runs the sender with its inputs. It returns the sender's output shares
// and the reply for the receiver.
func Send(rand io.Reader, setup *ot.SenderSetup, sid []byte, inputs [BatchSize]eckey.Scalar, msg *ot.ExtensionMessage) ([BatchSize]eckey.Scalar, *SenderReply, error) {
	var out [BatchSize]eckey.Scalar

	rows, err := setup.Extend(sid, EncodingBits, msg)
	if err != nil {
		return out, nil, err
	}

	var augmented [2 * BatchSize]eckey.Scalar
	copy(augmented[:], inputs[:])
	for c := BatchSize; c < 2*BatchSize; c++ {
		r, err := eckey.RandomScalar(rand)
		if err != nil {
			return out, nil, err
		}
		augmented[c] = r
	}

	g := gadget(sid)
	alpha := make([][2 * BatchSize]eckey.Scalar, EncodingBits)
	reply := &SenderReply{
		Tau: make([][2 * BatchSize]eckey.Scalar, EncodingBits),
		Eta: make([][BatchSize]eckey.Scalar, EncodingBits),
	}

	for i, q := range rows {
		flipped := q.Xor(setup.Correlation)
		for c := range augmented {
			alpha[i][c] = rowScalar(sid, i, c, q)
			reply.Tau[i][c] = alpha[i][c].Sub(rowScalar(sid, i, c, flipped)).Add(augmented[c])
		}
	}

	theta := checkCoefficients(sid, reply.Tau)
	for c := 0; c < BatchSize; c++ {
		reply.CheckA[c] = theta[c].Mul(augmented[c]).Add(augmented[c+BatchSize])
		for i := range rows {
			reply.Eta[i][c] = theta[c].Mul(alpha[i][c]).Add(alpha[i][c+BatchSize])
			out[c] = out[c].Sub(g[i].Mul(alpha[i][c]))
		}
	}

	for c := BatchSize; c < 2*BatchSize; c++ {
		augmented[c].Zeroize()
	}
	return out, reply, nil
}

// ReceiverFinalize checks the sender's reply and returns the receiver's output shares.
func ReceiverFinalize(sid []byte, keep *ReceiverKeep, reply *SenderReply) ([BatchSize]eckey.Scalar, error) {
	var out [BatchSize]eckey.Scalar

	if keep == nil || len(keep.Rows) != EncodingBits || len(keep.Choices) != EncodingBits/8 {
		return out, errors.Wrap(ErrMalformedReply, "receiver state")
	}
	if reply == nil || len(reply.Tau) != EncodingBits || len(reply.Eta) != EncodingBits {
		return out, ErrMalformedReply
	}

	g := gadget(sid)
	theta := checkCoefficients(sid, reply.Tau)

	for i, t := range keep.Rows {
		chosen := choiceBit(keep.Choices, i)

		var z [2 * BatchSize]eckey.Scalar
		for c := range z {
			z[c] = rowScalar(sid, i, c, t)
			if chosen {
				z[c] = z[c].Add(reply.Tau[i][c])
			}
		}

		for c := 0; c < BatchSize; c++ {
			lhs := theta[c].Mul(z[c]).Add(z[c+BatchSize])
			rhs := reply.Eta[i][c]
			if chosen {
				rhs = rhs.Add(reply.CheckA[c])
			}
			if !lhs.Equal(rhs) {
				return out, ErrInconsistentMultiplication
			}

			out[c] = out[c].Add(g[i].Mul(z[c]))
		}
	}
	return out, nil
}

// gadget is the public encoding vector: powers of two for the first 256
// positions, then pseudorandom scalars bound to the session.
func gadget(sid []byte) []eckey.Scalar {
	g := make([]eckey.Scalar, EncodingBits)
	pow := eckey.NewScalar(1)
	for i := 0; i < eckey.ScalarSize*8; i++ {
		g[i] = pow
		pow = pow.Add(pow)
	}

	var idx [4]byte
	for i := eckey.ScalarSize * 8; i < EncodingBits; i++ {
		binary.BigEndian.PutUint32(idx[:], uint32(i))
		g[i] = proofs.HashToScalar([]byte("mul-gadget"), sid, idx[:])
	}
	return g
}

func rowScalar(sid []byte, i, c int, row ot.Block) eckey.Scalar {
	var idx [5]byte
	binary.BigEndian.PutUint32(idx[:4], uint32(i))
	idx[4] = byte(c)
	return proofs.HashToScalar([]byte("mul-row"), sid, idx[:], row[:])
}

func checkCoefficients(sid []byte, tau [][2 * BatchSize]eckey.Scalar) [BatchSize]eckey.Scalar {
	buf := make([]byte, 0, len(tau)*2*BatchSize*eckey.ScalarSize)
	for i := range tau {
		for c := range tau[i] {
			b := tau[i][c].Bytes()
			buf = append(buf, b[:]...)
		}
	}
	digest := proofs.Hash([]byte("mul-check"), sid, buf)

	var theta [BatchSize]eckey.Scalar
	for c := range theta {
		theta[c] = proofs.HashToScalar([]byte("mul-theta"), digest[:], []byte{byte(c)})
	}
	return theta
}

func choiceBit(choices []byte, i int) bool {
	return (choices[i>>3]>>(uint(i)&7))&1 == 1
}
