package protocol

import (
	"bytes"
	"testing"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/proofs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameters(t *testing.T) {
	assert.NoError(t, Parameters{Threshold: 2, ShareCount: 2}.Validate())
	assert.NoError(t, Parameters{Threshold: 3, ShareCount: 5}.Validate())
	assert.ErrorIs(t, Parameters{Threshold: 1, ShareCount: 3}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, Parameters{Threshold: 4, ShareCount: 3}.Validate(), ErrInvalidInput)

	p := Parameters{Threshold: 2, ShareCount: 3}
	assert.Equal(t, []uint8{1, 2, 3}, p.Indices())
	assert.NoError(t, p.ValidateIndex(3))
	assert.ErrorIs(t, p.ValidateIndex(0), ErrInvalidInput)
	assert.ErrorIs(t, p.ValidateIndex(4), ErrInvalidInput)
}

func TestSessionData(t *testing.T) {
	sid := bytes.Repeat([]byte{7}, SessionIDSize)
	s := &SessionData{Parameters: Parameters{Threshold: 2, ShareCount: 3}, PartyIndex: 2, SessionID: sid}
	require.NoError(t, s.Validate())
	assert.Equal(t, []uint8{1, 3}, s.Counterparties())
	assert.Equal(t, proofs.DefaultParams, s.ProofParams())

	s.Proof = proofs.Params{Repetitions: 2, ChallengeBits: 64}
	require.NoError(t, s.Validate())
	assert.Equal(t, s.Proof, s.ProofParams())

	s.Proof = proofs.Params{Repetitions: 1, ChallengeBits: 8}
	assert.ErrorIs(t, s.Validate(), ErrInvalidInput)

	bad := *s
	bad.Proof = proofs.Params{}
	bad.SessionID = sid[:16]
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)

	bad = *s
	bad.Proof = proofs.Params{}
	bad.PartyIndex = 4
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)

	var nilSession *SessionData
	assert.ErrorIs(t, nilSession.Validate(), ErrInvalidInput)
}

func TestPartiesMessage(t *testing.T) {
	params := Parameters{Threshold: 2, ShareCount: 3}
	m := PartiesMessage{Sender: 1, Receiver: 3}
	assert.NoError(t, m.Validate(params))
	assert.Equal(t, PartiesMessage{Sender: 3, Receiver: 1}, m.Reverse())
	assert.ErrorIs(t, PartiesMessage{Sender: 2, Receiver: 2}.Validate(params), ErrInvalidInput)
	assert.ErrorIs(t, PartiesMessage{Sender: 2, Receiver: 9}.Validate(params), ErrInvalidInput)
}

func TestSortedUnique(t *testing.T) {
	out, err := SortedUnique([]uint8{5, 1, 3})
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 3, 5}, out)

	_, err = SortedUnique([]uint8{2, 1, 2})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLagrange(t *testing.T) {
	// f(x) = 9 + 4x + 2x^2
	coeffs := []eckey.Scalar{eckey.NewScalar(9), eckey.NewScalar(4), eckey.NewScalar(2)}
	assert.True(t, EvalPolynomial(coeffs, 0).Equal(eckey.NewScalar(9)))
	assert.True(t, EvalPolynomial(coeffs, 3).Equal(eckey.NewScalar(9+12+18)))

	for _, set := range [][]uint8{{1, 2, 3}, {2, 4, 5}, {1, 3, 6, 7}} {
		var atZero, atTen eckey.Scalar
		for _, i := range set {
			y := EvalPolynomial(coeffs, i)
			atZero = atZero.Add(LagrangeCoefficient(i, set).Mul(y))
			atTen = atTen.Add(LagrangeAt(i, set, 10).Mul(y))
		}
		assert.True(t, atZero.Equal(coeffs[0]), "set %v", set)
		assert.True(t, atTen.Equal(EvalPolynomial(coeffs, 10)), "set %v", set)
	}

	var sum eckey.Scalar
	for _, i := range []uint8{1, 4} {
		sum = sum.Add(LagrangeCoefficient(i, []uint8{1, 4}))
	}
	assert.True(t, sum.Equal(eckey.NewScalar(1)))
}

func TestAbort(t *testing.T) {
	a := NewAbort(3, FaultCommitmentMismatch, "zero share seed from %d", 3)
	assert.Equal(t, "party 3 aborted the session: commitment mismatch: zero share seed from 3", a.Error())
	assert.False(t, a.ResourceExhaustion())
	assert.True(t, NewAbort(1, FaultMissingMessages, "timeout").ResourceExhaustion())

	wrapped := errors.Wrap(a, "phase 4")
	got, ok := AsAbort(wrapped)
	require.True(t, ok)
	assert.Equal(t, a, got)

	_, ok = AsAbort(ErrInvalidInput)
	assert.False(t, ok)

	assert.Equal(t, "fault(200)", Fault(200).String())
	for f := FaultInvalidProof; f <= FaultMissingMessages; f++ {
		assert.NotContains(t, f.String(), "fault(")
	}
}
