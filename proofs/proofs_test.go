package proofs

import (
	"encoding/json"
	"testing"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/rng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFraming(t *testing.T) {
	assert.NotEqual(t, Hash([]byte("ab"), []byte("c")), Hash([]byte("a"), []byte("bc")))
	assert.Equal(t, Hash([]byte("x")), Hash([]byte("x")))
}

func TestCommitment(t *testing.T) {
	rand := rng.NewDeterministic([]byte("commit"))

	c, salt, err := Commit(rand, []byte("value"))
	require.NoError(t, err)
	assert.NoError(t, c.Verify(salt, []byte("value")))
	assert.Equal(t, ErrInvalidCommitment, c.Verify(salt, []byte("other")))

	salt[0] ^= 1
	assert.Equal(t, ErrInvalidCommitment, c.Verify(salt, []byte("value")))

	js, err := json.Marshal(c)
	require.NoError(t, err)
	var back Commitment
	require.NoError(t, json.Unmarshal(js, &back))
	assert.Equal(t, c, back)

	assert.Error(t, json.Unmarshal([]byte(`"abcd"`), &back))
}

func TestParams(t *testing.T) {
	for _, tc := range []struct {
		name   string
		params Params
		ok     bool
	}{
		{"default", DefaultParams, true},
		{"two reps of 64 bits", Params{Repetitions: 2, ChallengeBits: 64}, true},
		{"weak", Params{Repetitions: 1, ChallengeBits: 64}, false},
		{"zero reps", Params{Repetitions: 0, ChallengeBits: 256}, false},
		{"too wide", Params{Repetitions: 1, ChallengeBits: 257}, false},
		{"too many reps", Params{Repetitions: 65, ChallengeBits: 8}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.params.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidParams)
			}
		})
	}
}

func TestDLogProof(t *testing.T) {
	rand := rng.NewDeterministic([]byte("dlog"))
	secret, err := eckey.RandomScalar(rand)
	require.NoError(t, err)
	sid := []byte("session")

	for _, params := range []Params{DefaultParams, {Repetitions: 4, ChallengeBits: 32}} {
		proof, err := Prove(rand, secret, sid, params)
		require.NoError(t, err)
		assert.True(t, proof.Point.Equal(eckey.ScalarBaseMult(secret)))
		assert.NoError(t, proof.Verify(sid, params))

		assert.Equal(t, ErrInvalidDLogProof, proof.Verify([]byte("other session"), params))

		bad := *proof
		bad.Responses = append([]eckey.Scalar(nil), proof.Responses...)
		bad.Responses[0] = bad.Responses[0].Add(eckey.NewScalar(1))
		assert.Equal(t, ErrInvalidDLogProof, bad.Verify(sid, params))

		wrong := *proof
		wrong.Point = eckey.ScalarBaseMult(secret.Add(eckey.NewScalar(1)))
		assert.Equal(t, ErrInvalidDLogProof, wrong.Verify(sid, params))
	}

	var nilProof *DLogProof
	assert.Equal(t, ErrInvalidDLogProof, nilProof.Verify(sid, DefaultParams))
}

func TestProveCommit(t *testing.T) {
	rand := rng.NewDeterministic([]byte("prove-commit"))
	secret, err := eckey.RandomScalar(rand)
	require.NoError(t, err)
	sid := []byte("sid")

	proof, c, err := ProveCommit(rand, secret, sid, DefaultParams)
	require.NoError(t, err)
	assert.NoError(t, DecommitVerify(proof, c, sid, DefaultParams))

	other, _, err := ProveCommit(rand, secret, sid, DefaultParams)
	require.NoError(t, err)
	assert.Equal(t, ErrInvalidCommitment, DecommitVerify(other, c, sid, DefaultParams))

	js, err := json.Marshal(proof)
	require.NoError(t, err)
	var back DLogProof
	require.NoError(t, json.Unmarshal(js, &back))
	assert.NoError(t, DecommitVerify(&back, c, sid, DefaultParams))
}
