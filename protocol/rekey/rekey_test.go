package rekey

import (
	"bytes"
	"io"
	"testing"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/protocol/signing"
	"github.com/chain5j/chain5j-dkls/protocol/simulate"
	"github.com/chain5j/chain5j-dkls/rng"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionID = bytes.Repeat([]byte{0x33}, protocol.SessionIDSize)

func TestRekeySigns(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	secret := eckey.ScalarFromBig(key.D)

	params := protocol.Parameters{Threshold: 2, ShareCount: 3}
	cc := protocol.ChainCode{9}
	parties, err := Rekey(params, sessionID, secret, &cc, rng.NewDeterministic([]byte("rekey")))
	require.NoError(t, err)
	require.Len(t, parties, 3)

	for _, p := range parties {
		require.NoError(t, p.Validate())
		assert.True(t, p.PublicKey.Equal(eckey.ScalarBaseMult(secret)))
		assert.Equal(t, cc, p.Derivation.ChainCode)

		addr, err := p.Address()
		require.NoError(t, err)
		assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)
	}

	set := []uint8{1, 3}
	sk := protocol.LagrangeCoefficient(1, set).Mul(parties[0].PolyPoint).
		Add(protocol.LagrangeCoefficient(3, set).Mul(parties[2].PolyPoint))
	assert.True(t, sk.Equal(secret))

	digest := signing.Digest(crypto.Keccak256Hash([]byte("rekeyed")))
	res, err := simulate.Sign([]*protocol.Party{parties[0], parties[2]}, sessionID, digest, true, func(idx uint8) io.Reader {
		return rng.NewDeterministic([]byte{idx})
	})
	require.NoError(t, err)

	addr, err := signing.RecoverAddress(digest, res.Signatures[1], res.RecIDs[1])
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)
}

func TestRekeyRandomChainCode(t *testing.T) {
	params := protocol.Parameters{Threshold: 2, ShareCount: 2}
	parties, err := Rekey(params, sessionID, eckey.NewScalar(42), nil, rng.NewDeterministic([]byte("cc")))
	require.NoError(t, err)
	assert.NotEqual(t, protocol.ChainCode{}, parties[0].Derivation.ChainCode)
	assert.Equal(t, parties[0].Derivation.ChainCode, parties[1].Derivation.ChainCode)

	// the dealt zero-share seeds cancel
	set := []uint8{1, 2}
	zeta := parties[0].ZeroShare.Compute([]byte("x"), set).Add(parties[1].ZeroShare.Compute([]byte("x"), set))
	assert.True(t, zeta.IsZero())
}

func TestDealOT(t *testing.T) {
	sender, receiver, err := dealOT(rng.NewDeterministic([]byte("deal")))
	require.NoError(t, err)

	for _, k := range []int{0, 17, 255} {
		if sender.Correlation.Bit(k) {
			assert.Equal(t, receiver.Seeds1[k], sender.Seeds[k])
		} else {
			assert.Equal(t, receiver.Seeds0[k], sender.Seeds[k])
		}
	}
}

func TestRekeyInvalid(t *testing.T) {
	rand := rng.Reader()
	params := protocol.Parameters{Threshold: 2, ShareCount: 2}

	_, err := Rekey(protocol.Parameters{Threshold: 3, ShareCount: 2}, sessionID, eckey.NewScalar(1), nil, rand)
	assert.ErrorIs(t, err, protocol.ErrInvalidInput)
	_, err = Rekey(params, sessionID[:8], eckey.NewScalar(1), nil, rand)
	assert.ErrorIs(t, err, protocol.ErrInvalidInput)
	_, err = Rekey(params, sessionID, eckey.Scalar{}, nil, rand)
	assert.ErrorIs(t, err, protocol.ErrInvalidInput)
}
