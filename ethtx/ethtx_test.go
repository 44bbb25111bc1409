package ethtx

import (
	"bytes"
	"io"
	"math/big"
	"testing"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/protocol/rekey"
	"github.com/chain5j/chain5j-dkls/protocol/signing"
	"github.com/chain5j/chain5j-dkls/protocol/simulate"
	"github.com/chain5j/chain5j-dkls/rng"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var chainID = big.NewInt(1337)

func thresholdSign(t *testing.T, digest signing.Digest) (*signing.Signature, byte, common.Address) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sid := bytes.Repeat([]byte{0x77}, protocol.SessionIDSize)
	params := protocol.Parameters{Threshold: 2, ShareCount: 3}
	parties, err := rekey.Rekey(params, sid, eckey.ScalarFromBig(key.D), nil, rng.Reader())
	require.NoError(t, err)

	res, err := simulate.Sign([]*protocol.Party{parties[1], parties[2]}, sid, digest, true, func(idx uint8) io.Reader {
		return rng.NewDeterministic([]byte{'t', 'x', idx})
	})
	require.NoError(t, err)
	return res.Signatures[2], res.RecIDs[2], crypto.PubkeyToAddress(key.PublicKey)
}

func TestSignTransaction(t *testing.T) {
	tx := NewTransaction(Params{
		Nonce:    7,
		To:       common.HexToAddress("0x8a8eafb1cf62bfbeb1741769dae1a9dd47996192"),
		Value:    big.NewInt(1e18),
		GasLimit: 21000,
		GasPrice: big.NewInt(2e9),
	})
	digest := SigningHash(tx, chainID)
	sig, recid, sender := thresholdSign(t, digest)

	signed, err := Apply(tx, chainID, sig, recid, sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), signed.Nonce())

	raw, err := Encode(signed)
	require.NoError(t, err)
	decoded := new(types.Transaction)
	require.NoError(t, rlp.DecodeBytes(raw, decoded))
	assert.Equal(t, signed.Hash(), decoded.Hash())

	from, err := types.Sender(types.NewEIP155Signer(chainID), decoded)
	require.NoError(t, err)
	assert.Equal(t, sender, from)

	_, err = Apply(tx, chainID, sig, recid, common.Address{1})
	assert.ErrorIs(t, err, ErrSenderMismatch)

	high := &signing.Signature{R: sig.R, S: sig.S.Negate()}
	_, err = Apply(tx, chainID, high, recid^1, sender)
	assert.Equal(t, ErrHighS, err)

	_, err = Apply(tx, chainID, sig, 2, sender)
	assert.Equal(t, signing.ErrInvalidRecoveryID, err)
}

func TestNewTransactionDefaults(t *testing.T) {
	tx := NewTransaction(Params{Nonce: 1, GasLimit: 21000})
	assert.Equal(t, 0, tx.Value().Sign())
	assert.Equal(t, 0, tx.GasPrice().Sign())

	// the hash commits to the chain id
	assert.NotEqual(t, SigningHash(tx, big.NewInt(1)), SigningHash(tx, big.NewInt(2)))
}
