// Package ethtx signs Ethereum transactions with a threshold key: it computes
// the EIP-155 signing hash the parties sign, and attaches the resulting
// signature to the transaction.
package ethtx

import (
	"math/big"

	"github.com/chain5j/chain5j-dkls/protocol/signing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

var (
	ErrHighS          = errors.New("ethtx: signature s is not normalized")
	ErrSenderMismatch = errors.New("ethtx: signature does not recover the expected sender")
)

// Params describe a legacy value transfer or contract call.
type Params struct {
	Nonce    uint64
	To       common.Address
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Data     []byte
}

func NewTransaction(p Params) *types.Transaction {
	value := p.Value
	if value == nil {
		value = common.Big0
	}
	gasPrice := p.GasPrice
	if gasPrice == nil {
		gasPrice = common.Big0
	}
	return types.NewTransaction(p.Nonce, p.To, value, p.GasLimit, gasPrice, p.Data)
}

// SigningHash is the digest the parties sign for tx on chainID.
func SigningHash(tx *types.Transaction, chainID *big.Int) signing.Digest {
	return signing.Digest(types.NewEIP155Signer(chainID).Hash(tx))
}

// Apply attaches sig to tx and checks that it recovers sender. Ethereum only
// accepts signatures with s in the lower half of the order, so the signing
// session must have run with normalization.
func Apply(tx *types.Transaction, chainID *big.Int, sig *signing.Signature, recid byte, sender common.Address) (*types.Transaction, error) {
	if sig.S.IsOverHalfOrder() {
		return nil, ErrHighS
	}
	if recid > 1 {
		return nil, signing.ErrInvalidRecoveryID
	}

	signer := types.NewEIP155Signer(chainID)
	signed, err := tx.WithSignature(signer, sig.Ethereum(recid))
	if err != nil {
		return nil, errors.Wrap(err, "ethtx: attach signature")
	}

	from, err := types.Sender(signer, signed)
	if err != nil {
		return nil, errors.Wrap(ErrSenderMismatch, err.Error())
	}
	if from != sender {
		return nil, errors.Wrapf(ErrSenderMismatch, "recovered %s, want %s", from.Hex(), sender.Hex())
	}
	return signed, nil
}

// Encode returns the RLP encoding of a signed transaction, as accepted by
// eth_sendRawTransaction.
func Encode(tx *types.Transaction) ([]byte, error) {
	b, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return nil, errors.Wrap(err, "ethtx: encode")
	}
	return b, nil
}
