package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"

	"github.com/chain5j/chain5j-dkls/ethtx"
	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/protocol/signing"
	"github.com/chain5j/chain5j-dkls/session"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	signParties []string
	signMessage string
	signDigest  string
	signSeed    string

	txTo       string
	txNonce    uint64
	txValue    string
	txGasLimit uint64
	txGasPrice string
	txData     string
	txChainID  int64
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a message with t party files",
	Long: `Run a signing session between the given parties, one per file. Exactly
threshold files must be given. The message is hashed with Keccak-256 unless a
digest is given.

Examples:
  dklsctl sign --party keys/party-1.json --party keys/party-3.json --message "hello"
  dklsctl sign --party keys/party-1.json,keys/party-2.json --digest 0x5f...`,
	RunE: runSign,
}

var signTxCmd = &cobra.Command{
	Use:   "sign-tx",
	Short: "Sign an Ethereum transaction with t party files",
	Long: `Build a legacy EIP-155 transaction, sign it with the given parties and
print the raw transaction. The sender is the address of the threshold key.`,
	RunE: runSignTx,
}

func init() {
	for _, c := range []*cobra.Command{signCmd, signTxCmd} {
		c.Flags().StringSliceVarP(&signParties, "party", "p", nil, "party files taking part in the session")
		c.Flags().StringVar(&signSeed, "seed", "", "derive all randomness from this seed (testing only)")
		if err := c.MarkFlagRequired("party"); err != nil {
			panic(fmt.Sprintf("failed to mark party flag as required: %v", err))
		}
	}

	signCmd.Flags().StringVarP(&signMessage, "message", "m", "", "message to sign")
	signCmd.Flags().StringVar(&signDigest, "digest", "", "32-byte digest to sign (hex)")

	signTxCmd.Flags().StringVar(&txTo, "to", "", "recipient address")
	signTxCmd.Flags().Uint64Var(&txNonce, "nonce", 0, "sender nonce")
	signTxCmd.Flags().StringVar(&txValue, "value", "0", "value in wei")
	signTxCmd.Flags().Uint64Var(&txGasLimit, "gas-limit", 21000, "gas limit")
	signTxCmd.Flags().StringVar(&txGasPrice, "gas-price", "1000000000", "gas price in wei")
	signTxCmd.Flags().StringVar(&txData, "data", "", "call data (hex)")
	signTxCmd.Flags().Int64Var(&txChainID, "chain-id", 1, "EIP-155 chain id")
	if err := signTxCmd.MarkFlagRequired("to"); err != nil {
		panic(fmt.Sprintf("failed to mark to flag as required: %v", err))
	}
	if err := viper.BindPFlag("chain_id", signTxCmd.Flags().Lookup("chain-id")); err != nil {
		panic(fmt.Sprintf("failed to bind chain-id flag: %v", err))
	}
}

// thresholdSign runs one signing session between the parties in paths.
func thresholdSign(ctx context.Context, paths []string, digest signing.Digest, normalize bool) (*signing.Signature, byte, *protocol.Party, error) {
	parties := make(map[uint8]*protocol.Party, len(paths))
	indices := make([]uint8, 0, len(paths))
	for _, path := range paths {
		party, err := readParty(path)
		if err != nil {
			return nil, 0, nil, err
		}
		if _, dup := parties[party.PartyIndex]; dup {
			return nil, 0, nil, errors.Errorf("party %d given twice", party.PartyIndex)
		}
		parties[party.PartyIndex] = party
		indices = append(indices, party.PartyIndex)
	}

	first := parties[indices[0]]
	if len(indices) != int(first.Parameters.Threshold) {
		return nil, 0, nil, errors.Errorf("need %d party files, got %d", first.Parameters.Threshold, len(indices))
	}
	for _, p := range parties {
		if !p.PublicKey.Equal(first.PublicKey) {
			return nil, 0, nil, errors.Errorf("party %d holds a different key", p.PartyIndex)
		}
	}

	signID, err := newSessionID(signSeed)
	if err != nil {
		return nil, 0, nil, err
	}

	lr, err := newLocalRun(indices, signSeed)
	if err != nil {
		return nil, 0, nil, err
	}

	type result struct {
		sig   *signing.Signature
		recid byte
	}
	var mu sync.Mutex
	results := make(map[uint8]result, len(indices))

	err = lr.run(ctx, func(ctx context.Context, idx uint8, r *session.Runner) error {
		var counterparties []uint8
		for _, j := range indices {
			if j != idx {
				counterparties = append(counterparties, j)
			}
		}

		sig, recid, err := r.RunSign(ctx, parties[idx], &signing.SignData{
			SignID:         signID,
			Counterparties: counterparties,
			MessageHash:    digest,
		}, normalize)
		if err != nil {
			return err
		}

		mu.Lock()
		results[idx] = result{sig: sig, recid: recid}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, 0, nil, err
	}

	out := results[indices[0]]
	for idx, res := range results {
		if !res.sig.R.Equal(out.sig.R) || !res.sig.S.Equal(out.sig.S) || res.recid != out.recid {
			return nil, 0, nil, errors.Errorf("party %d produced a different signature", idx)
		}
	}
	return out.sig, out.recid, first, nil
}

func runSign(cmd *cobra.Command, args []string) error {
	digest, err := messageDigest(signMessage, signDigest)
	if err != nil {
		return err
	}

	sig, recid, party, err := thresholdSign(contextOf(cmd), signParties, digest, cfg.Normalize)
	if err != nil {
		return err
	}

	fmt.Printf("Digest: %x\n", digest[:])
	fmt.Printf("r: %s\n", sig.R)
	fmt.Printf("s: %s\n", sig.S)
	fmt.Printf("v: %d\n", recid)
	fmt.Printf("Signature (r||s||v): %s\n", hex.EncodeToString(sig.Ethereum(recid)))
	fmt.Printf("Public key: %s\n", party.PublicKey)
	if recid < 2 {
		if addr, err := signing.RecoverAddress(digest, sig, recid); err == nil {
			fmt.Printf("Signer address: %s\n", addr.Hex())
		}
	}
	return nil
}

func runSignTx(cmd *cobra.Command, args []string) error {
	if !common.IsHexAddress(txTo) {
		return errors.Errorf("invalid recipient %q", txTo)
	}
	value, ok := new(big.Int).SetString(txValue, 10)
	if !ok {
		return errors.Errorf("invalid value %q", txValue)
	}
	gasPrice, ok := new(big.Int).SetString(txGasPrice, 10)
	if !ok {
		return errors.Errorf("invalid gas price %q", txGasPrice)
	}
	var data []byte
	if txData != "" {
		var err error
		if data, err = decodeHex(txData); err != nil {
			return err
		}
	}

	chainID := big.NewInt(viper.GetInt64("chain_id"))
	tx := ethtx.NewTransaction(ethtx.Params{
		Nonce:    txNonce,
		To:       common.HexToAddress(txTo),
		Value:    value,
		GasLimit: txGasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	sig, recid, party, err := thresholdSign(contextOf(cmd), signParties, ethtx.SigningHash(tx, chainID), true)
	if err != nil {
		return err
	}

	sender, err := party.Address()
	if err != nil {
		return err
	}
	signed, err := ethtx.Apply(tx, chainID, sig, recid, sender)
	if err != nil {
		return err
	}
	raw, err := ethtx.Encode(signed)
	if err != nil {
		return err
	}

	fmt.Printf("From: %s\n", sender.Hex())
	fmt.Printf("Tx hash: %s\n", signed.Hash().Hex())
	fmt.Printf("Raw transaction: 0x%s\n", hex.EncodeToString(raw))
	return nil
}
