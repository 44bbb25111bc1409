package main

import (
	"fmt"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/logging"
	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/protocol/rekey"
	"github.com/chain5j/chain5j-dkls/rng"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rekeySecret    string
	rekeyChainCode string
)

var rekeyCmd = &cobra.Command{
	Use:   "rekey",
	Short: "Split an existing private key into party files",
	Long: `Split an existing secp256k1 private key into n party files with threshold t.
This runs a trusted dealer: the key and every share pass through this process,
so only run it on a machine trusted with the key.

Example:
  dklsctl rekey -t 2 -n 3 --secret 0x... -o ./keys`,
	RunE: runRekey,
}

func init() {
	rekeyCmd.Flags().StringVar(&rekeySecret, "secret", "", "private key (hex)")
	rekeyCmd.Flags().StringVar(&rekeyChainCode, "chain-code", "", "BIP32 chain code (hex, random if empty)")
	if err := rekeyCmd.MarkFlagRequired("secret"); err != nil {
		panic(fmt.Sprintf("failed to mark secret flag as required: %v", err))
	}
}

func runRekey(cmd *cobra.Command, args []string) error {
	b, err := decodeHex(rekeySecret)
	if err != nil {
		return err
	}
	secret, err := eckey.ScalarFromBytes(b)
	for i := range b {
		b[i] = 0
	}
	if err != nil {
		return errors.Wrap(err, "secret")
	}
	defer secret.Zeroize()

	var chainCode *protocol.ChainCode
	if rekeyChainCode != "" {
		cc, err := decodeHex(rekeyChainCode)
		if err != nil {
			return err
		}
		if len(cc) != len(protocol.ChainCode{}) {
			return errors.Errorf("chain code has %d bytes", len(cc))
		}
		chainCode = new(protocol.ChainCode)
		copy(chainCode[:], cc)
	}

	sessionID, err := newSessionID("")
	if err != nil {
		return err
	}

	logger.Info("splitting key", logging.Redacted("secret"))
	parties, err := rekey.Rekey(cfg.Parameters(), sessionID, secret, chainCode, rng.Reader())
	if err != nil {
		return err
	}

	for _, party := range parties {
		path, err := writeParty(cfg.OutputDir, party, "")
		if err != nil {
			return err
		}
		logger.Info("party file written", zap.Uint8("party", party.PartyIndex), zap.String("path", path))
	}

	addr, err := parties[0].Address()
	if err != nil {
		return err
	}
	fmt.Printf("Threshold: %d of %d\n", cfg.Threshold, cfg.ShareCount)
	fmt.Printf("Public key: %s\n", parties[0].PublicKey)
	fmt.Printf("Address: %s\n", addr.Hex())
	return nil
}
