package main

import (
	"fmt"
	"strings"

	"github.com/chain5j/chain5j-dkls/protocol/derivation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	deriveParty string
	derivePath  string
)

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive a BIP32 child of a party file",
	Long: `Apply non-hardened BIP32 derivation to a party file. Every shareholder runs
the same command on its own file with the same path; the resulting files share
the child public key and can sign together.

Example:
  dklsctl derive --party keys/party-1.json --path m/0/7`,
	RunE: runDerive,
}

func init() {
	deriveCmd.Flags().StringVar(&deriveParty, "party", "", "party file")
	deriveCmd.Flags().StringVar(&derivePath, "path", "", "derivation path, e.g. m/0/1")
	for _, name := range []string{"party", "path"} {
		if err := deriveCmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}
}

func runDerive(cmd *cobra.Command, args []string) error {
	party, err := readParty(deriveParty)
	if err != nil {
		return err
	}

	child, err := derivation.DerivePartyFromPath(party, derivePath)
	if err != nil {
		return err
	}

	suffix := strings.ReplaceAll(strings.TrimPrefix(derivePath, "m"), "/", "-")
	path, err := writeParty(cfg.OutputDir, child, suffix)
	if err != nil {
		return err
	}
	logger.Info("derived party file written", zap.String("path", path), zap.String("derivation", derivePath))

	addr, err := child.Address()
	if err != nil {
		return err
	}
	fmt.Printf("Path: %s\n", derivePath)
	fmt.Printf("Public key: %s\n", child.PublicKey)
	fmt.Printf("Chain code: %x\n", child.Derivation.ChainCode[:])
	fmt.Printf("Address: %s\n", addr.Hex())
	fmt.Printf("Written: %s\n", path)
	return nil
}
