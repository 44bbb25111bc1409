package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var keygenSeed string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a threshold key between local parties",
	Long: `Run distributed key generation for all n parties in this process and write
one party file per share to the output directory.

Examples:
  # 2-of-3 key
  dklsctl keygen -t 2 -n 3 -o ./keys

  # reproducible run, for testing only
  dklsctl keygen --seed test`,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().StringVar(&keygenSeed, "seed", "", "derive all randomness from this seed (testing only)")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	params := cfg.Parameters()
	if err := params.Validate(); err != nil {
		return err
	}

	sessionID, err := newSessionID(keygenSeed)
	if err != nil {
		return err
	}

	lr, err := newLocalRun(params.Indices(), keygenSeed)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	parties := make(map[uint8]*protocol.Party, params.ShareCount)
	err = lr.run(contextOf(cmd), func(ctx context.Context, idx uint8, r *session.Runner) error {
		party, err := r.RunDKG(ctx, &protocol.SessionData{
			Parameters: params,
			PartyIndex: idx,
			SessionID:  sessionID,
			Proof:      cfg.ProofParams(),
		})
		if err != nil {
			return err
		}

		mu.Lock()
		parties[idx] = party
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	pk := parties[1].PublicKey
	for _, idx := range params.Indices() {
		if !parties[idx].PublicKey.Equal(pk) {
			return errors.Errorf("party %d disagrees on the public key", idx)
		}
		path, err := writeParty(cfg.OutputDir, parties[idx], "")
		if err != nil {
			return err
		}
		logger.Info("party file written", zap.Uint8("party", idx), zap.String("path", path))
	}

	addr, err := parties[1].Address()
	if err != nil {
		return err
	}
	fmt.Printf("Threshold: %d of %d\n", params.Threshold, params.ShareCount)
	fmt.Printf("Public key: %s\n", pk)
	fmt.Printf("Address: %s\n", addr.Hex())
	return nil
}

// contextOf returns the command context, or a background context when the
// command runs outside Execute.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
