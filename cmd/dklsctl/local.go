package main

import (
	"context"
	"fmt"
	"io"

	"github.com/chain5j/chain5j-dkls/mocknet"
	"github.com/chain5j/chain5j-dkls/rng"
	"github.com/chain5j/chain5j-dkls/session"
	"github.com/chain5j/chain5j-dkls/wire"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// localRun hosts the given parties on one in-memory network. Every party gets
// an identity key, and envelopes are sealed and verified between them.
type localRun struct {
	net     *mocknet.Net
	runners map[uint8]*session.Runner
	indices []uint8
}

// newLocalRun prepares the parties. A non-empty seed makes every party's
// randomness reproducible.
func newLocalRun(indices []uint8, seed string) (*localRun, error) {
	lr := &localRun{
		net:     mocknet.New(indices...),
		runners: make(map[uint8]*session.Runner, len(indices)),
		indices: indices,
	}

	keyring := make(wire.Keyring, len(indices))
	for _, idx := range indices {
		var rand io.Reader = rng.Reader()
		if seed != "" {
			rand = rng.NewDeterministic([]byte(fmt.Sprintf("party:%s:%d", seed, idx)))
		}

		id, err := wire.NewIdentity(rand)
		if err != nil {
			return nil, err
		}
		keyring[idx] = id.Public()

		r := session.NewRunner(lr.net.Endpoint(idx), logger.Named("session"))
		r.Rand = rand
		r.PhaseTimeout = cfg.PhaseTimeout
		r.Identity = id
		lr.runners[idx] = r
	}
	for _, r := range lr.runners {
		r.Keyring = keyring
	}
	return lr, nil
}

// run calls fn for every party concurrently and returns the first error.
func (lr *localRun) run(ctx context.Context, fn func(ctx context.Context, idx uint8, r *session.Runner) error) error {
	defer lr.net.Close()

	g, ctx := errgroup.WithContext(ctx)
	for _, idx := range lr.indices {
		idx := idx
		g.Go(func() error {
			if err := fn(ctx, idx, lr.runners[idx]); err != nil {
				logger.Error("party failed", zap.Uint8("party", idx), zap.Error(err))
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
