// Package rekey splits an existing private key into Party values with a
// trusted dealer. It is meant for migrating a key that already exists into
// threshold custody; the dealer sees the key and every share, so it must run
// in a trusted environment and its memory must be discarded afterwards.
package rekey

import (
	"io"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/ot"
	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/zeroshare"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Rekey shares secret among params.ShareCount parties. A nil chainCode is
// replaced by a random one.
func Rekey(params protocol.Parameters, sessionID []byte, secret eckey.Scalar, chainCode *protocol.ChainCode, rand io.Reader) ([]*protocol.Party, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(sessionID) != protocol.SessionIDSize {
		return nil, errors.Wrapf(protocol.ErrInvalidInput, "session id has %d bytes", len(sessionID))
	}
	if secret.IsZero() {
		return nil, errors.Wrap(protocol.ErrInvalidInput, "zero secret key")
	}

	coeffs := make([]eckey.Scalar, params.Threshold)
	coeffs[0] = secret
	for k := 1; k < len(coeffs); k++ {
		c, err := eckey.RandomScalar(rand)
		if err != nil {
			return nil, err
		}
		coeffs[k] = c
	}
	defer func() {
		for k := range coeffs {
			coeffs[k].Zeroize()
		}
	}()

	var cc protocol.ChainCode
	if chainCode != nil {
		cc = *chainCode
	} else if _, err := io.ReadFull(rand, cc[:]); err != nil {
		return nil, errors.Wrap(err, "rekey: read chain code")
	}

	pk := eckey.ScalarBaseMult(secret)
	indices := params.Indices()
	n := len(indices)

	// Pairwise material, drawn in a fixed order: zero-share seed of {i, j},
	// then the OT setup for multiplications sent by i to j.
	pairSeeds := make(map[[2]uint8]zeroshare.Seed)
	senders := make([]map[uint8]*ot.SenderSetup, n+1)
	receivers := make([]map[uint8]*ot.ReceiverSetup, n+1)
	for _, i := range indices {
		senders[i] = make(map[uint8]*ot.SenderSetup)
		receivers[i] = make(map[uint8]*ot.ReceiverSetup)
	}

	for _, i := range indices {
		for _, j := range indices {
			if i == j {
				continue
			}
			if i < j {
				var seed zeroshare.Seed
				if _, err := io.ReadFull(rand, seed[:]); err != nil {
					return nil, errors.Wrap(err, "rekey: read zero-share seed")
				}
				pairSeeds[[2]uint8{i, j}] = seed
			}

			sender, receiver, err := dealOT(rand)
			if err != nil {
				return nil, err
			}
			senders[i][j] = sender
			receivers[j][i] = receiver
		}
	}

	parties := make([]*protocol.Party, 0, n)
	for _, i := range indices {
		var seeds []zeroshare.SeedPair
		for _, j := range indices {
			if i == j {
				continue
			}
			lo, hi := i, j
			if lo > hi {
				lo, hi = hi, lo
			}
			seeds = append(seeds, zeroshare.SeedPair{
				LowestIndex:       i < j,
				CounterpartyIndex: j,
				Seed:              pairSeeds[[2]uint8{lo, hi}],
			})
		}

		polyPoint := protocol.EvalPolynomial(coeffs, i)
		parties = append(parties, &protocol.Party{
			Parameters:   params,
			PartyIndex:   i,
			SessionID:    append([]byte(nil), sessionID...),
			PolyPoint:    polyPoint,
			PublicKey:    pk,
			ZeroShare:    zeroshare.Initialize(seeds),
			MulSenders:   senders[i],
			MulReceivers: receivers[i],
			Derivation: protocol.DerivData{
				PolyPoint: polyPoint,
				PublicKey: pk,
				ChainCode: cc,
			},
		})
	}

	zap.L().Named("rekey").Info("key split", zap.Uint8("threshold", params.Threshold), zap.Uint8("share_count", params.ShareCount), zap.Stringer("public_key", pk))
	return parties, nil
}

// dealOT samples the OT-extension state of one ordered pair directly, in place
// of running the base OTs.
func dealOT(rand io.Reader) (*ot.SenderSetup, *ot.ReceiverSetup, error) {
	sender := &ot.SenderSetup{}
	receiver := &ot.ReceiverSetup{}

	if _, err := io.ReadFull(rand, sender.Correlation[:]); err != nil {
		return nil, nil, errors.Wrap(err, "rekey: read correlation")
	}
	for k := 0; k < ot.Kappa; k++ {
		if _, err := io.ReadFull(rand, receiver.Seeds0[k][:]); err != nil {
			return nil, nil, errors.Wrap(err, "rekey: read OT seed")
		}
		if _, err := io.ReadFull(rand, receiver.Seeds1[k][:]); err != nil {
			return nil, nil, errors.Wrap(err, "rekey: read OT seed")
		}

		if sender.Correlation.Bit(k) {
			sender.Seeds[k] = receiver.Seeds1[k]
		} else {
			sender.Seeds[k] = receiver.Seeds0[k]
		}
	}
	return sender, receiver, nil
}
