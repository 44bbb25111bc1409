// Package zeroshare implements pairwise-seeded zero sharing: every party of an
// executing set derives a value such that the values of the whole set sum to
// zero, without further interaction after the seeds are exchanged.
package zeroshare

import (
	"io"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/proofs"
	"github.com/pkg/errors"
)

const SeedSize = 32

// Seed is one party's contribution to a pairwise seed.
type Seed [SeedSize]byte

func (s Seed) MarshalText() ([]byte, error) {
	return proofs.MarshalHex(s[:]), nil
}

func (s *Seed) UnmarshalText(input []byte) error {
	return proofs.UnmarshalHex(s[:], input)
}

// GenerateSeedWithCommitment samples a seed and commits to it.
func GenerateSeedWithCommitment(rand io.Reader) (Seed, proofs.Commitment, proofs.Salt, error) {
	var seed Seed
	if _, err := io.ReadFull(rand, seed[:]); err != nil {
		return seed, proofs.Commitment{}, proofs.Salt{}, errors.Wrap(err, "zeroshare: read seed")
	}

	commitment, salt, err := proofs.Commit(rand, []byte("zero-share-seed"), seed[:])
	if err != nil {
		return seed, proofs.Commitment{}, proofs.Salt{}, err
	}
	return seed, commitment, salt, nil
}

// VerifySeed checks a revealed seed against its commitment.
func VerifySeed(seed Seed, commitment proofs.Commitment, salt proofs.Salt) bool {
	return commitment.Verify(salt, []byte("zero-share-seed"), seed[:]) == nil
}

// SeedPair is the seed shared with one counterparty. LowestIndex records
// whether the owner has the lower index of the pair, which fixes the sign of
// its contribution.
type SeedPair struct {
	LowestIndex       bool  `json:"lowest_index"`
	CounterpartyIndex uint8 `json:"counterparty_index"`
	Seed              Seed  `json:"seed"`
}

// NewSeedPair combines both parties' seeds. Both sides obtain the same seed.
func NewSeedPair(own, counterparty uint8, ownSeed, theirSeed Seed) SeedPair {
	low, high := ownSeed, theirSeed
	if own > counterparty {
		low, high = theirSeed, ownSeed
	}

	return SeedPair{
		LowestIndex:       own < counterparty,
		CounterpartyIndex: counterparty,
		Seed:              Seed(proofs.Hash([]byte("zero-share-pair"), low[:], high[:])),
	}
}

// ZeroShare holds one seed pair per counterparty, sorted by counterparty index.
type ZeroShare struct {
	Seeds []SeedPair `json:"seeds"`
}

func Initialize(seeds []SeedPair) *ZeroShare {
	cp := make([]SeedPair, len(seeds))
	copy(cp, seeds)
	return &ZeroShare{Seeds: cp}
}

// Compute returns this party's share of zero for the session sid, taking only
// the counterparties in executing into account.
func (z *ZeroShare) Compute(sid []byte, executing []uint8) eckey.Scalar {
	in := make(map[uint8]bool, len(executing))
	for _, idx := range executing {
		in[idx] = true
	}

	var share eckey.Scalar
	for _, pair := range z.Seeds {
		if !in[pair.CounterpartyIndex] {
			continue
		}

		v := proofs.HashToScalar([]byte("zero-share"), pair.Seed[:], sid)
		if pair.LowestIndex {
			share = share.Add(v)
		} else {
			share = share.Sub(v)
		}
	}
	return share
}
