package zeroshare

import (
	"testing"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/rng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup runs the seed exchange between n parties and returns the ZeroShare
// of each, keyed by index.
func setup(t *testing.T, n uint8) map[uint8]*ZeroShare {
	rand := rng.NewDeterministic([]byte("zero-share-test"))

	// seeds[i][j] is the seed party i contributes to the pair {i, j}
	seeds := make(map[uint8]map[uint8]Seed)
	for i := uint8(1); i <= n; i++ {
		seeds[i] = make(map[uint8]Seed)
		for j := uint8(1); j <= n; j++ {
			if i == j {
				continue
			}
			seed, c, salt, err := GenerateSeedWithCommitment(rand)
			require.NoError(t, err)
			require.True(t, VerifySeed(seed, c, salt))
			seeds[i][j] = seed
		}
	}

	shares := make(map[uint8]*ZeroShare)
	for i := uint8(1); i <= n; i++ {
		var pairs []SeedPair
		for j := uint8(1); j <= n; j++ {
			if i == j {
				continue
			}
			pairs = append(pairs, NewSeedPair(i, j, seeds[i][j], seeds[j][i]))
		}
		shares[i] = Initialize(pairs)
	}
	return shares
}

func TestSeedPairSymmetry(t *testing.T) {
	a := Seed{1}
	b := Seed{2}

	p12 := NewSeedPair(1, 2, a, b)
	p21 := NewSeedPair(2, 1, b, a)
	assert.Equal(t, p12.Seed, p21.Seed)
	assert.True(t, p12.LowestIndex)
	assert.False(t, p21.LowestIndex)
	assert.Equal(t, uint8(2), p12.CounterpartyIndex)
	assert.Equal(t, uint8(1), p21.CounterpartyIndex)
}

func TestVerifySeed(t *testing.T) {
	seed, c, salt, err := GenerateSeedWithCommitment(rng.NewDeterministic([]byte("verify")))
	require.NoError(t, err)
	assert.True(t, VerifySeed(seed, c, salt))

	seed[5] ^= 0x80
	assert.False(t, VerifySeed(seed, c, salt))
}

func TestComputeSumsToZero(t *testing.T) {
	shares := setup(t, 5)
	sid := []byte("sign-session")

	for _, set := range [][]uint8{
		{1, 2},
		{2, 5},
		{1, 3, 4},
		{1, 2, 3, 4, 5},
	} {
		var sum eckey.Scalar
		for _, i := range set {
			sum = sum.Add(shares[i].Compute(sid, set))
		}
		assert.True(t, sum.IsZero(), "set %v", set)
	}
}

func TestComputeDependsOnSession(t *testing.T) {
	shares := setup(t, 3)
	set := []uint8{1, 2, 3}

	a := shares[1].Compute([]byte("one"), set)
	b := shares[1].Compute([]byte("two"), set)
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(shares[1].Compute([]byte("one"), set)))

	// a party alone in the set contributes nothing
	assert.True(t, shares[1].Compute([]byte("one"), []uint8{1}).IsZero())
}
