package signing_test

import (
	"bytes"
	"crypto/sha256"
	"io"
	"testing"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/protocol/signing"
	"github.com/chain5j/chain5j-dkls/protocol/simulate"
	"github.com/chain5j/chain5j-dkls/rng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func seeded(label string) simulate.RandFor {
	return func(idx uint8) io.Reader {
		return rng.NewDeterministic(append([]byte(label), idx))
	}
}

func signID(b byte) []byte {
	return bytes.Repeat([]byte{b}, protocol.SessionIDSize)
}

func keygen(t *testing.T, threshold, n uint8) map[uint8]*protocol.Party {
	params := protocol.Parameters{Threshold: threshold, ShareCount: n}
	res, err := simulate.DKG(params, signID(0xd0), seeded("keygen"), nil)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	return res.Parties
}

var message = sha256.Sum256([]byte("Message to sign!"))

func checkResult(t *testing.T, parties []*protocol.Party, res *simulate.SignResult, normalize bool) {
	pk := parties[0].PublicKey
	first := parties[0].PartyIndex

	for _, p := range parties {
		i := p.PartyIndex
		assert.True(t, res.XCoords[i].Equal(res.XCoords[first]))
		assert.Equal(t, res.Signatures[first], res.Signatures[i])
		assert.Equal(t, res.RecIDs[first], res.RecIDs[i])
	}

	sig := res.Signatures[first]
	recid := res.RecIDs[first]
	assert.True(t, sig.R.Equal(res.XCoords[first]))
	assert.True(t, signing.VerifyEcdsaSignature(message, pk, sig.R, sig.S))
	if normalize {
		assert.False(t, sig.S.IsOverHalfOrder())
	}

	recovered, err := signing.RecoverPublicKey(message, sig, recid)
	require.NoError(t, err)
	assert.True(t, recovered.Equal(pk))
}

func TestSignTwoOfTwo(t *testing.T) {
	parties := keygen(t, 2, 2)
	set := []*protocol.Party{parties[1], parties[2]}

	res, err := simulate.Sign(set, signID(1), message, true, seeded("sign"))
	require.NoError(t, err)
	checkResult(t, set, res, true)

	sig := res.Signatures[1]
	addr, err := signing.RecoverAddress(message, sig, res.RecIDs[1])
	require.NoError(t, err)
	want, err := parties[1].Address()
	require.NoError(t, err)
	assert.Equal(t, want, addr)
}

func TestSignSubsets(t *testing.T) {
	parties := keygen(t, 2, 3)

	for k, pair := range [][2]uint8{{1, 2}, {1, 3}, {3, 2}} {
		set := []*protocol.Party{parties[pair[0]], parties[pair[1]]}
		res, err := simulate.Sign(set, signID(byte(10+k)), message, true, seeded("subset"))
		require.NoError(t, err, "pair %v", pair)
		checkResult(t, set, res, true)
	}
}

func TestSignThreeOfFour(t *testing.T) {
	parties := keygen(t, 3, 4)
	set := []*protocol.Party{parties[4], parties[1], parties[3]}

	res, err := simulate.Sign(set, signID(2), message, false, seeded("3of4"))
	require.NoError(t, err)
	checkResult(t, set, res, false)
}

func TestSignNormalization(t *testing.T) {
	parties := keygen(t, 2, 2)
	set := []*protocol.Party{parties[1], parties[2]}

	// the same randomness with and without normalization gives s or n-s
	flipped, kept := 0, 0
	for k := 0; k < 32 && (flipped == 0 || kept == 0); k++ {
		seed := seeded(string([]byte{'n', 'o', 'r', 'm', byte(k)}))
		raw, err := simulate.Sign(set, signID(3), message, false, seed)
		require.NoError(t, err)
		low, err := simulate.Sign(set, signID(3), message, true, seed)
		require.NoError(t, err)

		rs, ls := raw.Signatures[1], low.Signatures[1]
		assert.True(t, rs.R.Equal(ls.R))
		assert.False(t, ls.S.IsOverHalfOrder())
		if rs.S.IsOverHalfOrder() {
			flipped++
			assert.True(t, ls.S.Equal(rs.S.Negate()))
			assert.Equal(t, raw.RecIDs[1]^1, low.RecIDs[1])
		} else {
			kept++
			assert.True(t, ls.S.Equal(rs.S))
			assert.Equal(t, raw.RecIDs[1], low.RecIDs[1])
		}

		for _, res := range []*simulate.SignResult{raw, low} {
			pk, err := signing.RecoverPublicKey(message, res.Signatures[1], res.RecIDs[1])
			require.NoError(t, err)
			assert.True(t, pk.Equal(parties[1].PublicKey))
		}
	}
	assert.NotZero(t, flipped, "no high s seen")
	assert.NotZero(t, kept, "no low s seen")
}

func TestSignDeterministic(t *testing.T) {
	parties := keygen(t, 2, 2)
	set := []*protocol.Party{parties[1], parties[2]}

	a, err := simulate.Sign(set, signID(4), message, true, seeded("det"))
	require.NoError(t, err)
	b, err := simulate.Sign(set, signID(4), message, true, seeded("det"))
	require.NoError(t, err)
	c, err := simulate.Sign(set, signID(4), message, true, seeded("det-other"))
	require.NoError(t, err)

	assert.Equal(t, a.Signatures[1].Bytes(), b.Signatures[1].Bytes())
	assert.Equal(t, a.RecIDs[1], b.RecIDs[1])
	// fresh nonces give a fresh signature
	assert.NotEqual(t, a.Signatures[1].Bytes(), c.Signatures[1].Bytes())
	checkResult(t, set, c, true)
}

func TestConcurrentSessions(t *testing.T) {
	parties := keygen(t, 2, 3)
	set := []*protocol.Party{parties[1], parties[2]}

	results := make([]*simulate.SignResult, 4)
	var g errgroup.Group
	for k := range results {
		k := k
		g.Go(func() error {
			res, err := simulate.Sign(set, signID(byte(0x40+k)), message, true, func(idx uint8) io.Reader {
				return rng.Reader()
			})
			results[k] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, res := range results {
		checkResult(t, set, res, true)
	}
}

// phases runs signing phases 1 and 2 for a 2-of-2 set by hand.
type phases struct {
	parties map[uint8]*protocol.Party
	data    map[uint8]*signing.SignData
	out1    map[uint8]*signing.Phase1Output
	out2    map[uint8]*signing.Phase2Output
}

func runPhases(t *testing.T, parties map[uint8]*protocol.Party) *phases {
	rand := rng.NewDeterministic([]byte("phases"))
	p := &phases{
		parties: parties,
		data: map[uint8]*signing.SignData{
			1: {SignID: signID(7), Counterparties: []uint8{2}, MessageHash: message},
			2: {SignID: signID(7), Counterparties: []uint8{1}, MessageHash: message},
		},
		out1: make(map[uint8]*signing.Phase1Output),
		out2: make(map[uint8]*signing.Phase2Output),
	}

	for _, i := range []uint8{1, 2} {
		out, err := signing.Phase1(parties[i], p.data[i], rand)
		require.NoError(t, err)
		p.out1[i] = out
	}
	for _, i := range []uint8{1, 2} {
		j := 3 - i
		out, err := signing.Phase2(parties[i], p.data[i], p.out1[i].UniqueKeep, p.out1[i].Keep, p.out1[j].Transmit, rand)
		require.NoError(t, err)
		p.out2[i] = out
	}
	return p
}

func TestKeepConsumed(t *testing.T) {
	parties := keygen(t, 2, 2)
	p := runPhases(t, parties)

	_, err := signing.Phase2(parties[1], p.data[1], p.out1[1].UniqueKeep, p.out1[1].Keep, p.out1[2].Transmit, rng.Reader())
	assert.Equal(t, protocol.ErrKeepConsumed, err)
	assert.ErrorIs(t, err, protocol.ErrInvalidInput)

	other := *p.data[1]
	other.SignID = signID(8)
	_, err = signing.Phase3(parties[1], &other, p.out2[1].UniqueKeep, p.out2[1].Keep, p.out2[2].Transmit)
	assert.Equal(t, protocol.ErrSessionMismatch, err)

	out, err := signing.Phase3(parties[1], p.data[1], p.out2[1].UniqueKeep, p.out2[1].Keep, p.out2[2].Transmit)
	require.NoError(t, err)
	assert.False(t, out.XCoord.IsZero())

	_, err = signing.Phase3(parties[1], p.data[1], p.out2[1].UniqueKeep, p.out2[1].Keep, p.out2[2].Transmit)
	assert.Equal(t, protocol.ErrKeepConsumed, err)
}

func TestTamperedPhase2(t *testing.T) {
	parties := keygen(t, 2, 2)

	for name, tc := range map[string]struct {
		tamper func(m *signing.TransmitPhase2to3)
		fault  protocol.Fault
	}{
		"gamma_u": {
			tamper: func(m *signing.TransmitPhase2to3) { m.GammaU = m.GammaU.Add(eckey.Generator()) },
			fault:  protocol.FaultInconsistentMultiplication,
		},
		"instance point": {
			tamper: func(m *signing.TransmitPhase2to3) { m.InstancePoint = m.InstancePoint.Add(eckey.Generator()) },
			fault:  protocol.FaultCommitmentMismatch,
		},
		"eta": {
			tamper: func(m *signing.TransmitPhase2to3) {
				m.MulTransmit.Eta[0][1] = m.MulTransmit.Eta[0][1].Add(eckey.NewScalar(1))
			},
			fault: protocol.FaultInconsistentMultiplication,
		},
	} {
		t.Run(name, func(t *testing.T) {
			p := runPhases(t, parties)
			received := append([]signing.TransmitPhase2to3(nil), p.out2[2].Transmit...)
			tc.tamper(&received[0])

			_, err := signing.Phase3(parties[1], p.data[1], p.out2[1].UniqueKeep, p.out2[1].Keep, received)
			abort, ok := protocol.AsAbort(err)
			require.True(t, ok, "%v", err)
			assert.Equal(t, uint8(2), abort.Index)
			assert.Equal(t, tc.fault, abort.Fault)

			// an aborted phase consumes its keep
			_, err = signing.Phase3(parties[1], p.data[1], p.out2[1].UniqueKeep, p.out2[1].Keep, p.out2[2].Transmit)
			assert.Equal(t, protocol.ErrKeepConsumed, err)
		})
	}
}

func TestTamperedExtension(t *testing.T) {
	parties := keygen(t, 2, 2)
	rand := rng.NewDeterministic([]byte("tamper-ext"))
	data := map[uint8]*signing.SignData{
		1: {SignID: signID(9), Counterparties: []uint8{2}, MessageHash: message},
		2: {SignID: signID(9), Counterparties: []uint8{1}, MessageHash: message},
	}

	out1, err := signing.Phase1(parties[1], data[1], rand)
	require.NoError(t, err)
	out2, err := signing.Phase1(parties[2], data[2], rand)
	require.NoError(t, err)

	out2.Transmit[0].MulTransmit.CheckT[0] ^= 0x01
	_, err = signing.Phase2(parties[1], data[1], out1.UniqueKeep, out1.Keep, out2.Transmit, rand)
	abort, ok := protocol.AsAbort(err)
	require.True(t, ok)
	assert.Equal(t, uint8(2), abort.Index)
	assert.Equal(t, protocol.FaultInvalidOTExtension, abort.Fault)

	out2.Transmit[0].MulTransmit.CheckT[0] ^= 0x01
	_, err = signing.Phase2(parties[1], data[1], out1.UniqueKeep, out1.Keep, out2.Transmit, rand)
	assert.Equal(t, protocol.ErrKeepConsumed, err)
}

func TestPhase4(t *testing.T) {
	parties := keygen(t, 2, 2)
	p := runPhases(t, parties)

	out3 := make(map[uint8]*signing.Phase3Output)
	for _, i := range []uint8{1, 2} {
		out, err := signing.Phase3(parties[i], p.data[i], p.out2[i].UniqueKeep, p.out2[i].Keep, p.out2[3-i].Transmit)
		require.NoError(t, err)
		out3[i] = out
	}
	broadcasts := []signing.Broadcast3to4{out3[1].Broadcast, out3[2].Broadcast}

	_, _, err := signing.Phase4(parties[1], p.data[1], out3[1].XCoord, broadcasts[:1], true)
	abort, ok := protocol.AsAbort(err)
	require.True(t, ok)
	assert.Equal(t, uint8(2), abort.Index)
	assert.Equal(t, protocol.FaultMissingMessages, abort.Fault)

	bad := append([]signing.Broadcast3to4(nil), broadcasts...)
	bad[1].W = bad[1].W.Add(eckey.NewScalar(1))
	_, _, err = signing.Phase4(parties[1], p.data[1], out3[1].XCoord, bad, true)
	abort, ok = protocol.AsAbort(err)
	require.True(t, ok)
	assert.Equal(t, protocol.FaultInvalidSignature, abort.Fault)

	sig, recid, err := signing.Phase4(parties[1], p.data[1], out3[1].XCoord, broadcasts, true)
	require.NoError(t, err)
	assert.LessOrEqual(t, recid, byte(1))
	assert.Len(t, sig.Bytes(), 64)
	assert.Len(t, sig.Ethereum(recid), 65)
	assert.Equal(t, recid, sig.Ethereum(recid)[64])
	assert.Equal(t, byte(31)+recid, sig.Compact(recid)[0])
}

func TestInvalidSignData(t *testing.T) {
	parties := keygen(t, 2, 3)
	rand := rng.Reader()

	for name, data := range map[string]*signing.SignData{
		"short sign id":     {SignID: []byte{1}, Counterparties: []uint8{2}},
		"too many":          {SignID: signID(1), Counterparties: []uint8{2, 3}},
		"self":              {SignID: signID(1), Counterparties: []uint8{1}},
		"unknown party":     {SignID: signID(1), Counterparties: []uint8{9}},
		"no counterparties": {SignID: signID(1)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := signing.Phase1(parties[1], data, rand)
			assert.ErrorIs(t, err, protocol.ErrInvalidInput)
		})
	}

	_, err := signing.Phase1(parties[1], nil, rand)
	assert.ErrorIs(t, err, protocol.ErrInvalidInput)
}

func TestRecoverErrors(t *testing.T) {
	sig := &signing.Signature{R: eckey.NewScalar(1), S: eckey.NewScalar(1)}
	_, err := signing.RecoverPublicKey(message, sig, 4)
	assert.Equal(t, signing.ErrInvalidRecoveryID, err)
	_, err = signing.RecoverAddress(message, sig, 2)
	assert.Equal(t, signing.ErrInvalidRecoveryID, err)

	assert.False(t, signing.VerifyEcdsaSignature(message, eckey.Generator(), eckey.Scalar{}, eckey.NewScalar(1)))
}
