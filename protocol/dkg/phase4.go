package dkg

import (
	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/ot"
	"github.com/chain5j/chain5j-dkls/proofs"
	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/zeroshare"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Phase4 verifies every message of the run and finalizes the Party. The checks
// run in this order and the first failure is returned as a *protocol.Abort:
//
//  1. poly point proofs against their commitments, by ascending index
//  2. the committed points lie on one polynomial of degree t-1
//  3. zero-sharing reveals against their commitments
//  4. chain-code reveals against their commitments
//  5. base OT messages, lowest failing counterparty first
func Phase4(session *protocol.SessionData, in *Phase4Input) (*protocol.Party, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if in == nil {
		return nil, errors.Wrap(protocol.ErrInvalidInput, "nil phase 4 input")
	}

	me := session.PartyIndex
	params := session.Parameters
	counterparties := session.Counterparties()

	for _, j := range counterparties {
		if in.ZeroKept[j] == nil || in.MulKept[j] == nil {
			return nil, errors.Wrapf(protocol.ErrInvalidInput, "missing keep state for %d", j)
		}
	}

	points, err := verifyProofs(session, in)
	if err != nil {
		return nil, err
	}

	pk, err := publicKey(session, points)
	if err != nil {
		return nil, err
	}

	seeds, err := verifyZeroShares(session, in)
	if err != nil {
		return nil, err
	}

	chainCode, err := verifyChainCodes(session, in)
	if err != nil {
		return nil, err
	}

	senders, receivers, err := finalizeOT(session, in)
	if err != nil {
		return nil, err
	}

	party := &protocol.Party{
		Parameters:   params,
		PartyIndex:   me,
		SessionID:    append([]byte(nil), session.SessionID...),
		PolyPoint:    in.PolyPoint,
		PublicKey:    pk,
		ZeroShare:    zeroshare.Initialize(seeds),
		MulSenders:   senders,
		MulReceivers: receivers,
		Derivation: protocol.DerivData{
			PolyPoint: in.PolyPoint,
			PublicKey: pk,
			ChainCode: chainCode,
		},
	}

	zap.L().Named("dkg").Debug("phase 4 done", zap.Uint8("party", me), zap.Stringer("public_key", pk))
	return party, nil
}

func verifyProofs(session *protocol.SessionData, in *Phase4Input) (map[uint8]eckey.Point, error) {
	me := session.PartyIndex
	byIndex := make(map[uint8]ProofCommitment, len(in.ProofsCommitments))
	for _, pc := range in.ProofsCommitments {
		if session.Parameters.ValidateIndex(pc.Index) != nil {
			return nil, errors.Wrapf(protocol.ErrInvalidInput, "proof commitment from index %d", pc.Index)
		}
		if _, dup := byIndex[pc.Index]; dup {
			return nil, protocol.NewAbort(pc.Index, protocol.FaultMalformedMessage, "duplicate proof commitment")
		}
		byIndex[pc.Index] = pc
	}

	points := make(map[uint8]eckey.Point, len(byIndex))
	for _, idx := range session.Parameters.Indices() {
		pc, ok := byIndex[idx]
		if !ok {
			return nil, protocol.NewAbort(idx, protocol.FaultMissingMessages, "no proof commitment")
		}
		if err := proofs.DecommitVerify(pc.Proof, pc.Commitment, dlogSID(session, idx), session.ProofParams()); err != nil {
			return nil, protocol.NewAbort(idx, protocol.FaultInvalidProof, "poly point proof: %v", err)
		}
		points[idx] = pc.Proof.Point
	}

	if !points[me].Equal(eckey.ScalarBaseMult(in.PolyPoint)) {
		return nil, errors.Wrap(protocol.ErrInvalidInput, "own proof does not match own poly point")
	}
	return points, nil
}

// publicKey interpolates the committed points of parties 1..t at zero and
// checks that the points of parties t+1..n lie on the same polynomial.
func publicKey(session *protocol.SessionData, points map[uint8]eckey.Point) (eckey.Point, error) {
	indices := session.Parameters.Indices()
	base := indices[:session.Parameters.Threshold]

	var pk eckey.Point
	for _, l := range base {
		pk = pk.Add(points[l].Mul(protocol.LagrangeCoefficient(l, base)))
	}

	for _, k := range indices[session.Parameters.Threshold:] {
		var expected eckey.Point
		for _, l := range base {
			expected = expected.Add(points[l].Mul(protocol.LagrangeAt(l, base, k)))
		}
		if !expected.Equal(points[k]) {
			return eckey.Point{}, protocol.NewAbort(k, protocol.FaultInconsistentPolynomial, "committed point is off the polynomial")
		}
	}

	if pk.IsIdentity() {
		return eckey.Point{}, protocol.NewAbort(session.PartyIndex, protocol.FaultDegenerateValue, "public key is the identity")
	}
	return pk, nil
}

func verifyZeroShares(session *protocol.SessionData, in *Phase4Input) ([]zeroshare.SeedPair, error) {
	me := session.PartyIndex

	commitments := make(map[uint8]TransmitInitZeroSharePhase2to4)
	for _, m := range in.ZeroReceivedPhase2 {
		if err := checkAddressed(session, m.Parties); err != nil {
			return nil, err
		}
		if _, dup := commitments[m.Parties.Sender]; dup {
			return nil, protocol.NewAbort(m.Parties.Sender, protocol.FaultMalformedMessage, "duplicate zero-share commitment")
		}
		commitments[m.Parties.Sender] = m
	}

	reveals := make(map[uint8]TransmitInitZeroSharePhase3to4)
	for _, m := range in.ZeroReceivedPhase3 {
		if err := checkAddressed(session, m.Parties); err != nil {
			return nil, err
		}
		if _, dup := reveals[m.Parties.Sender]; dup {
			return nil, protocol.NewAbort(m.Parties.Sender, protocol.FaultMalformedMessage, "duplicate zero-share reveal")
		}
		reveals[m.Parties.Sender] = m
	}

	var seeds []zeroshare.SeedPair
	for _, j := range session.Counterparties() {
		c, ok := commitments[j]
		if !ok {
			return nil, protocol.NewAbort(j, protocol.FaultMissingMessages, "no zero-share commitment")
		}
		r, ok := reveals[j]
		if !ok {
			return nil, protocol.NewAbort(j, protocol.FaultMissingMessages, "no zero-share reveal")
		}
		if err := VerifyZeroShareReveal(c, r); err != nil {
			return nil, err
		}
		seeds = append(seeds, zeroshare.NewSeedPair(me, j, in.ZeroKept[j].Seed, r.Seed))
	}
	return seeds, nil
}

func verifyChainCodes(session *protocol.SessionData, in *Phase4Input) (protocol.ChainCode, error) {
	commitments := make(map[uint8]BroadcastDerivationPhase2to4)
	for _, b := range in.BipReceivedPhase2 {
		if _, dup := commitments[b.SenderIndex]; dup {
			return protocol.ChainCode{}, protocol.NewAbort(b.SenderIndex, protocol.FaultMalformedMessage, "duplicate chain-code commitment")
		}
		commitments[b.SenderIndex] = b
	}
	reveals := make(map[uint8]BroadcastDerivationPhase3to4)
	for _, b := range in.BipReceivedPhase3 {
		if _, dup := reveals[b.SenderIndex]; dup {
			return protocol.ChainCode{}, protocol.NewAbort(b.SenderIndex, protocol.FaultMalformedMessage, "duplicate chain-code reveal")
		}
		reveals[b.SenderIndex] = b
	}

	parts := [][]byte{[]byte("dkg-joint-chain-code")}
	for _, idx := range session.Parameters.Indices() {
		c, ok := commitments[idx]
		if !ok {
			return protocol.ChainCode{}, protocol.NewAbort(idx, protocol.FaultMissingMessages, "no chain-code commitment")
		}
		r, ok := reveals[idx]
		if !ok {
			return protocol.ChainCode{}, protocol.NewAbort(idx, protocol.FaultMissingMessages, "no chain-code reveal")
		}
		if err := VerifyChainCodeReveal(c, r); err != nil {
			return protocol.ChainCode{}, err
		}
		aux := r.AuxChainCode
		parts = append(parts, aux[:])
	}
	return protocol.ChainCode(proofs.Hash(parts...)), nil
}

type otResult struct {
	sender   *ot.SenderSetup
	receiver *ot.ReceiverSetup
	abort    *protocol.Abort
}

// finalizeOT completes the base OTs with every counterparty. The work per
// counterparty is independent and runs concurrently; failures are reported
// for the lowest index so that the outcome does not depend on scheduling.
func finalizeOT(session *protocol.SessionData, in *Phase4Input) (map[uint8]*ot.SenderSetup, map[uint8]*ot.ReceiverSetup, error) {
	me := session.PartyIndex

	received := make(map[uint8]TransmitInitMulPhase3to4)
	for _, m := range in.MulReceived {
		if err := checkAddressed(session, m.Parties); err != nil {
			return nil, nil, err
		}
		if _, dup := received[m.Parties.Sender]; dup {
			return nil, nil, protocol.NewAbort(m.Parties.Sender, protocol.FaultMalformedMessage, "duplicate OT init")
		}
		received[m.Parties.Sender] = m
	}

	counterparties := session.Counterparties()
	for _, j := range counterparties {
		if _, ok := received[j]; !ok {
			return nil, nil, protocol.NewAbort(j, protocol.FaultMissingMessages, "no OT init")
		}
	}

	results := make([]otResult, len(counterparties))
	var g errgroup.Group
	for k, j := range counterparties {
		k, j := k, j
		g.Go(func() error {
			results[k] = finalizeOTWith(session, j, in.MulKept[j], received[j])
			return nil
		})
	}
	_ = g.Wait()

	senders := make(map[uint8]*ot.SenderSetup, len(counterparties))
	receivers := make(map[uint8]*ot.ReceiverSetup, len(counterparties))
	for k, j := range counterparties {
		if results[k].abort != nil {
			return nil, nil, results[k].abort
		}
		senders[j] = results[k].sender
		receivers[j] = results[k].receiver
	}

	for _, j := range counterparties {
		in.MulKept[j].BaseReceiver.Zeroize()
		in.MulKept[j].BaseSender.Secret.Zeroize()
	}
	zap.L().Named("dkg").Debug("base OT finalized", zap.Uint8("party", me), zap.Int("counterparties", len(counterparties)))
	return senders, receivers, nil
}

func finalizeOTWith(session *protocol.SessionData, j uint8, kept *KeepInitMulPhase3to4, msg TransmitInitMulPhase3to4) otResult {
	me := session.PartyIndex
	if kept.BaseSender == nil || kept.BaseReceiver == nil {
		return otResult{abort: protocol.NewAbort(me, protocol.FaultMalformedMessage, "incomplete OT keep state for %d", j)}
	}

	// j sends multiplications to us: we were the base OT sender.
	seeds0, seeds1, err := kept.BaseSender.Seeds(otSID(session, j, me), msg.ReceiverPoints)
	if err != nil {
		return otResult{abort: protocol.NewAbort(j, protocol.FaultMalformedMessage, "base OT points: %v", err)}
	}

	// we send multiplications to j: we were the base OT receiver.
	if msg.SenderProof == nil {
		return otResult{abort: protocol.NewAbort(j, protocol.FaultMalformedMessage, "no base OT sender proof")}
	}
	seeds, err := kept.BaseReceiver.Seeds(otSID(session, me, j), msg.SenderProof)
	if err != nil {
		return otResult{abort: protocol.NewAbort(j, protocol.FaultInvalidProof, "base OT sender proof: %v", err)}
	}

	return otResult{
		sender:   &ot.SenderSetup{Correlation: kept.BaseReceiver.Choices, Seeds: seeds},
		receiver: &ot.ReceiverSetup{Seeds0: seeds0, Seeds1: seeds1},
	}
}

func checkAddressed(session *protocol.SessionData, parties protocol.PartiesMessage) error {
	if err := parties.Validate(session.Parameters); err != nil {
		return err
	}
	if parties.Receiver != session.PartyIndex {
		return errors.Wrapf(protocol.ErrInvalidInput, "message for %d delivered to %d", parties.Receiver, session.PartyIndex)
	}
	return nil
}
