package session

import (
	"context"
	"encoding/hex"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/protocol/dkg"
	"github.com/chain5j/chain5j-dkls/wire"
	"go.uber.org/zap"
)

const (
	phaseDKGFragment   = "dkg/1/fragment"
	phaseDKGProof      = "dkg/2/proof"
	phaseDKGZeroCommit = "dkg/2/zero"
	phaseDKGChainComm  = "dkg/2/chain"
	phaseDKGZeroReveal = "dkg/3/zero"
	phaseDKGChainRev   = "dkg/3/chain"
	phaseDKGMulInit    = "dkg/3/mul"
)

// RunDKG runs the distributed key generation for session.PartyIndex and
// returns its Party.
func (r *Runner) RunDKG(ctx context.Context, session *protocol.SessionData) (*protocol.Party, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if err := r.checkIndex(session.PartyIndex); err != nil {
		return nil, err
	}

	me := session.PartyIndex
	sid := session.SessionID
	others := session.Counterparties()
	rand := r.rand()
	log := r.logger().With(zap.Uint8("party", me), zap.String("session", hex.EncodeToString(sid[:4])))
	log.Info("dkg started", zap.Uint8("threshold", session.Parameters.Threshold), zap.Uint8("share_count", session.Parameters.ShareCount))

	// phase 1
	fragments, err := dkg.Phase1(session, rand)
	if err != nil {
		return nil, err
	}
	for _, j := range others {
		if err := r.send(ctx, sid, wire.KindDKGFragment, phaseDKGFragment, j, fragments[j-1]); err != nil {
			return nil, err
		}
	}

	envs, err := r.collect(ctx, sid, phaseDKGFragment, others, false)
	if err != nil {
		return nil, r.failed(log, err)
	}
	received := make([]eckey.Scalar, session.Parameters.ShareCount)
	received[me-1] = fragments[me-1]
	for _, j := range others {
		if err := open(envs[j], wire.KindDKGFragment, &received[j-1]); err != nil {
			return nil, r.failed(log, err)
		}
	}
	for k := range fragments {
		fragments[k].Zeroize()
	}

	// phase 2
	out2, err := dkg.Phase2(session, received, rand)
	for k := range received {
		received[k].Zeroize()
	}
	if err != nil {
		return nil, err
	}
	log.Debug("dkg phase 2 done")

	if err := r.broadcast(ctx, sid, wire.KindDKGProofCommitment, phaseDKGProof, others, out2.ProofCommitment); err != nil {
		return nil, err
	}
	if err := r.broadcast(ctx, sid, wire.KindDKGChainCommitment, phaseDKGChainComm, others, out2.BipBroadcast); err != nil {
		return nil, err
	}
	for _, m := range out2.ZeroTransmit {
		if err := r.send(ctx, sid, wire.KindDKGZeroCommitment, phaseDKGZeroCommit, m.Parties.Receiver, m); err != nil {
			return nil, err
		}
	}

	in := &dkg.Phase4Input{
		PolyPoint:         out2.PolyPoint,
		ProofsCommitments: []dkg.ProofCommitment{out2.ProofCommitment},
		BipReceivedPhase2: []dkg.BroadcastDerivationPhase2to4{out2.BipBroadcast},
	}

	if envs, err = r.collect(ctx, sid, phaseDKGProof, others, true); err != nil {
		return nil, r.failed(log, err)
	}
	for _, j := range others {
		var pc dkg.ProofCommitment
		if err := open(envs[j], wire.KindDKGProofCommitment, &pc); err != nil {
			return nil, r.failed(log, err)
		}
		in.ProofsCommitments = append(in.ProofsCommitments, pc)
	}

	if envs, err = r.collect(ctx, sid, phaseDKGChainComm, others, true); err != nil {
		return nil, r.failed(log, err)
	}
	chainCommitments := make(map[uint8]dkg.BroadcastDerivationPhase2to4, len(others)+1)
	chainCommitments[me] = out2.BipBroadcast
	for _, j := range others {
		var b dkg.BroadcastDerivationPhase2to4
		if err := open(envs[j], wire.KindDKGChainCommitment, &b); err != nil {
			return nil, r.failed(log, err)
		}
		chainCommitments[j] = b
		in.BipReceivedPhase2 = append(in.BipReceivedPhase2, b)
	}

	if envs, err = r.collect(ctx, sid, phaseDKGZeroCommit, others, false); err != nil {
		return nil, r.failed(log, err)
	}
	zeroCommitments := make(map[uint8]dkg.TransmitInitZeroSharePhase2to4, len(others))
	for _, j := range others {
		var m dkg.TransmitInitZeroSharePhase2to4
		if err := open(envs[j], wire.KindDKGZeroCommitment, &m); err != nil {
			return nil, r.failed(log, err)
		}
		zeroCommitments[j] = m
		in.ZeroReceivedPhase2 = append(in.ZeroReceivedPhase2, m)
	}

	// phase 3
	out3, err := dkg.Phase3(session, out2.ZeroKeep, out2.BipKeep, rand)
	if err != nil {
		return nil, err
	}
	log.Debug("dkg phase 3 done")

	for _, m := range out3.ZeroTransmit {
		if err := r.send(ctx, sid, wire.KindDKGZeroReveal, phaseDKGZeroReveal, m.Parties.Receiver, m); err != nil {
			return nil, err
		}
	}
	for _, m := range out3.MulTransmit {
		if err := r.send(ctx, sid, wire.KindDKGMulInit, phaseDKGMulInit, m.Parties.Receiver, m); err != nil {
			return nil, err
		}
	}
	if err := r.broadcast(ctx, sid, wire.KindDKGChainReveal, phaseDKGChainRev, others, out3.BipBroadcast); err != nil {
		return nil, err
	}

	in.ZeroKept = out3.ZeroKeep
	in.MulKept = out3.MulKeep
	in.BipReceivedPhase3 = []dkg.BroadcastDerivationPhase3to4{out3.BipBroadcast}

	// Reveals are checked on arrival, ahead of the full check in phase 4.
	if envs, err = r.collect(ctx, sid, phaseDKGZeroReveal, others, false); err != nil {
		return nil, r.failed(log, err)
	}
	for _, j := range others {
		var m dkg.TransmitInitZeroSharePhase3to4
		if err := open(envs[j], wire.KindDKGZeroReveal, &m); err != nil {
			return nil, r.failed(log, err)
		}
		if err := dkg.VerifyZeroShareReveal(zeroCommitments[j], m); err != nil {
			return nil, r.failed(log, err)
		}
		in.ZeroReceivedPhase3 = append(in.ZeroReceivedPhase3, m)
	}

	if envs, err = r.collect(ctx, sid, phaseDKGChainRev, others, true); err != nil {
		return nil, r.failed(log, err)
	}
	for _, j := range others {
		var b dkg.BroadcastDerivationPhase3to4
		if err := open(envs[j], wire.KindDKGChainReveal, &b); err != nil {
			return nil, r.failed(log, err)
		}
		if err := dkg.VerifyChainCodeReveal(chainCommitments[j], b); err != nil {
			return nil, r.failed(log, err)
		}
		in.BipReceivedPhase3 = append(in.BipReceivedPhase3, b)
	}

	if envs, err = r.collect(ctx, sid, phaseDKGMulInit, others, false); err != nil {
		return nil, r.failed(log, err)
	}
	for _, j := range others {
		var m dkg.TransmitInitMulPhase3to4
		if err := open(envs[j], wire.KindDKGMulInit, &m); err != nil {
			return nil, r.failed(log, err)
		}
		in.MulReceived = append(in.MulReceived, m)
	}

	// phase 4
	party, err := dkg.Phase4(session, in)
	if err != nil {
		return nil, r.failed(log, err)
	}

	log.Info("dkg done", zap.Stringer("public_key", party.PublicKey))
	return party, nil
}

// failed logs the end of a run and passes err through.
func (r *Runner) failed(log *zap.Logger, err error) error {
	if a, ok := protocol.AsAbort(err); ok {
		log.Warn("session aborted", zap.Uint8("culprit", a.Index), zap.Stringer("fault", a.Fault))
	} else {
		log.Error("session failed", zap.Error(err))
	}
	return err
}
