package session

import (
	"context"
	"encoding/hex"

	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/protocol/signing"
	"github.com/chain5j/chain5j-dkls/wire"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	phaseSign1 = "sign/1"
	phaseSign2 = "sign/2"
	phaseSign3 = "sign/3"
)

// RunSign runs one signing session for party with the counterparties named in
// data. It returns the signature and its recovery id.
func (r *Runner) RunSign(ctx context.Context, party *protocol.Party, data *signing.SignData, normalize bool) (*signing.Signature, byte, error) {
	if party == nil || data == nil {
		return nil, 0, errors.Wrap(protocol.ErrInvalidInput, "nil party or sign data")
	}
	if err := r.checkIndex(party.PartyIndex); err != nil {
		return nil, 0, err
	}

	me := party.PartyIndex
	sid := data.SignID
	rand := r.rand()

	out1, err := signing.Phase1(party, data, rand)
	if err != nil {
		return nil, 0, err
	}

	others := sortedCopy(data.Counterparties)
	log := r.logger().With(zap.Uint8("party", me), zap.String("sign_id", hex.EncodeToString(sid[:4])))
	log.Info("signing started", zap.Uint8s("counterparties", others))

	for _, m := range out1.Transmit {
		if err := r.send(ctx, sid, wire.KindSignPhase1, phaseSign1, m.Parties.Receiver, m); err != nil {
			return nil, 0, err
		}
	}

	envs, err := r.collect(ctx, sid, phaseSign1, others, false)
	if err != nil {
		return nil, 0, r.failed(log, err)
	}
	received1 := make([]signing.TransmitPhase1to2, 0, len(others))
	for _, j := range others {
		var m signing.TransmitPhase1to2
		if err := open(envs[j], wire.KindSignPhase1, &m); err != nil {
			return nil, 0, r.failed(log, err)
		}
		received1 = append(received1, m)
	}

	out2, err := signing.Phase2(party, data, out1.UniqueKeep, out1.Keep, received1, rand)
	if err != nil {
		return nil, 0, r.failed(log, err)
	}
	log.Debug("signing phase 2 done")

	for _, m := range out2.Transmit {
		if err := r.send(ctx, sid, wire.KindSignPhase2, phaseSign2, m.Parties.Receiver, m); err != nil {
			return nil, 0, err
		}
	}

	if envs, err = r.collect(ctx, sid, phaseSign2, others, false); err != nil {
		return nil, 0, r.failed(log, err)
	}
	received2 := make([]signing.TransmitPhase2to3, 0, len(others))
	for _, j := range others {
		var m signing.TransmitPhase2to3
		if err := open(envs[j], wire.KindSignPhase2, &m); err != nil {
			return nil, 0, r.failed(log, err)
		}
		received2 = append(received2, m)
	}

	out3, err := signing.Phase3(party, data, out2.UniqueKeep, out2.Keep, received2)
	if err != nil {
		return nil, 0, r.failed(log, err)
	}
	log.Debug("signing phase 3 done", zap.Stringer("x_coord", out3.XCoord))

	if err := r.broadcast(ctx, sid, wire.KindSignPhase3, phaseSign3, others, out3.Broadcast); err != nil {
		return nil, 0, err
	}

	if envs, err = r.collect(ctx, sid, phaseSign3, others, true); err != nil {
		return nil, 0, r.failed(log, err)
	}
	received3 := []signing.Broadcast3to4{out3.Broadcast}
	for _, j := range others {
		var b signing.Broadcast3to4
		if err := open(envs[j], wire.KindSignPhase3, &b); err != nil {
			return nil, 0, r.failed(log, err)
		}
		received3 = append(received3, b)
	}

	sig, recid, err := signing.Phase4(party, data, out3.XCoord, received3, normalize)
	if err != nil {
		return nil, 0, r.failed(log, err)
	}

	log.Info("signing done", zap.Uint8("recovery_id", recid))
	return sig, recid, nil
}
