// Package signing implements the four-phase threshold signing protocol run by
// exactly threshold parties holding shares from package dkg.
//
// Every party samples an instance key r_i and an inversion mask phi_i. The
// pairwise OT multiplications give additive shares of r*phi and sk*phi, where
// r and sk are the sums of the instance keys and of the Lagrange-weighted key
// shares. With the x coordinate of R = r*G each party publishes its shares of
// phi*r and phi*(H(m) + x*sk), and their quotient is the ECDSA s.
package signing

import (
	"bytes"
	"io"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/mul"
	"github.com/chain5j/chain5j-dkls/ot"
	"github.com/chain5j/chain5j-dkls/proofs"
	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Phase1 samples the instance key, instance point and inversion mask, commits
// to the instance point and starts one multiplication with every counterparty
// in which this party is the receiver.
func Phase1(party *protocol.Party, data *SignData, rand io.Reader) (*Phase1Output, error) {
	executing, err := validate(party, data)
	if err != nil {
		return nil, err
	}
	me := party.PartyIndex

	instanceKey, err := eckey.RandomScalar(rand)
	if err != nil {
		return nil, err
	}
	inversionMask, err := eckey.RandomScalar(rand)
	if err != nil {
		return nil, err
	}
	instancePoint := eckey.ScalarBaseMult(instanceKey)

	out := &Phase1Output{
		UniqueKeep: &UniqueKeep1to2{
			SignID:        append([]byte(nil), data.SignID...),
			InstanceKey:   instanceKey,
			InstancePoint: instancePoint,
			InversionMask: inversionMask,
			Zeta:          party.ZeroShare.Compute(zeroSID(party, data), executing),
		},
		Keep: make(map[uint8]*KeepPhase1to2),
	}

	for _, j := range data.sortedCounterparties() {
		commitment, salt, err := proofs.Commit(rand, instanceParts(party, data, me, instancePoint)...)
		if err != nil {
			return nil, err
		}

		chi, mulKeep, msg, err := mul.ReceiverInit(rand, party.MulReceivers[j], mulSID(party, data, j, me))
		if err != nil {
			return nil, err
		}

		out.Keep[j] = &KeepPhase1to2{Salt: salt, Chi: chi, MulKeep: mulKeep}
		out.Transmit = append(out.Transmit, TransmitPhase1to2{
			Parties:     protocol.PartiesMessage{Sender: me, Receiver: j},
			Commitment:  commitment,
			MulTransmit: msg,
		})
	}

	zap.L().Named("signing").Debug("phase 1 done", zap.Uint8("party", me))
	return out, nil
}

// Phase2 computes this party's key share for the executing set and acts as
// the multiplication sender towards every counterparty, with inputs
// (instance key, key share).
func Phase2(party *protocol.Party, data *SignData, uniqueKept *UniqueKeep1to2, kept map[uint8]*KeepPhase1to2, received []TransmitPhase1to2, rand io.Reader) (*Phase2Output, error) {
	executing, err := validate(party, data)
	if err != nil {
		return nil, err
	}
	if uniqueKept == nil {
		return nil, errors.Wrap(protocol.ErrInvalidInput, "missing unique keep state")
	}
	if err := checkKeep(data, uniqueKept.SignID, uniqueKept.InstanceKey); err != nil {
		return nil, err
	}
	// consumed by this call whatever its outcome
	defer uniqueKept.wipe()
	me := party.PartyIndex
	counterparties := data.sortedCounterparties()

	for _, j := range counterparties {
		if kept[j] == nil || kept[j].MulKeep == nil {
			return nil, errors.Wrapf(protocol.ErrInvalidInput, "missing phase 1 keep state for %d", j)
		}
	}

	byParty, err := indexPhase1(party, counterparties, received)
	if err != nil {
		return nil, err
	}

	keyShare := protocol.LagrangeCoefficient(me, executing).Mul(party.PolyPoint).Add(uniqueKept.Zeta)
	publicShare := eckey.ScalarBaseMult(keyShare)

	out := &Phase2Output{
		UniqueKeep: &UniqueKeep2to3{
			SignID:        append([]byte(nil), data.SignID...),
			InstanceKey:   uniqueKept.InstanceKey,
			InstancePoint: uniqueKept.InstancePoint,
			InversionMask: uniqueKept.InversionMask,
			KeyShare:      keyShare,
			PublicShare:   publicShare,
		},
		Keep: make(map[uint8]*KeepPhase2to3),
	}

	for _, j := range counterparties {
		msg := byParty[j]

		inputs := [mul.BatchSize]eckey.Scalar{uniqueKept.InstanceKey, keyShare}
		shares, reply, err := mul.Send(rand, party.MulSenders[j], mulSID(party, data, me, j), inputs, msg.MulTransmit)
		switch errors.Cause(err) {
		case nil:
		case ot.ErrInvalidExtension:
			return nil, protocol.NewAbort(j, protocol.FaultInvalidOTExtension, "OT extension check failed")
		case ot.ErrMalformedExtMsg:
			return nil, protocol.NewAbort(j, protocol.FaultInconsistentMultiplication, "malformed OT extension message")
		default:
			return nil, err
		}

		out.Keep[j] = &KeepPhase2to3{
			CU:         shares[0],
			CV:         shares[1],
			Commitment: msg.Commitment,
			MulKeep:    kept[j].MulKeep,
			Chi:        kept[j].Chi,
		}
		out.Transmit = append(out.Transmit, TransmitPhase2to3{
			Parties:       protocol.PartiesMessage{Sender: me, Receiver: j},
			GammaU:        eckey.ScalarBaseMult(shares[0]),
			GammaV:        eckey.ScalarBaseMult(shares[1]),
			Psi:           uniqueKept.InversionMask.Sub(kept[j].Chi),
			PublicShare:   publicShare,
			InstancePoint: uniqueKept.InstancePoint,
			Salt:          kept[j].Salt,
			MulTransmit:   reply,
		})
	}

	zap.L().Named("signing").Debug("phase 2 done", zap.Uint8("party", me))
	return out, nil
}

// Phase3 checks the counterparties' instance points and multiplications,
// computes the x coordinate of the joint instance point and this party's
// shares of the signature numerator and denominator.
func Phase3(party *protocol.Party, data *SignData, uniqueKept *UniqueKeep2to3, kept map[uint8]*KeepPhase2to3, received []TransmitPhase2to3) (*Phase3Output, error) {
	if _, err := validate(party, data); err != nil {
		return nil, err
	}
	if uniqueKept == nil {
		return nil, errors.Wrap(protocol.ErrInvalidInput, "missing unique keep state")
	}
	if err := checkKeep(data, uniqueKept.SignID, uniqueKept.InstanceKey); err != nil {
		return nil, err
	}
	// consumed by this call whatever its outcome
	defer uniqueKept.wipe()
	me := party.PartyIndex
	counterparties := data.sortedCounterparties()

	for _, j := range counterparties {
		if kept[j] == nil || kept[j].MulKeep == nil {
			return nil, errors.Wrapf(protocol.ErrInvalidInput, "missing phase 2 keep state for %d", j)
		}
	}

	byParty, err := indexPhase2(party, counterparties, received)
	if err != nil {
		return nil, err
	}

	r := uniqueKept.InstanceKey
	phi := uniqueKept.InversionMask
	sk := uniqueKept.KeyShare

	instancePoint := uniqueKept.InstancePoint
	publicKey := uniqueKept.PublicShare
	u := r.Mul(phi)
	v := sk.Mul(phi)

	for _, j := range counterparties {
		msg := byParty[j]
		k := kept[j]

		if err := k.Commitment.Verify(msg.Salt, instanceParts(party, data, j, msg.InstancePoint)...); err != nil {
			return nil, protocol.NewAbort(j, protocol.FaultCommitmentMismatch, "commitment mismatch on instance point")
		}

		d, err := mul.ReceiverFinalize(mulSID(party, data, j, me), k.MulKeep, msg.MulTransmit)
		if err != nil {
			return nil, protocol.NewAbort(j, protocol.FaultInconsistentMultiplication, "multiplication check: %v", err)
		}

		if !msg.InstancePoint.Mul(k.Chi).Sub(eckey.ScalarBaseMult(d[0])).Equal(msg.GammaU) {
			return nil, protocol.NewAbort(j, protocol.FaultInconsistentMultiplication, "instance key multiplication does not match gamma_u")
		}
		if !msg.PublicShare.Mul(k.Chi).Sub(eckey.ScalarBaseMult(d[1])).Equal(msg.GammaV) {
			return nil, protocol.NewAbort(j, protocol.FaultInconsistentMultiplication, "key share multiplication does not match gamma_v")
		}

		instancePoint = instancePoint.Add(msg.InstancePoint)
		publicKey = publicKey.Add(msg.PublicShare)

		u = u.Add(k.CU).Add(r.Mul(msg.Psi)).Add(d[0])
		v = v.Add(k.CV).Add(sk.Mul(msg.Psi)).Add(d[1])

		k.MulKeep.Zeroize()
	}

	if !publicKey.Equal(party.PublicKey) {
		return nil, protocol.NewAbort(me, protocol.FaultPublicKeyMismatch, "public shares do not sum to the public key")
	}
	if instancePoint.IsIdentity() {
		return nil, protocol.NewAbort(me, protocol.FaultDegenerateValue, "joint instance point is the identity")
	}

	xCoord, _ := instancePoint.XScalar()
	if xCoord.IsZero() {
		return nil, protocol.NewAbort(me, protocol.FaultDegenerateValue, "x coordinate is zero")
	}

	digest := eckey.ScalarFromDigest(data.MessageHash[:])
	w := digest.Mul(phi).Add(xCoord.Mul(v))

	zap.L().Named("signing").Debug("phase 3 done", zap.Uint8("party", me), zap.Stringer("x_coord", xCoord))
	return &Phase3Output{
		XCoord: xCoord,
		Broadcast: Broadcast3to4{
			SenderIndex: me,
			U:           u,
			W:           w,
		},
	}, nil
}

// Phase4 combines the broadcasts of every executing party, this party's own
// included, into the signature and its recovery id. With normalize set, s is
// mapped to the lower half of the scalar field and the recovery id flipped.
func Phase4(party *protocol.Party, data *SignData, xCoord eckey.Scalar, received []Broadcast3to4, normalize bool) (*Signature, byte, error) {
	executing, err := validate(party, data)
	if err != nil {
		return nil, 0, err
	}
	if xCoord.IsZero() {
		return nil, 0, errors.Wrap(protocol.ErrInvalidInput, "zero x coordinate")
	}

	byParty := make(map[uint8]Broadcast3to4, len(received))
	for _, b := range received {
		if !contains(executing, b.SenderIndex) {
			return nil, 0, errors.Wrapf(protocol.ErrInvalidInput, "broadcast from non-executing party %d", b.SenderIndex)
		}
		if _, dup := byParty[b.SenderIndex]; dup {
			return nil, 0, protocol.NewAbort(b.SenderIndex, protocol.FaultMalformedMessage, "duplicate broadcast")
		}
		byParty[b.SenderIndex] = b
	}

	var numerator, denominator eckey.Scalar
	for _, idx := range executing {
		b, ok := byParty[idx]
		if !ok {
			return nil, 0, protocol.NewAbort(idx, protocol.FaultMissingMessages, "no phase 3 broadcast")
		}
		numerator = numerator.Add(b.W)
		denominator = denominator.Add(b.U)
	}

	if denominator.IsZero() {
		return nil, 0, protocol.NewAbort(party.PartyIndex, protocol.FaultDegenerateValue, "signature denominator is zero")
	}

	sig := &Signature{R: xCoord, S: numerator.Mul(denominator.Inverse())}
	if sig.S.IsZero() {
		return nil, 0, protocol.NewAbort(party.PartyIndex, protocol.FaultDegenerateValue, "s is zero")
	}

	recid, ok := recoveryID(data.MessageHash, party.PublicKey, sig)
	if !ok || !VerifyEcdsaSignature(data.MessageHash, party.PublicKey, sig.R, sig.S) {
		return nil, 0, protocol.NewAbort(party.PartyIndex, protocol.FaultInvalidSignature, "signature does not verify under the public key")
	}

	if normalize && sig.S.IsOverHalfOrder() {
		sig.S = sig.S.Negate()
		recid ^= 1
	}

	zap.L().Named("signing").Debug("phase 4 done", zap.Uint8("party", party.PartyIndex), zap.Uint8("recovery_id", recid))
	return sig, recid, nil
}

func validate(party *protocol.Party, data *SignData) ([]uint8, error) {
	if err := party.Validate(); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.Wrap(protocol.ErrInvalidInput, "nil sign data")
	}
	if len(data.SignID) != protocol.SessionIDSize {
		return nil, errors.Wrapf(protocol.ErrInvalidInput, "sign id has %d bytes", len(data.SignID))
	}
	if len(data.Counterparties) != int(party.Parameters.Threshold)-1 {
		return nil, errors.Wrapf(protocol.ErrInvalidInput, "%d counterparties for threshold %d", len(data.Counterparties), party.Parameters.Threshold)
	}

	for _, j := range data.Counterparties {
		if j == party.PartyIndex {
			return nil, errors.Wrap(protocol.ErrInvalidInput, "party listed as its own counterparty")
		}
		if err := party.Parameters.ValidateIndex(j); err != nil {
			return nil, err
		}
	}

	return protocol.SortedUnique(append([]uint8{party.PartyIndex}, data.Counterparties...))
}

// checkKeep rejects keep state of another session, and keep state already
// consumed by a previous call, whose instance key was wiped.
func checkKeep(data *SignData, signID []byte, instanceKey eckey.Scalar) error {
	if instanceKey.IsZero() {
		return protocol.ErrKeepConsumed
	}
	if !bytes.Equal(signID, data.SignID) {
		return protocol.ErrSessionMismatch
	}
	return nil
}

func indexPhase1(party *protocol.Party, counterparties []uint8, received []TransmitPhase1to2) (map[uint8]TransmitPhase1to2, error) {
	out := make(map[uint8]TransmitPhase1to2, len(received))
	for _, m := range received {
		if err := checkAddressed(party, counterparties, m.Parties); err != nil {
			return nil, err
		}
		if _, dup := out[m.Parties.Sender]; dup {
			return nil, protocol.NewAbort(m.Parties.Sender, protocol.FaultMalformedMessage, "duplicate phase 1 message")
		}
		out[m.Parties.Sender] = m
	}
	for _, j := range counterparties {
		if _, ok := out[j]; !ok {
			return nil, protocol.NewAbort(j, protocol.FaultMissingMessages, "no phase 1 message")
		}
	}
	return out, nil
}

func indexPhase2(party *protocol.Party, counterparties []uint8, received []TransmitPhase2to3) (map[uint8]TransmitPhase2to3, error) {
	out := make(map[uint8]TransmitPhase2to3, len(received))
	for _, m := range received {
		if err := checkAddressed(party, counterparties, m.Parties); err != nil {
			return nil, err
		}
		if _, dup := out[m.Parties.Sender]; dup {
			return nil, protocol.NewAbort(m.Parties.Sender, protocol.FaultMalformedMessage, "duplicate phase 2 message")
		}
		out[m.Parties.Sender] = m
	}
	for _, j := range counterparties {
		if _, ok := out[j]; !ok {
			return nil, protocol.NewAbort(j, protocol.FaultMissingMessages, "no phase 2 message")
		}
	}
	return out, nil
}

func checkAddressed(party *protocol.Party, counterparties []uint8, parties protocol.PartiesMessage) error {
	if parties.Receiver != party.PartyIndex {
		return errors.Wrapf(protocol.ErrInvalidInput, "message for %d delivered to %d", parties.Receiver, party.PartyIndex)
	}
	if !contains(counterparties, parties.Sender) {
		return errors.Wrapf(protocol.ErrInvalidInput, "message from non-executing party %d", parties.Sender)
	}
	return nil
}

func (d *SignData) sortedCounterparties() []uint8 {
	out, _ := protocol.SortedUnique(d.Counterparties)
	return out
}

func contains(set []uint8, idx uint8) bool {
	for _, v := range set {
		if v == idx {
			return true
		}
	}
	return false
}

// mulSID names the multiplication in which sender sends to receiver.
func mulSID(party *protocol.Party, data *SignData, sender, receiver uint8) []byte {
	d := proofs.Hash([]byte("sign-mul"), party.SessionID, data.SignID, []byte{sender, receiver})
	return d[:]
}

func zeroSID(party *protocol.Party, data *SignData) []byte {
	d := proofs.Hash([]byte("sign-zero-share"), party.SessionID, data.SignID)
	return d[:]
}

func instanceParts(party *protocol.Party, data *SignData, idx uint8, p eckey.Point) [][]byte {
	pb := p.Bytes()
	return [][]byte{[]byte("sign-instance-point"), party.SessionID, data.SignID, {idx}, pb[:]}
}
