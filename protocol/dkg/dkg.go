// Package dkg implements the four-phase distributed key generation. Each
// phase is a pure function of the session, the state kept from the previous
// phase, the messages received and an injected randomness source.
//
// Phase 1 samples a polynomial and returns its evaluations. Phase 2 sums the
// received evaluations into this party's point and commits to a proof for it,
// to zero-sharing seeds and to a chain-code contribution. Phase 3 reveals the
// committed values and starts the base OTs with every counterparty. Phase 4
// verifies everything in a fixed order and finalizes the Party.
package dkg

import (
	"io"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/ot"
	"github.com/chain5j/chain5j-dkls/proofs"
	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/zeroshare"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Phase1 samples a random polynomial of degree t-1 and returns its value at
// every party index; fragment k-1 is sent to party k.
func Phase1(session *protocol.SessionData, rand io.Reader) ([]eckey.Scalar, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}

	coeffs := make([]eckey.Scalar, session.Parameters.Threshold)
	for k := range coeffs {
		c, err := eckey.RandomScalar(rand)
		if err != nil {
			return nil, err
		}
		coeffs[k] = c
	}

	fragments := make([]eckey.Scalar, session.Parameters.ShareCount)
	for k, idx := range session.Parameters.Indices() {
		fragments[k] = protocol.EvalPolynomial(coeffs, idx)
	}

	for k := range coeffs {
		coeffs[k].Zeroize()
	}

	zap.L().Named("dkg").Debug("phase 1 done", zap.Uint8("party", session.PartyIndex))
	return fragments, nil
}

// Phase2 takes the fragments addressed to this party, one from every party
// ordered by sender index.
func Phase2(session *protocol.SessionData, fragments []eckey.Scalar, rand io.Reader) (*Phase2Output, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if len(fragments) != int(session.Parameters.ShareCount) {
		return nil, errors.Wrapf(protocol.ErrInvalidInput, "got %d fragments", len(fragments))
	}

	var polyPoint eckey.Scalar
	for _, f := range fragments {
		polyPoint = polyPoint.Add(f)
	}

	proof, commitment, err := proofs.ProveCommit(rand, polyPoint, dlogSID(session, session.PartyIndex), session.ProofParams())
	if err != nil {
		return nil, err
	}

	out := &Phase2Output{
		PolyPoint: polyPoint,
		ProofCommitment: ProofCommitment{
			Index:      session.PartyIndex,
			Proof:      proof,
			Commitment: commitment,
		},
		ZeroKeep: make(map[uint8]*KeepInitZeroSharePhase2to3),
	}

	for _, j := range session.Counterparties() {
		seed, commitment, salt, err := zeroshare.GenerateSeedWithCommitment(rand)
		if err != nil {
			return nil, err
		}

		out.ZeroKeep[j] = &KeepInitZeroSharePhase2to3{Seed: seed, Salt: salt}
		out.ZeroTransmit = append(out.ZeroTransmit, TransmitInitZeroSharePhase2to4{
			Parties:    protocol.PartiesMessage{Sender: session.PartyIndex, Receiver: j},
			Commitment: commitment,
		})
	}

	var aux protocol.ChainCode
	if _, err := io.ReadFull(rand, aux[:]); err != nil {
		return nil, errors.Wrap(err, "dkg: read chain code")
	}
	ccCommitment, ccSalt, err := proofs.Commit(rand, chainCodeParts(session.PartyIndex, aux)...)
	if err != nil {
		return nil, err
	}

	out.BipKeep = &UniqueKeepDerivationPhase2to3{AuxChainCode: aux, CCSalt: ccSalt}
	out.BipBroadcast = BroadcastDerivationPhase2to4{SenderIndex: session.PartyIndex, CCCommitment: ccCommitment}

	zap.L().Named("dkg").Debug("phase 2 done", zap.Uint8("party", session.PartyIndex))
	return out, nil
}

// Phase3 reveals the zero-sharing seeds and the chain-code contribution, and
// runs the first message of the base OTs in both directions with every
// counterparty.
func Phase3(session *protocol.SessionData, zeroKept map[uint8]*KeepInitZeroSharePhase2to3, bipKept *UniqueKeepDerivationPhase2to3, rand io.Reader) (*Phase3Output, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if bipKept == nil {
		return nil, errors.Wrap(protocol.ErrInvalidInput, "missing chain-code keep state")
	}

	counterparties := session.Counterparties()
	for _, j := range counterparties {
		if zeroKept[j] == nil {
			return nil, errors.Wrapf(protocol.ErrInvalidInput, "missing zero-share keep state for %d", j)
		}
	}
	if len(zeroKept) != len(counterparties) {
		return nil, errors.Wrap(protocol.ErrInvalidInput, "unexpected zero-share keep state")
	}

	out := &Phase3Output{
		ZeroKeep: make(map[uint8]*KeepInitZeroSharePhase3to4),
		MulKeep:  make(map[uint8]*KeepInitMulPhase3to4),
		BipBroadcast: BroadcastDerivationPhase3to4{
			SenderIndex:  session.PartyIndex,
			AuxChainCode: bipKept.AuxChainCode,
			CCSalt:       bipKept.CCSalt,
		},
	}

	for _, j := range counterparties {
		kept := zeroKept[j]
		parties := protocol.PartiesMessage{Sender: session.PartyIndex, Receiver: j}

		out.ZeroKeep[j] = &KeepInitZeroSharePhase3to4{Seed: kept.Seed}
		out.ZeroTransmit = append(out.ZeroTransmit, TransmitInitZeroSharePhase3to4{
			Parties: parties,
			Seed:    kept.Seed,
			Salt:    kept.Salt,
		})

		baseSender, proof, err := ot.NewBaseSender(rand, otSID(session, j, session.PartyIndex))
		if err != nil {
			return nil, err
		}

		var correlation ot.Block
		if _, err := io.ReadFull(rand, correlation[:]); err != nil {
			return nil, errors.Wrap(err, "dkg: read correlation")
		}
		baseReceiver, points, err := ot.NewBaseReceiver(rand, otSID(session, session.PartyIndex, j), correlation)
		if err != nil {
			return nil, err
		}

		out.MulKeep[j] = &KeepInitMulPhase3to4{BaseSender: baseSender, BaseReceiver: baseReceiver}
		out.MulTransmit = append(out.MulTransmit, TransmitInitMulPhase3to4{
			Parties:        parties,
			SenderProof:    proof,
			ReceiverPoints: points,
		})
	}

	zap.L().Named("dkg").Debug("phase 3 done", zap.Uint8("party", session.PartyIndex))
	return out, nil
}

// dlogSID binds the poly point proof of party idx to the session.
func dlogSID(session *protocol.SessionData, idx uint8) []byte {
	d := proofs.Hash([]byte("dkg-poly-point"), session.SessionID, []byte{idx})
	return d[:]
}

// otSID names the base OT run for multiplications sent by sender to receiver.
func otSID(session *protocol.SessionData, sender, receiver uint8) []byte {
	d := proofs.Hash([]byte("dkg-ot"), session.SessionID, []byte{sender, receiver})
	return d[:]
}

func chainCodeParts(idx uint8, aux protocol.ChainCode) [][]byte {
	return [][]byte{[]byte("dkg-chain-code"), {idx}, aux[:]}
}
