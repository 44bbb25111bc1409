// Package simulate runs the protocol phases for every party in one goroutine,
// passing messages directly between them. It is meant for tests and
// benchmarks; real deployments drive the phases through package session.
package simulate

import (
	"io"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/protocol/dkg"
	"github.com/chain5j/chain5j-dkls/protocol/signing"
	"github.com/pkg/errors"
)

// RandFor returns the randomness source of party idx.
type RandFor func(idx uint8) io.Reader

// Observer sees the output of every phase as soon as party idx produced it,
// before any later phase consumes it.
type Observer func(phase string, idx uint8, out interface{})

func (o Observer) see(phase string, idx uint8, out interface{}) {
	if o != nil {
		o(phase, idx, out)
	}
}

// DKGHooks let a caller alter messages in flight.
type DKGHooks struct {
	Observe Observer

	// ZeroReveal may modify the phase 3 zero-share reveal from -> to.
	ZeroReveal func(from, to uint8, m *dkg.TransmitInitZeroSharePhase3to4)
	// ProofCommitment may modify the phase 2 proof broadcast of from.
	ProofCommitment func(from uint8, pc *dkg.ProofCommitment)
}

// DKGResult holds the phase 4 outcome of every party.
type DKGResult struct {
	Parties map[uint8]*protocol.Party
	Errors  map[uint8]error
}

// DKG runs key generation for all parties. An error is returned only when a
// phase before phase 4 fails; phase 4 outcomes are reported per party.
func DKG(params protocol.Parameters, sessionID []byte, randFor RandFor, hooks *DKGHooks) (*DKGResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if hooks == nil {
		hooks = &DKGHooks{}
	}

	indices := params.Indices()
	sessions := make(map[uint8]*protocol.SessionData, len(indices))
	rands := make(map[uint8]io.Reader, len(indices))
	for _, i := range indices {
		sessions[i] = &protocol.SessionData{Parameters: params, PartyIndex: i, SessionID: sessionID}
		rands[i] = randFor(i)
	}

	fragments := make(map[uint8][]eckey.Scalar, len(indices))
	for _, i := range indices {
		f, err := dkg.Phase1(sessions[i], rands[i])
		if err != nil {
			return nil, errors.Wrapf(err, "party %d phase 1", i)
		}
		fragments[i] = f
		hooks.Observe.see("dkg/1", i, f)
	}

	out2 := make(map[uint8]*dkg.Phase2Output, len(indices))
	for _, i := range indices {
		received := make([]eckey.Scalar, 0, len(indices))
		for _, j := range indices {
			received = append(received, fragments[j][i-1])
		}
		out, err := dkg.Phase2(sessions[i], received, rands[i])
		if err != nil {
			return nil, errors.Wrapf(err, "party %d phase 2", i)
		}
		out2[i] = out
		hooks.Observe.see("dkg/2", i, out)
	}

	out3 := make(map[uint8]*dkg.Phase3Output, len(indices))
	for _, i := range indices {
		out, err := dkg.Phase3(sessions[i], out2[i].ZeroKeep, out2[i].BipKeep, rands[i])
		if err != nil {
			return nil, errors.Wrapf(err, "party %d phase 3", i)
		}
		out3[i] = out
		hooks.Observe.see("dkg/3", i, out)
	}

	for _, i := range indices {
		if hooks.ProofCommitment != nil {
			hooks.ProofCommitment(i, &out2[i].ProofCommitment)
		}
		if hooks.ZeroReveal != nil {
			for k := range out3[i].ZeroTransmit {
				m := &out3[i].ZeroTransmit[k]
				hooks.ZeroReveal(i, m.Parties.Receiver, m)
			}
		}
	}

	res := &DKGResult{
		Parties: make(map[uint8]*protocol.Party, len(indices)),
		Errors:  make(map[uint8]error),
	}
	for _, i := range indices {
		in := &dkg.Phase4Input{
			PolyPoint: out2[i].PolyPoint,
			ZeroKept:  out3[i].ZeroKeep,
			MulKept:   out3[i].MulKeep,
		}
		for _, j := range indices {
			in.ProofsCommitments = append(in.ProofsCommitments, out2[j].ProofCommitment)
			in.BipReceivedPhase2 = append(in.BipReceivedPhase2, out2[j].BipBroadcast)
			in.BipReceivedPhase3 = append(in.BipReceivedPhase3, out3[j].BipBroadcast)
			if j == i {
				continue
			}
			for _, m := range out2[j].ZeroTransmit {
				if m.Parties.Receiver == i {
					in.ZeroReceivedPhase2 = append(in.ZeroReceivedPhase2, m)
				}
			}
			for _, m := range out3[j].ZeroTransmit {
				if m.Parties.Receiver == i {
					in.ZeroReceivedPhase3 = append(in.ZeroReceivedPhase3, m)
				}
			}
			for _, m := range out3[j].MulTransmit {
				if m.Parties.Receiver == i {
					in.MulReceived = append(in.MulReceived, m)
				}
			}
		}

		party, err := dkg.Phase4(sessions[i], in)
		if err != nil {
			res.Errors[i] = err
			continue
		}
		res.Parties[i] = party
		hooks.Observe.see("dkg/4", i, party)
	}
	return res, nil
}

// SignResult holds what every executing party computed.
type SignResult struct {
	XCoords    map[uint8]eckey.Scalar
	Signatures map[uint8]*signing.Signature
	RecIDs     map[uint8]byte
}

// Sign runs a signing session between the given parties. The first error of
// any party ends the run.
func Sign(parties []*protocol.Party, signID []byte, digest signing.Digest, normalize bool, randFor RandFor) (*SignResult, error) {
	return SignObserved(parties, signID, digest, normalize, randFor, nil)
}

// SignObserved is Sign with every phase output passed to observe.
func SignObserved(parties []*protocol.Party, signID []byte, digest signing.Digest, normalize bool, randFor RandFor, observe Observer) (*SignResult, error) {
	data := make(map[uint8]*signing.SignData, len(parties))
	byIndex := make(map[uint8]*protocol.Party, len(parties))
	for _, p := range parties {
		byIndex[p.PartyIndex] = p
	}
	for _, p := range parties {
		d := &signing.SignData{SignID: signID, MessageHash: digest}
		for _, q := range parties {
			if q.PartyIndex != p.PartyIndex {
				d.Counterparties = append(d.Counterparties, q.PartyIndex)
			}
		}
		data[p.PartyIndex] = d
	}
	rands := make(map[uint8]io.Reader, len(parties))
	for _, p := range parties {
		rands[p.PartyIndex] = randFor(p.PartyIndex)
	}

	out1 := make(map[uint8]*signing.Phase1Output, len(parties))
	for _, p := range parties {
		out, err := signing.Phase1(p, data[p.PartyIndex], rands[p.PartyIndex])
		if err != nil {
			return nil, errors.Wrapf(err, "party %d phase 1", p.PartyIndex)
		}
		out1[p.PartyIndex] = out
		observe.see("sign/1", p.PartyIndex, out)
	}

	out2 := make(map[uint8]*signing.Phase2Output, len(parties))
	for _, p := range parties {
		i := p.PartyIndex
		var received []signing.TransmitPhase1to2
		for _, q := range parties {
			for _, m := range out1[q.PartyIndex].Transmit {
				if m.Parties.Receiver == i {
					received = append(received, m)
				}
			}
		}
		out, err := signing.Phase2(p, data[i], out1[i].UniqueKeep, out1[i].Keep, received, rands[i])
		if err != nil {
			return nil, errors.Wrapf(err, "party %d phase 2", i)
		}
		out2[i] = out
		observe.see("sign/2", i, out)
	}

	res := &SignResult{
		XCoords:    make(map[uint8]eckey.Scalar, len(parties)),
		Signatures: make(map[uint8]*signing.Signature, len(parties)),
		RecIDs:     make(map[uint8]byte, len(parties)),
	}

	var broadcasts []signing.Broadcast3to4
	for _, p := range parties {
		i := p.PartyIndex
		var received []signing.TransmitPhase2to3
		for _, q := range parties {
			for _, m := range out2[q.PartyIndex].Transmit {
				if m.Parties.Receiver == i {
					received = append(received, m)
				}
			}
		}
		out, err := signing.Phase3(p, data[i], out2[i].UniqueKeep, out2[i].Keep, received)
		if err != nil {
			return nil, errors.Wrapf(err, "party %d phase 3", i)
		}
		observe.see("sign/3", i, out)
		res.XCoords[i] = out.XCoord
		broadcasts = append(broadcasts, out.Broadcast)
	}

	for _, p := range parties {
		i := p.PartyIndex
		sig, recid, err := signing.Phase4(byIndex[i], data[i], res.XCoords[i], broadcasts, normalize)
		if err != nil {
			return nil, errors.Wrapf(err, "party %d phase 4", i)
		}
		observe.see("sign/4", i, sig.Ethereum(recid))
		res.Signatures[i] = sig
		res.RecIDs[i] = recid
	}
	return res, nil
}
