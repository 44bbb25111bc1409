package dkg

import (
	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/ot"
	"github.com/chain5j/chain5j-dkls/proofs"
	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/zeroshare"
)

// ProofCommitment is a party's committed proof of knowledge of the discrete
// log of its poly point. It is broadcast in phase 2 and checked in phase 4.
type ProofCommitment struct {
	Index      uint8             `json:"index"`
	Proof      *proofs.DLogProof `json:"proof"`
	Commitment proofs.Commitment `json:"commitment"`
}

type KeepInitZeroSharePhase2to3 struct {
	Seed zeroshare.Seed `json:"seed"`
	Salt proofs.Salt    `json:"salt"`
}

type TransmitInitZeroSharePhase2to4 struct {
	Parties    protocol.PartiesMessage `json:"parties"`
	Commitment proofs.Commitment       `json:"commitment"`
}

type KeepInitZeroSharePhase3to4 struct {
	Seed zeroshare.Seed `json:"seed"`
}

type TransmitInitZeroSharePhase3to4 struct {
	Parties protocol.PartiesMessage `json:"parties"`
	Seed    zeroshare.Seed          `json:"seed"`
	Salt    proofs.Salt             `json:"salt"`
}

type UniqueKeepDerivationPhase2to3 struct {
	AuxChainCode protocol.ChainCode `json:"aux_chain_code"`
	CCSalt       proofs.Salt        `json:"cc_salt"`
}

type BroadcastDerivationPhase2to4 struct {
	SenderIndex  uint8             `json:"sender_index"`
	CCCommitment proofs.Commitment `json:"cc_commitment"`
}

type BroadcastDerivationPhase3to4 struct {
	SenderIndex  uint8              `json:"sender_index"`
	AuxChainCode protocol.ChainCode `json:"aux_chain_code"`
	CCSalt       proofs.Salt        `json:"cc_salt"`
}

// KeepInitMulPhase3to4 holds both base OT roles towards one counterparty:
// BaseSender for the direction in which this party receives multiplications,
// BaseReceiver (whose choice bits are the correlation) for the direction in
// which it sends them.
type KeepInitMulPhase3to4 struct {
	BaseSender   *ot.BaseSender   `json:"base_sender"`
	BaseReceiver *ot.BaseReceiver `json:"base_receiver"`
}

type TransmitInitMulPhase3to4 struct {
	Parties        protocol.PartiesMessage `json:"parties"`
	SenderProof    *proofs.DLogProof       `json:"sender_proof"`
	ReceiverPoints []eckey.Point           `json:"receiver_points"`
}

type Phase2Output struct {
	PolyPoint       eckey.Scalar                          `json:"poly_point"`
	ProofCommitment ProofCommitment                       `json:"proof_commitment"`
	ZeroKeep        map[uint8]*KeepInitZeroSharePhase2to3 `json:"zero_keep"`
	ZeroTransmit    []TransmitInitZeroSharePhase2to4      `json:"zero_transmit"`
	BipKeep         *UniqueKeepDerivationPhase2to3        `json:"bip_keep"`
	BipBroadcast    BroadcastDerivationPhase2to4          `json:"bip_broadcast"`
}

type Phase3Output struct {
	ZeroKeep     map[uint8]*KeepInitZeroSharePhase3to4 `json:"zero_keep"`
	ZeroTransmit []TransmitInitZeroSharePhase3to4      `json:"zero_transmit"`
	MulKeep      map[uint8]*KeepInitMulPhase3to4       `json:"mul_keep"`
	MulTransmit  []TransmitInitMulPhase3to4            `json:"mul_transmit"`
	BipBroadcast BroadcastDerivationPhase3to4          `json:"bip_broadcast"`
}

// Phase4Input gathers this party's kept state and every message it received
// in phases 2 and 3. Broadcast lists include the party's own broadcast.
type Phase4Input struct {
	PolyPoint          eckey.Scalar                          `json:"poly_point"`
	ProofsCommitments  []ProofCommitment                     `json:"proofs_commitments"`
	ZeroKept           map[uint8]*KeepInitZeroSharePhase3to4 `json:"zero_kept"`
	ZeroReceivedPhase2 []TransmitInitZeroSharePhase2to4      `json:"zero_received_phase2"`
	ZeroReceivedPhase3 []TransmitInitZeroSharePhase3to4      `json:"zero_received_phase3"`
	MulKept            map[uint8]*KeepInitMulPhase3to4       `json:"mul_kept"`
	MulReceived        []TransmitInitMulPhase3to4            `json:"mul_received"`
	BipReceivedPhase2  []BroadcastDerivationPhase2to4        `json:"bip_received_phase2"`
	BipReceivedPhase3  []BroadcastDerivationPhase3to4        `json:"bip_received_phase3"`
}
