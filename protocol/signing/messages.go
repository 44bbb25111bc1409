package signing

import (
	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/mul"
	"github.com/chain5j/chain5j-dkls/ot"
	"github.com/chain5j/chain5j-dkls/proofs"
	"github.com/chain5j/chain5j-dkls/protocol"
)

// DigestSize is the width of a message digest.
const DigestSize = 32

// Digest is the hash of the message being signed.
type Digest [DigestSize]byte

func (d Digest) MarshalText() ([]byte, error) {
	return proofs.MarshalHex(d[:]), nil
}

func (d *Digest) UnmarshalText(input []byte) error {
	return proofs.UnmarshalHex(d[:], input)
}

// SignData describes one signing session. SignID must be fresh for every
// session: reusing it with the same Party reuses nonce material.
type SignData struct {
	SignID         []byte  `json:"sign_id"`
	Counterparties []uint8 `json:"counterparties"`
	MessageHash    Digest  `json:"message_hash"`
}

// UniqueKeep1to2 is the state that does not depend on a counterparty. It is
// wiped by Phase2.
type UniqueKeep1to2 struct {
	SignID        []byte       `json:"sign_id"`
	InstanceKey   eckey.Scalar `json:"instance_key"`
	InstancePoint eckey.Point  `json:"instance_point"`
	InversionMask eckey.Scalar `json:"inversion_mask"`
	Zeta          eckey.Scalar `json:"zeta"`
}

func (k *UniqueKeep1to2) wipe() {
	k.InstanceKey.Zeroize()
	k.InversionMask.Zeroize()
	k.Zeta.Zeroize()
}

type KeepPhase1to2 struct {
	Salt    proofs.Salt       `json:"salt"`
	Chi     eckey.Scalar      `json:"chi"`
	MulKeep *mul.ReceiverKeep `json:"mul_keep"`
}

type TransmitPhase1to2 struct {
	Parties     protocol.PartiesMessage `json:"parties"`
	Commitment  proofs.Commitment       `json:"commitment"`
	MulTransmit *ot.ExtensionMessage    `json:"mul_transmit"`
}

// UniqueKeep2to3 is wiped by Phase3.
type UniqueKeep2to3 struct {
	SignID        []byte       `json:"sign_id"`
	InstanceKey   eckey.Scalar `json:"instance_key"`
	InstancePoint eckey.Point  `json:"instance_point"`
	InversionMask eckey.Scalar `json:"inversion_mask"`
	KeyShare      eckey.Scalar `json:"key_share"`
	PublicShare   eckey.Point  `json:"public_share"`
}

func (k *UniqueKeep2to3) wipe() {
	k.InstanceKey.Zeroize()
	k.InversionMask.Zeroize()
	k.KeyShare.Zeroize()
}

// KeepPhase2to3 holds, for one counterparty j, this party's sender outputs
// towards j, j's commitment to its instance point and the receiver state of
// the multiplication in which j is the sender.
type KeepPhase2to3 struct {
	CU         eckey.Scalar      `json:"c_u"`
	CV         eckey.Scalar      `json:"c_v"`
	Commitment proofs.Commitment `json:"commitment"`
	MulKeep    *mul.ReceiverKeep `json:"mul_keep"`
	Chi        eckey.Scalar      `json:"chi"`
}

type TransmitPhase2to3 struct {
	Parties       protocol.PartiesMessage `json:"parties"`
	GammaU        eckey.Point             `json:"gamma_u"`
	GammaV        eckey.Point             `json:"gamma_v"`
	Psi           eckey.Scalar            `json:"psi"`
	PublicShare   eckey.Point             `json:"public_share"`
	InstancePoint eckey.Point             `json:"instance_point"`
	Salt          proofs.Salt             `json:"salt"`
	MulTransmit   *mul.SenderReply        `json:"mul_transmit"`
}

// Broadcast3to4 carries this party's additive shares of the signature
// denominator (U) and numerator (W).
type Broadcast3to4 struct {
	SenderIndex uint8        `json:"sender_index"`
	U           eckey.Scalar `json:"u"`
	W           eckey.Scalar `json:"w"`
}

type Phase1Output struct {
	UniqueKeep *UniqueKeep1to2          `json:"unique_keep"`
	Keep       map[uint8]*KeepPhase1to2 `json:"keep"`
	Transmit   []TransmitPhase1to2      `json:"transmit"`
}

type Phase2Output struct {
	UniqueKeep *UniqueKeep2to3          `json:"unique_keep"`
	Keep       map[uint8]*KeepPhase2to3 `json:"keep"`
	Transmit   []TransmitPhase2to3      `json:"transmit"`
}

// Phase3Output is the x coordinate of the joint instance point and the
// broadcast for phase 4.
type Phase3Output struct {
	XCoord    eckey.Scalar  `json:"x_coord"`
	Broadcast Broadcast3to4 `json:"broadcast"`
}
