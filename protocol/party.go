package protocol

import (
	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/ot"
	"github.com/chain5j/chain5j-dkls/proofs"
	"github.com/chain5j/chain5j-dkls/zeroshare"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	ChainCodeSize   = 32
	FingerprintSize = 4
)

// ChainCode is the BIP32 chain code.
type ChainCode [ChainCodeSize]byte

func (c ChainCode) MarshalText() ([]byte, error) {
	return proofs.MarshalHex(c[:]), nil
}

func (c *ChainCode) UnmarshalText(input []byte) error {
	return proofs.UnmarshalHex(c[:], input)
}

// Fingerprint identifies the parent key of a derived key.
type Fingerprint [FingerprintSize]byte

func (f Fingerprint) MarshalText() ([]byte, error) {
	return proofs.MarshalHex(f[:]), nil
}

func (f *Fingerprint) UnmarshalText(input []byte) error {
	return proofs.UnmarshalHex(f[:], input)
}

// DerivData is the key material BIP32 derivation operates on: this party's
// point on the sharing polynomial, the joint public key and the chain code.
type DerivData struct {
	Depth             uint8        `json:"depth"`
	ChildNumber       uint32       `json:"child_number"`
	ParentFingerprint Fingerprint  `json:"parent_fingerprint"`
	PolyPoint         eckey.Scalar `json:"poly_point"`
	PublicKey         eckey.Point  `json:"public_key"`
	ChainCode         ChainCode    `json:"chain_code"`
}

// Party is the durable key-share bundle produced by key generation. It is
// never modified after creation: derivation returns a new Party, and the OT
// material is only ever expanded per signing session, so a Party can be used
// by concurrent signing sessions.
type Party struct {
	Parameters Parameters   `json:"parameters"`
	PartyIndex uint8        `json:"party_index"`
	SessionID  []byte       `json:"session_id"`
	PolyPoint  eckey.Scalar `json:"poly_point"`
	PublicKey  eckey.Point  `json:"public_key"`

	ZeroShare *zeroshare.ZeroShare `json:"zero_share"`

	// MulSenders holds, per counterparty, the OT-extension state used when this
	// party is the sender of a multiplication; MulReceivers when it receives.
	MulSenders   map[uint8]*ot.SenderSetup   `json:"mul_senders"`
	MulReceivers map[uint8]*ot.ReceiverSetup `json:"mul_receivers"`

	Derivation DerivData `json:"derivation"`
}

// Validate checks the Party is complete and consistent.
func (p *Party) Validate() error {
	if p == nil {
		return errors.Wrap(ErrInvalidInput, "nil party")
	}
	if err := p.Parameters.Validate(); err != nil {
		return err
	}
	if err := p.Parameters.ValidateIndex(p.PartyIndex); err != nil {
		return err
	}
	if p.PublicKey.IsIdentity() {
		return errors.Wrap(ErrInvalidInput, "party has no public key")
	}
	if p.ZeroShare == nil || len(p.ZeroShare.Seeds) != int(p.Parameters.ShareCount)-1 {
		return errors.Wrap(ErrInvalidInput, "party zero-share seeds incomplete")
	}

	for _, idx := range p.Parameters.Indices() {
		if idx == p.PartyIndex {
			continue
		}
		if p.MulSenders[idx] == nil || p.MulReceivers[idx] == nil {
			return errors.Wrapf(ErrInvalidInput, "party has no OT setup with %d", idx)
		}
	}

	if !p.Derivation.PolyPoint.Equal(p.PolyPoint) || !p.Derivation.PublicKey.Equal(p.PublicKey) {
		return errors.Wrap(ErrInvalidInput, "party derivation data out of sync")
	}
	return nil
}

// KeyMaterial returns the data derivation works on.
func (p *Party) KeyMaterial() DerivData {
	return p.Derivation
}

// WithKeyMaterial returns a copy of the Party using d as its key. The copy
// shares the immutable zero-share and OT state with p.
func (p *Party) WithKeyMaterial(d DerivData) *Party {
	cp := *p
	cp.PolyPoint = d.PolyPoint
	cp.PublicKey = d.PublicKey
	cp.Derivation = d
	return &cp
}

// Address returns the Ethereum address of the joint public key.
func (p *Party) Address() (common.Address, error) {
	pub, err := p.PublicKey.ToECDSA()
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
