// Package protocol holds the data model shared by key generation, signing and
// derivation: parameters, session data, the Party key-share bundle and the
// Abort value returned when a counterparty misbehaves.
package protocol

import (
	"sort"

	"github.com/chain5j/chain5j-dkls/proofs"
	"github.com/pkg/errors"
)

// SessionIDSize is the width of DKG session ids and signing ids.
const SessionIDSize = 32

var (
	// ErrInvalidInput is the root of every local input error. Such errors are
	// returned before any protocol step and are never sent to counterparties.
	ErrInvalidInput = errors.New("protocol: invalid input")

	ErrKeepConsumed    = errors.Wrap(ErrInvalidInput, "keep state already consumed")
	ErrSessionMismatch = errors.Wrap(ErrInvalidInput, "keep state belongs to another session")
)

// Parameters fix the threshold t and share count n.
type Parameters struct {
	Threshold  uint8 `json:"threshold"`
	ShareCount uint8 `json:"share_count"`
}

func (p Parameters) Validate() error {
	if p.Threshold < 2 || p.Threshold > p.ShareCount {
		return errors.Wrapf(ErrInvalidInput, "threshold %d share count %d", p.Threshold, p.ShareCount)
	}
	return nil
}

// ValidateIndex checks that idx names a party.
func (p Parameters) ValidateIndex(idx uint8) error {
	if idx < 1 || idx > p.ShareCount {
		return errors.Wrapf(ErrInvalidInput, "party index %d out of [1, %d]", idx, p.ShareCount)
	}
	return nil
}

// Indices returns 1..n.
func (p Parameters) Indices() []uint8 {
	out := make([]uint8, 0, p.ShareCount)
	for i := 1; i <= int(p.ShareCount); i++ {
		out = append(out, uint8(i))
	}
	return out
}

// SessionData identifies one party in one DKG run.
type SessionData struct {
	Parameters Parameters `json:"parameters"`
	PartyIndex uint8      `json:"party_index"`
	SessionID  []byte     `json:"session_id"`

	// Proof sets the soundness of the poly point proofs. The zero value
	// selects proofs.DefaultParams. All parties must agree on it.
	Proof proofs.Params `json:"proof,omitempty"`
}

func (s *SessionData) Validate() error {
	if s == nil {
		return errors.Wrap(ErrInvalidInput, "nil session data")
	}
	if err := s.Parameters.Validate(); err != nil {
		return err
	}
	if err := s.Parameters.ValidateIndex(s.PartyIndex); err != nil {
		return err
	}
	if len(s.SessionID) != SessionIDSize {
		return errors.Wrapf(ErrInvalidInput, "session id has %d bytes", len(s.SessionID))
	}
	if s.Proof != (proofs.Params{}) {
		if err := s.Proof.Validate(); err != nil {
			return errors.Wrap(ErrInvalidInput, err.Error())
		}
	}
	return nil
}

// ProofParams returns the proof parameters of the run.
func (s *SessionData) ProofParams() proofs.Params {
	if s.Proof == (proofs.Params{}) {
		return proofs.DefaultParams
	}
	return s.Proof
}

// Counterparties returns every index but the party's own, ascending.
func (s *SessionData) Counterparties() []uint8 {
	out := make([]uint8, 0, s.Parameters.ShareCount-1)
	for _, idx := range s.Parameters.Indices() {
		if idx != s.PartyIndex {
			out = append(out, idx)
		}
	}
	return out
}

// PartiesMessage tags a point-to-point message.
type PartiesMessage struct {
	Sender   uint8 `json:"sender"`
	Receiver uint8 `json:"receiver"`
}

func (m PartiesMessage) Validate(params Parameters) error {
	if m.Sender == m.Receiver {
		return errors.Wrapf(ErrInvalidInput, "message from %d to itself", m.Sender)
	}
	if err := params.ValidateIndex(m.Sender); err != nil {
		return err
	}
	return params.ValidateIndex(m.Receiver)
}

// Reverse swaps sender and receiver.
func (m PartiesMessage) Reverse() PartiesMessage {
	return PartiesMessage{Sender: m.Receiver, Receiver: m.Sender}
}

// SortedUnique returns a sorted copy of set and an error on duplicates.
func SortedUnique(set []uint8) ([]uint8, error) {
	out := make([]uint8, len(set))
	copy(out, set)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	for i := 1; i < len(out); i++ {
		if out[i] == out[i-1] {
			return nil, errors.Wrapf(ErrInvalidInput, "duplicate party index %d", out[i])
		}
	}
	return out, nil
}
