// Package wire defines the canonical encoding of every protocol value that
// crosses a process boundary.
//
// A value travels inside an Envelope: a JSON object carrying a format version,
// a kind naming the payload type, the session it belongs to, the sender and
// receiver indices (receiver 0 for broadcasts) and the payload itself. Inside
// payloads, fixed-width values are lowercase hex of documented width:
//
//	scalar            32 bytes
//	point             33 bytes, SEC1 compressed, identity as all zero
//	hash, commitment  32 bytes
//	salt              32 bytes
//	zero-share seed   32 bytes
//	OT seed, block    32 bytes
//	chain code        32 bytes
//	fingerprint        4 bytes
//
// Variable-length byte strings (session ids, OT-extension columns) are
// standard base64, and maps keyed by party index use the decimal index.
package wire

import (
	"bytes"
	"encoding/json"

	"github.com/chain5j/chain5j-dkls/proofs"
	"github.com/pkg/errors"
)

// Version is the current envelope format.
const Version = 1

var (
	ErrVersion   = errors.New("wire: unsupported envelope version")
	ErrKind      = errors.New("wire: unexpected payload kind")
	ErrMalformed = errors.New("wire: malformed envelope")
)

// Kind names a payload type.
type Kind string

const (
	KindDKGFragment        Kind = "dkg/fragment"
	KindDKGProofCommitment Kind = "dkg/proof-commitment"
	KindDKGZeroCommitment  Kind = "dkg/zero-share-commitment"
	KindDKGChainCommitment Kind = "dkg/chain-code-commitment"
	KindDKGZeroReveal      Kind = "dkg/zero-share-reveal"
	KindDKGChainReveal     Kind = "dkg/chain-code-reveal"
	KindDKGMulInit         Kind = "dkg/mul-init"
	KindSignPhase1         Kind = "sign/phase1"
	KindSignPhase2         Kind = "sign/phase2"
	KindSignPhase3         Kind = "sign/phase3"
	KindParty              Kind = "party"
	KindSignature          Kind = "signature"
	KindAbort              Kind = "abort"
)

// Envelope wraps one payload.
type Envelope struct {
	Version   uint16          `json:"version"`
	Kind      Kind            `json:"kind"`
	SessionID []byte          `json:"session_id"`
	Sender    uint8           `json:"sender"`
	Receiver  uint8           `json:"receiver"`
	Payload   json.RawMessage `json:"payload"`
	Signature []byte          `json:"signature,omitempty"`
}

// Encode wraps v in an envelope and returns its encoding.
func Encode(kind Kind, sessionID []byte, sender, receiver uint8, v interface{}) ([]byte, error) {
	env, err := NewEnvelope(kind, sessionID, sender, receiver, v)
	if err != nil {
		return nil, err
	}
	return env.Marshal()
}

func NewEnvelope(kind Kind, sessionID []byte, sender, receiver uint8, v interface{}) (*Envelope, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "wire: encode %s", kind)
	}

	return &Envelope{
		Version:   Version,
		Kind:      kind,
		SessionID: append([]byte(nil), sessionID...),
		Sender:    sender,
		Receiver:  receiver,
		Payload:   payload,
	}, nil
}

func (e *Envelope) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "wire: encode envelope")
	}
	return b, nil
}

// Parse decodes an envelope and checks its version.
func Parse(data []byte) (*Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	if env.Version != Version {
		return nil, errors.Wrapf(ErrVersion, "got %d", env.Version)
	}
	return &env, nil
}

// Open decodes the payload into v after checking the kind.
func (e *Envelope) Open(kind Kind, v interface{}) error {
	if e.Kind != kind {
		return errors.Wrapf(ErrKind, "want %s, got %s", kind, e.Kind)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errors.Wrapf(ErrMalformed, "%s payload: %v", kind, err)
	}
	return nil
}

// Decode parses data and decodes its payload of the given kind into v.
func Decode(data []byte, kind Kind, v interface{}) (*Envelope, error) {
	env, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := env.Open(kind, v); err != nil {
		return nil, err
	}
	return env, nil
}

// Digest hashes everything but the signature.
func (e *Envelope) Digest() [proofs.HashSize]byte {
	var ver [2]byte
	ver[0] = byte(e.Version >> 8)
	ver[1] = byte(e.Version)
	return proofs.Hash([]byte("wire-envelope"), ver[:], []byte(e.Kind), e.SessionID, []byte{e.Sender, e.Receiver}, e.Payload)
}
