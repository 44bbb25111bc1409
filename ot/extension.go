package ot

import (
	"encoding/binary"
	"io"

	"github.com/chain5j/chain5j-dkls/proofs"
	"github.com/chain5j/chain5j-dkls/rng"
	"github.com/pkg/errors"
)

// padBits random rows are appended to every batch so that the consistency
// check reveals nothing about the receiver's choice bits.
const padBits = Kappa + StatSecurity

// SenderSetup is the durable state of the extension sender: its correlation
// Delta and, for each base OT, the seed selected by the matching bit of Delta.
// It is never modified after key generation.
type SenderSetup struct {
	Correlation Block       `json:"correlation"`
	Seeds       [Kappa]Seed `json:"seeds"`
}

// ReceiverSetup is the durable state of the extension receiver: both seeds of
// every base OT. It is never modified after key generation.
type ReceiverSetup struct {
	Seeds0 [Kappa]Seed `json:"seeds0"`
	Seeds1 [Kappa]Seed `json:"seeds1"`
}

// ExtensionMessage is sent by the receiver: one masked column per base OT and
// the two values of the KOS consistency check.
type ExtensionMessage struct {
	Columns [][]byte `json:"columns"`
	CheckX  Block    `json:"check_x"`
	CheckT  Block    `json:"check_t"`
}

// Extend runs the receiver side for the given choice bits (width bits, packed
// least significant bit first). It returns the row t_i for every choice i,
// satisfying q_i = t_i xor choice_i*Delta on the sender side.
func (r *ReceiverSetup) Extend(rand io.Reader, sid []byte, choices []byte, width int) ([]Block, *ExtensionMessage, error) {
	if width <= 0 || width%8 != 0 || len(choices) != width/8 {
		return nil, nil, ErrInvalidBatchWidth
	}

	m := width + padBits
	x := make([]byte, m/8)
	copy(x, choices)
	if _, err := io.ReadFull(rand, x[width/8:]); err != nil {
		return nil, nil, errors.Wrap(err, "ot: read padding")
	}

	cols := make([][]byte, Kappa)
	msg := &ExtensionMessage{Columns: make([][]byte, Kappa)}
	for k := 0; k < Kappa; k++ {
		t0 := make([]byte, m/8)
		t1 := make([]byte, m/8)
		rng.Expand(r.Seeds0[k], columnDomain(sid, k), t0)
		rng.Expand(r.Seeds1[k], columnDomain(sid, k), t1)

		u := make([]byte, m/8)
		copy(u, t0)
		xorInto(u, t1)
		xorInto(u, x)

		cols[k] = t0
		msg.Columns[k] = u
	}

	rows := transpose(cols, m)
	chi := checkCoefficients(sid, msg.Columns, m)
	for i := 0; i < m; i++ {
		if bit(x, i) {
			msg.CheckX = msg.CheckX.Xor(chi[i])
		}
		msg.CheckT = msg.CheckT.Xor(chi[i].Mul(rows[i]))
	}
	return rows[:width], msg, nil
}

// Extend runs the sender side. It verifies the receiver's consistency check
// and returns the row q_i for each of the width choices.
func (s *SenderSetup) Extend(sid []byte, width int, msg *ExtensionMessage) ([]Block, error) {
	if width <= 0 || width%8 != 0 {
		return nil, ErrInvalidBatchWidth
	}

	m := width + padBits
	if msg == nil || len(msg.Columns) != Kappa {
		return nil, ErrMalformedExtMsg
	}

	cols := make([][]byte, Kappa)
	for k := 0; k < Kappa; k++ {
		if len(msg.Columns[k]) != m/8 {
			return nil, ErrMalformedExtMsg
		}

		q := make([]byte, m/8)
		rng.Expand(s.Seeds[k], columnDomain(sid, k), q)
		if s.Correlation.Bit(k) {
			xorInto(q, msg.Columns[k])
		}
		cols[k] = q
	}

	rows := transpose(cols, m)
	chi := checkCoefficients(sid, msg.Columns, m)

	var checkQ Block
	for i := 0; i < m; i++ {
		checkQ = checkQ.Xor(chi[i].Mul(rows[i]))
	}

	expected := msg.CheckT.Xor(msg.CheckX.Mul(s.Correlation))
	if checkQ != expected {
		return nil, ErrInvalidExtension
	}
	return rows[:width], nil
}

func columnDomain(sid []byte, k int) []byte {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(k))
	d := proofs.Hash([]byte("ote-column"), sid, idx[:])
	return d[:]
}

// checkCoefficients derives the Fiat-Shamir coefficients chi_i from the session
// and the receiver's columns.
func checkCoefficients(sid []byte, cols [][]byte, m int) []Block {
	parts := make([][]byte, 0, len(cols)+2)
	parts = append(parts, []byte("ote-check"), sid)
	parts = append(parts, cols...)
	key := proofs.Hash(parts...)

	buf := make([]byte, m*BlockSize)
	rng.Expand(key, []byte("ote-check-coefficients"), buf)

	chi := make([]Block, m)
	for i := range chi {
		copy(chi[i][:], buf[i*BlockSize:])
	}
	return chi
}
