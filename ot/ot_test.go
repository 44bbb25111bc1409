package ot

import (
	"io"
	"testing"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/rng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func one() Block {
	return Block{1}
}

func randomBlock(t *testing.T, r io.Reader) Block {
	var b Block
	_, err := io.ReadFull(r, b[:])
	require.NoError(t, err)
	return b
}

func TestBlockMul(t *testing.T) {
	r := rng.NewDeterministic([]byte("gf"))
	a, b, c := randomBlock(t, r), randomBlock(t, r), randomBlock(t, r)

	assert.Equal(t, a, a.Mul(one()))
	assert.Equal(t, Block{}, a.Mul(Block{}))
	assert.Equal(t, a.Mul(b), b.Mul(a))
	assert.Equal(t, a.Mul(b.Xor(c)), a.Mul(b).Xor(a.Mul(c)))
	assert.Equal(t, a.Mul(b).Mul(c), a.Mul(b.Mul(c)))

	// x^255 * x reduces to x^10 + x^5 + x^2 + 1
	var top, x Block
	top[BlockSize-1] = 0x80
	x[0] = 0x02
	want := Block{0x25, 0x04}
	assert.Equal(t, want, top.Mul(x))
}

func TestBlockBits(t *testing.T) {
	b := Block{0x01, 0x80}
	assert.True(t, b.Bit(0))
	assert.False(t, b.Bit(1))
	assert.True(t, b.Bit(15))
	assert.Equal(t, Block{0x01}, b.And(Block{0xff}))
	assert.Equal(t, Block{}, b.Xor(b))
}

func TestTranspose(t *testing.T) {
	cols := make([][]byte, Kappa)
	for k := range cols {
		cols[k] = make([]byte, 2)
	}
	setBit(cols[3], 9)
	setBit(cols[200], 0)

	rows := transpose(cols, 16)
	require.Len(t, rows, 16)
	assert.True(t, rows[9].Bit(3))
	assert.True(t, rows[0].Bit(200))
	assert.False(t, rows[9].Bit(200))
}

// setup runs the base OTs and returns the extension sender and receiver.
func setup(t *testing.T, r io.Reader, sid []byte) (*SenderSetup, *ReceiverSetup) {
	delta := randomBlock(t, r)

	baseSender, proof, err := NewBaseSender(r, sid)
	require.NoError(t, err)
	baseReceiver, points, err := NewBaseReceiver(r, sid, delta)
	require.NoError(t, err)

	seeds0, seeds1, err := baseSender.Seeds(sid, points)
	require.NoError(t, err)
	chosen, err := baseReceiver.Seeds(sid, proof)
	require.NoError(t, err)
	baseReceiver.Zeroize()

	return &SenderSetup{Correlation: delta, Seeds: chosen}, &ReceiverSetup{Seeds0: seeds0, Seeds1: seeds1}
}

func TestBaseOT(t *testing.T) {
	r := rng.NewDeterministic([]byte("base"))
	sid := []byte("base-sid")
	choices := randomBlock(t, r)

	baseSender, proof, err := NewBaseSender(r, sid)
	require.NoError(t, err)
	baseReceiver, points, err := NewBaseReceiver(r, sid, choices)
	require.NoError(t, err)

	seeds0, seeds1, err := baseSender.Seeds(sid, points)
	require.NoError(t, err)
	chosen, err := baseReceiver.Seeds(sid, proof)
	require.NoError(t, err)

	for k := 0; k < Kappa; k++ {
		if choices.Bit(k) {
			assert.Equal(t, seeds1[k], chosen[k])
			assert.NotEqual(t, seeds0[k], chosen[k])
		} else {
			assert.Equal(t, seeds0[k], chosen[k])
			assert.NotEqual(t, seeds1[k], chosen[k])
		}
	}

	_, err = baseReceiver.Seeds([]byte("other-sid"), proof)
	assert.Equal(t, ErrInvalidBaseProof, err)

	_, _, err = baseSender.Seeds(sid, points[:Kappa-1])
	assert.ErrorIs(t, err, ErrInvalidBaseMsg)

	bad := append([]eckey.Point(nil), points...)
	bad[7] = eckey.Point{}
	_, _, err = baseSender.Seeds(sid, bad)
	assert.ErrorIs(t, err, ErrInvalidBaseMsg)
}

func TestExtension(t *testing.T) {
	r := rng.NewDeterministic([]byte("extension"))
	sid := []byte("ext-sid")
	sender, receiver := setup(t, r, sid)

	const width = 64
	choices := make([]byte, width/8)
	_, err := io.ReadFull(r, choices)
	require.NoError(t, err)

	tRows, msg, err := receiver.Extend(r, sid, choices, width)
	require.NoError(t, err)
	qRows, err := sender.Extend(sid, width, msg)
	require.NoError(t, err)
	require.Len(t, tRows, width)
	require.Len(t, qRows, width)

	for i := 0; i < width; i++ {
		want := tRows[i]
		if bit(choices, i) {
			want = want.Xor(sender.Correlation)
		}
		assert.Equal(t, want, qRows[i], "row %d", i)
	}

	// the same setup extends again under a fresh session
	tRows2, msg2, err := receiver.Extend(r, []byte("ext-sid-2"), choices, width)
	require.NoError(t, err)
	qRows2, err := sender.Extend([]byte("ext-sid-2"), width, msg2)
	require.NoError(t, err)
	assert.NotEqual(t, tRows[0], tRows2[0])
	if !bit(choices, 0) {
		assert.Equal(t, tRows2[0], qRows2[0])
	}
}

func TestExtensionTampered(t *testing.T) {
	r := rng.NewDeterministic([]byte("tamper"))
	sid := []byte("tamper-sid")
	sender, receiver := setup(t, r, sid)

	const width = 16
	choices := []byte{0xa5, 0x3c}

	fresh := func() *ExtensionMessage {
		_, msg, err := receiver.Extend(r, sid, choices, width)
		require.NoError(t, err)
		return msg
	}

	msg := fresh()
	msg.Columns[5][1] ^= 0x10
	_, err := sender.Extend(sid, width, msg)
	assert.Equal(t, ErrInvalidExtension, err)

	msg = fresh()
	msg.CheckT[0] ^= 1
	_, err = sender.Extend(sid, width, msg)
	assert.Equal(t, ErrInvalidExtension, err)

	msg = fresh()
	msg.CheckX[31] ^= 1
	_, err = sender.Extend(sid, width, msg)
	assert.Equal(t, ErrInvalidExtension, err)

	msg = fresh()
	_, err = sender.Extend([]byte("other"), width, msg)
	assert.Equal(t, ErrInvalidExtension, err)

	msg = fresh()
	msg.Columns[0] = msg.Columns[0][1:]
	_, err = sender.Extend(sid, width, msg)
	assert.Equal(t, ErrMalformedExtMsg, err)

	msg = fresh()
	msg.Columns = msg.Columns[:Kappa-1]
	_, err = sender.Extend(sid, width, msg)
	assert.Equal(t, ErrMalformedExtMsg, err)

	_, err = sender.Extend(sid, width, nil)
	assert.Equal(t, ErrMalformedExtMsg, err)
}

func TestExtensionWidth(t *testing.T) {
	r := rng.NewDeterministic([]byte("width"))
	sender, receiver := setup(t, r, []byte("w"))

	_, _, err := receiver.Extend(r, []byte("w"), []byte{0}, 7)
	assert.Equal(t, ErrInvalidBatchWidth, err)
	_, _, err = receiver.Extend(r, []byte("w"), []byte{0}, 16)
	assert.Equal(t, ErrInvalidBatchWidth, err)
	_, _, err = receiver.Extend(r, []byte("w"), nil, 0)
	assert.Equal(t, ErrInvalidBatchWidth, err)
	_, err = sender.Extend([]byte("w"), 12, &ExtensionMessage{})
	assert.Equal(t, ErrInvalidBatchWidth, err)
}
