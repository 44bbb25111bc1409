package ot

import (
	"encoding/binary"

	"github.com/chain5j/chain5j-dkls/proofs"
)

// BlockSize is the width in bytes of one OT-extension row and of a GF(2^256) element.
const BlockSize = Kappa / 8

// Block is a Kappa-bit string, also read as an element of GF(2^256) modulo
// x^256 + x^10 + x^5 + x^2 + 1.
type Block [BlockSize]byte

func (b Block) Xor(o Block) Block {
	var r Block
	for i := range r {
		r[i] = b[i] ^ o[i]
	}
	return r
}

// And masks b with o bitwise.
func (b Block) And(o Block) Block {
	var r Block
	for i := range r {
		r[i] = b[i] & o[i]
	}
	return r
}

// Bit returns bit i, least significant bit of byte 0 first.
func (b Block) Bit(i int) bool {
	return bit(b[:], i)
}

// Mul multiplies in GF(2^256).
func (b Block) Mul(o Block) Block {
	x, y := b.limbs(), o.limbs()

	var z [8]uint64
	for i := 0; i < Kappa; i++ {
		if (x[i/64]>>(uint(i)%64))&1 == 0 {
			continue
		}
		w, s := i/64, uint(i)%64
		for j := 0; j < 4; j++ {
			z[w+j] ^= y[j] << s
			if s != 0 {
				z[w+j+1] ^= y[j] >> (64 - s)
			}
		}
	}

	for i := 7; i >= 4; i-- {
		t := z[i]
		z[i-4] ^= t ^ (t << 2) ^ (t << 5) ^ (t << 10)
		z[i-3] ^= (t >> 62) ^ (t >> 59) ^ (t >> 54)
	}

	var r Block
	for j := 0; j < 4; j++ {
		binary.LittleEndian.PutUint64(r[8*j:], z[j])
	}
	return r
}

func (b Block) limbs() [4]uint64 {
	var l [4]uint64
	for j := range l {
		l[j] = binary.LittleEndian.Uint64(b[8*j:])
	}
	return l
}

func (b Block) MarshalText() ([]byte, error) {
	return proofs.MarshalHex(b[:]), nil
}

func (b *Block) UnmarshalText(input []byte) error {
	return proofs.UnmarshalHex(b[:], input)
}

func bit(b []byte, i int) bool {
	return (b[i>>3]>>(uint(i)&7))&1 == 1
}

func setBit(b []byte, i int) {
	b[i>>3] |= 1 << (uint(i) & 7)
}

func xorInto(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}

// transpose turns Kappa columns of m bits into m rows of Kappa bits.
func transpose(cols [][]byte, m int) []Block {
	rows := make([]Block, m)
	for k, col := range cols {
		for i := 0; i < m; i++ {
			if bit(col, i) {
				setBit(rows[i][:], k)
			}
		}
	}
	return rows
}
