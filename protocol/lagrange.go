package protocol

import (
	"github.com/chain5j/chain5j-dkls/eckey"
)

// LagrangeCoefficient returns the coefficient of index for interpolating at
// zero over set, i.e. prod_{j != index} j / (j - index).
func LagrangeCoefficient(index uint8, set []uint8) eckey.Scalar {
	return LagrangeAt(index, set, 0)
}

// LagrangeAt returns the coefficient of index for interpolating at x over set.
func LagrangeAt(index uint8, set []uint8, x uint8) eckey.Scalar {
	num := eckey.NewScalar(1)
	den := eckey.NewScalar(1)
	xs := eckey.NewScalar(uint32(x))
	is := eckey.NewScalar(uint32(index))

	for _, j := range set {
		if j == index {
			continue
		}
		js := eckey.NewScalar(uint32(j))
		num = num.Mul(xs.Sub(js))
		den = den.Mul(is.Sub(js))
	}
	return num.Mul(den.Inverse())
}

// EvalPolynomial evaluates sum coeffs[k] x^k with Horner's rule.
func EvalPolynomial(coeffs []eckey.Scalar, x uint8) eckey.Scalar {
	xs := eckey.NewScalar(uint32(x))
	var acc eckey.Scalar
	for k := len(coeffs) - 1; k >= 0; k-- {
		acc = acc.Mul(xs).Add(coeffs[k])
	}
	return acc
}
