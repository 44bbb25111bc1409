// Package derivation applies BIP32 non-hardened derivation to a shared key.
// Every shareholder derives on its own: the tweak depends only on public data
// (joint public key, chain code, index), and adding it to each party's poly
// point shifts the whole sharing polynomial by the same constant.
package derivation

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160"
)

// HardenedOffset is the first hardened child number. Hardened derivation needs
// the full private key and is not available on shares.
const HardenedOffset uint32 = 1 << 31

var (
	ErrHardened     = errors.New("derivation: hardened derivation is not supported")
	ErrInvalidPath  = errors.New("derivation: invalid derivation path")
	ErrDepth        = errors.New("derivation: maximum depth reached")
	ErrInvalidChild = errors.New("derivation: invalid child, try the next index")
)

// DeriveChild derives child n of data.
func DeriveChild(data protocol.DerivData, n uint32) (protocol.DerivData, error) {
	if n >= HardenedOffset {
		return protocol.DerivData{}, errors.Wrapf(ErrHardened, "child %d", n)
	}
	if data.Depth == 255 {
		return protocol.DerivData{}, ErrDepth
	}

	pk := data.PublicKey.Bytes()
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], n)

	mac := hmac.New(sha512.New, data.ChainCode[:])
	mac.Write(pk[:])
	mac.Write(idx[:])
	sum := mac.Sum(nil)

	tweak, err := eckey.ScalarFromBytes(sum[:32])
	if err != nil {
		return protocol.DerivData{}, errors.Wrapf(ErrInvalidChild, "child %d", n)
	}

	childKey := data.PublicKey.Add(eckey.ScalarBaseMult(tweak))
	if childKey.IsIdentity() {
		return protocol.DerivData{}, errors.Wrapf(ErrInvalidChild, "child %d", n)
	}

	child := protocol.DerivData{
		Depth:             data.Depth + 1,
		ChildNumber:       n,
		ParentFingerprint: Fingerprint(data.PublicKey),
		PolyPoint:         data.PolyPoint.Add(tweak),
		PublicKey:         childKey,
	}
	copy(child.ChainCode[:], sum[32:])
	return child, nil
}

// DeriveFromPath derives along a path such as "m/0/1".
func DeriveFromPath(data protocol.DerivData, path string) (protocol.DerivData, error) {
	indices, err := ParsePath(path)
	if err != nil {
		return protocol.DerivData{}, err
	}

	for _, n := range indices {
		data, err = DeriveChild(data, n)
		if err != nil {
			return protocol.DerivData{}, err
		}
	}
	return data, nil
}

// ParsePath parses "m" followed by non-hardened indices separated by "/".
func ParsePath(path string) ([]uint32, error) {
	parts := strings.Split(path, "/")
	if parts[0] != "m" {
		return nil, errors.Wrapf(ErrInvalidPath, "%q does not start with m", path)
	}

	indices := make([]uint32, 0, len(parts)-1)
	for _, part := range parts[1:] {
		if strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h") {
			return nil, errors.Wrapf(ErrHardened, "path %q", path)
		}

		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidPath, "%q: %v", path, err)
		}
		if uint32(n) >= HardenedOffset {
			return nil, errors.Wrapf(ErrHardened, "path %q", path)
		}
		indices = append(indices, uint32(n))
	}
	return indices, nil
}

// Fingerprint is the first four bytes of HASH160 of the compressed key.
func Fingerprint(pk eckey.Point) protocol.Fingerprint {
	b := pk.Bytes()
	sha := sha256.Sum256(b[:])

	h := ripemd160.New()
	h.Write(sha[:])

	var fp protocol.Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

// DerivePartyChild returns a new Party holding child n of party's key.
func DerivePartyChild(party *protocol.Party, n uint32) (*protocol.Party, error) {
	if err := party.Validate(); err != nil {
		return nil, err
	}

	child, err := DeriveChild(party.KeyMaterial(), n)
	if err != nil {
		return nil, err
	}
	return party.WithKeyMaterial(child), nil
}

// DerivePartyFromPath returns a new Party holding the key at path.
func DerivePartyFromPath(party *protocol.Party, path string) (*protocol.Party, error) {
	if err := party.Validate(); err != nil {
		return nil, err
	}

	derived, err := DeriveFromPath(party.KeyMaterial(), path)
	if err != nil {
		return nil, err
	}
	return party.WithKeyMaterial(derived), nil
}
