package wire

import (
	crand "crypto/rand"
	"io"

	"github.com/NebulousLabs/hdkey/eckey"
	"github.com/NebulousLabs/hdkey/schnorr"
	dkeckey "github.com/chain5j/chain5j-dkls/eckey"
	"github.com/pkg/errors"
)

var (
	ErrUnsealed  = errors.New("wire: envelope is not sealed")
	ErrBadSeal   = errors.New("wire: envelope seal does not verify")
	ErrSenderKey = errors.New("wire: no identity key for sender")
)

// Identity is a party's long-term transport key. It authenticates envelopes
// and is unrelated to the threshold key.
type Identity struct {
	sk *eckey.SecretKey
}

func NewIdentity(rand io.Reader) (*Identity, error) {
	for {
		x, err := crand.Int(rand, dkeckey.Order())
		if err != nil {
			return nil, errors.Wrap(err, "wire: read identity key")
		}
		if x.Sign() == 0 {
			continue
		}

		sk, err := eckey.NewSecretKeyInt(x)
		if err != nil {
			return nil, errors.Wrap(err, "wire: identity key")
		}
		return &Identity{sk: sk}, nil
	}
}

// Public returns the compressed public identity key.
func (id *Identity) Public() eckey.CompressedPublicKey {
	return *id.sk.PublicKey().Compress()
}

// Seal signs the envelope digest with the identity key.
func (id *Identity) Seal(env *Envelope) error {
	d := env.Digest()
	sig, err := schnorr.Sign(id.sk, d[:])
	if err != nil {
		return errors.Wrap(err, "wire: seal envelope")
	}
	env.Signature = append([]byte(nil), sig[:]...)
	return nil
}

// VerifySeal checks the envelope signature against the sender's identity key.
func VerifySeal(pub eckey.CompressedPublicKey, env *Envelope) error {
	var sig schnorr.Signature
	if len(env.Signature) == 0 {
		return ErrUnsealed
	}
	if len(env.Signature) != len(sig) {
		return ErrBadSeal
	}
	copy(sig[:], env.Signature)

	pk, err := pub.Uncompress()
	if err != nil {
		return errors.Wrap(ErrBadSeal, err.Error())
	}

	d := env.Digest()
	if err := schnorr.Verify(&sig, pk, d[:]); err != nil {
		return ErrBadSeal
	}
	return nil
}

// Keyring maps party indices to identity keys.
type Keyring map[uint8]eckey.CompressedPublicKey

// Verify checks env against the key registered for its sender.
func (k Keyring) Verify(env *Envelope) error {
	pub, ok := k[env.Sender]
	if !ok {
		return errors.Wrapf(ErrSenderKey, "sender %d", env.Sender)
	}
	return VerifySeal(pub, env)
}
