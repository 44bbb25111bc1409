package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/protocol/signing"
	"github.com/chain5j/chain5j-dkls/rng"
	"github.com/chain5j/chain5j-dkls/wire"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// writeParty stores party under dir as party-<index><suffix>.json.
func writeParty(dir string, party *protocol.Party, suffix string) (string, error) {
	b, err := wire.Encode(wire.KindParty, party.SessionID, party.PartyIndex, 0, party)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.Wrap(err, "create output directory")
	}
	path := filepath.Join(dir, fmt.Sprintf("party-%d%s.json", party.PartyIndex, suffix))
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}

func readParty(path string) (*protocol.Party, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var party protocol.Party
	if _, err := wire.Decode(b, wire.KindParty, &party); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if err := party.Validate(); err != nil {
		return nil, errors.Wrapf(err, "party file %s", path)
	}
	return &party, nil
}

// newSessionID draws a fresh 32-byte session id, or expands seed into one.
func newSessionID(seed string) ([]byte, error) {
	id := make([]byte, protocol.SessionIDSize)
	r := rng.Reader()
	if seed != "" {
		r = rng.NewDeterministic([]byte("session-id:" + seed))
	}
	if _, err := io.ReadFull(r, id); err != nil {
		return nil, errors.Wrap(err, "read session id")
	}
	return id, nil
}

// messageDigest returns the digest to sign: a given hex digest, or the
// Keccak-256 hash of message.
func messageDigest(message, digestHex string) (signing.Digest, error) {
	var d signing.Digest
	switch {
	case digestHex != "" && message != "":
		return d, errors.New("give either --message or --digest")
	case digestHex != "":
		b, err := hex.DecodeString(strings.TrimPrefix(digestHex, "0x"))
		if err != nil || len(b) != signing.DigestSize {
			return d, errors.Errorf("digest must be %d bytes of hex", signing.DigestSize)
		}
		copy(d[:], b)
	case message != "":
		copy(d[:], crypto.Keccak256([]byte(message)))
	default:
		return d, errors.New("missing --message or --digest")
	}
	return d, nil
}

func decodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid hex")
	}
	return b, nil
}
