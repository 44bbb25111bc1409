package main

import (
	"fmt"

	"github.com/chain5j/chain5j-dkls/eckey"
	"github.com/chain5j/chain5j-dkls/protocol/signing"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	verifyParty     string
	verifyPublicKey string
	verifyMessage   string
	verifyDigest    string
	verifySignature string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify an ECDSA signature",
	Long: `Check a signature (r||s, or r||s||v) against a public key, given directly or
taken from a party file. With a recovery id the recovered key must match too.

Example:
  dklsctl verify --party keys/party-1.json --message "hello" --signature 0x...`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyParty, "party", "", "party file holding the public key")
	verifyCmd.Flags().StringVar(&verifyPublicKey, "public-key", "", "compressed public key (hex)")
	verifyCmd.Flags().StringVarP(&verifyMessage, "message", "m", "", "signed message")
	verifyCmd.Flags().StringVar(&verifyDigest, "digest", "", "signed 32-byte digest (hex)")
	verifyCmd.Flags().StringVar(&verifySignature, "signature", "", "signature r||s or r||s||v (hex)")
	if err := verifyCmd.MarkFlagRequired("signature"); err != nil {
		panic(fmt.Sprintf("failed to mark signature flag as required: %v", err))
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	pk, err := verifyKey()
	if err != nil {
		return err
	}
	digest, err := messageDigest(verifyMessage, verifyDigest)
	if err != nil {
		return err
	}

	raw, err := decodeHex(verifySignature)
	if err != nil {
		return err
	}
	if len(raw) != 2*eckey.ScalarSize && len(raw) != 2*eckey.ScalarSize+1 {
		return errors.Errorf("signature has %d bytes", len(raw))
	}
	r, err := eckey.ScalarFromBytes(raw[:eckey.ScalarSize])
	if err != nil {
		return errors.Wrap(err, "signature r")
	}
	s, err := eckey.ScalarFromBytes(raw[eckey.ScalarSize : 2*eckey.ScalarSize])
	if err != nil {
		return errors.Wrap(err, "signature s")
	}

	if !signing.VerifyEcdsaSignature(digest, pk, r, s) {
		return signing.ErrInvalidSignature
	}

	if len(raw) == 2*eckey.ScalarSize+1 {
		recovered, err := signing.RecoverPublicKey(digest, &signing.Signature{R: r, S: s}, raw[2*eckey.ScalarSize])
		if err != nil {
			return err
		}
		if !recovered.Equal(pk) {
			return errors.Wrap(signing.ErrInvalidRecoveryID, "recovered a different key")
		}
	}

	fmt.Println("Signature: OK")
	if s.IsOverHalfOrder() {
		fmt.Println("Note: s is in the upper half of the order")
	}
	return nil
}

func verifyKey() (eckey.Point, error) {
	switch {
	case verifyParty != "" && verifyPublicKey != "":
		return eckey.Point{}, errors.New("give either --party or --public-key")
	case verifyParty != "":
		party, err := readParty(verifyParty)
		if err != nil {
			return eckey.Point{}, err
		}
		return party.PublicKey, nil
	case verifyPublicKey != "":
		b, err := decodeHex(verifyPublicKey)
		if err != nil {
			return eckey.Point{}, err
		}
		return eckey.PointFromBytes(b)
	default:
		return eckey.Point{}, errors.New("missing --party or --public-key")
	}
}
