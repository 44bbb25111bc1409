package protocol

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Fault is the category of an Abort.
type Fault uint8

const (
	FaultInvalidProof Fault = iota + 1
	FaultCommitmentMismatch
	FaultInvalidOTExtension
	FaultInconsistentMultiplication
	FaultInconsistentPolynomial
	FaultPublicKeyMismatch
	FaultMalformedMessage
	FaultInvalidSignature
	FaultDegenerateValue
	// FaultMissingMessages means fewer responses than required arrived for a phase.
	FaultMissingMessages
)

var faultNames = map[Fault]string{
	FaultInvalidProof:               "invalid proof",
	FaultCommitmentMismatch:         "commitment mismatch",
	FaultInvalidOTExtension:         "invalid OT extension proof",
	FaultInconsistentMultiplication: "inconsistent multiplication self-check",
	FaultInconsistentPolynomial:     "inconsistent polynomial commitment",
	FaultPublicKeyMismatch:          "public key mismatch",
	FaultMalformedMessage:           "malformed message",
	FaultInvalidSignature:           "invalid signature",
	FaultDegenerateValue:            "degenerate value",
	FaultMissingMessages:            "missing messages",
}

func (f Fault) String() string {
	if name, ok := faultNames[f]; ok {
		return name
	}
	return fmt.Sprintf("fault(%d)", uint8(f))
}

// Abort is the terminal outcome of a phase when a check on a counterparty's
// message fails. Index names the party held responsible. Every honest party
// evaluating the same messages reaches the same Abort.
type Abort struct {
	Index       uint8  `json:"index"`
	Fault       Fault  `json:"fault"`
	Description string `json:"description"`
}

func NewAbort(index uint8, fault Fault, format string, args ...interface{}) *Abort {
	a := &Abort{
		Index:       index,
		Fault:       fault,
		Description: fmt.Sprintf(format, args...),
	}

	zap.L().Named("protocol").Warn("session aborted",
		zap.Uint8("index", a.Index),
		zap.Stringer("fault", a.Fault),
		zap.String("description", a.Description),
	)
	return a
}

func (a *Abort) Error() string {
	return fmt.Sprintf("party %d aborted the session: %s: %s", a.Index, a.Fault, a.Description)
}

// ResourceExhaustion reports whether the abort was caused by missing messages
// rather than by a failed check.
func (a *Abort) ResourceExhaustion() bool {
	return a.Fault == FaultMissingMessages
}

// AsAbort extracts an Abort from err.
func AsAbort(err error) (*Abort, bool) {
	var a *Abort
	if errors.As(err, &a) {
		return a, true
	}
	return nil, false
}
