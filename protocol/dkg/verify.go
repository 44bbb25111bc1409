package dkg

import (
	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/zeroshare"
)

// VerifyZeroShareReveal checks a zero-sharing seed reveal against the
// commitment sent by the same party in phase 2. Transports may call it as
// soon as the reveal arrives; Phase4 runs the same check.
func VerifyZeroShareReveal(commitment TransmitInitZeroSharePhase2to4, reveal TransmitInitZeroSharePhase3to4) error {
	if commitment.Parties != reveal.Parties {
		return protocol.NewAbort(reveal.Parties.Sender, protocol.FaultMalformedMessage,
			"zero-share reveal %d->%d does not match commitment %d->%d",
			reveal.Parties.Sender, reveal.Parties.Receiver, commitment.Parties.Sender, commitment.Parties.Receiver)
	}
	if !zeroshare.VerifySeed(reveal.Seed, commitment.Commitment, reveal.Salt) {
		return protocol.NewAbort(reveal.Parties.Sender, protocol.FaultCommitmentMismatch, "zero-share seed does not match its commitment")
	}
	return nil
}

// VerifyChainCodeReveal checks a chain-code contribution against its commitment.
func VerifyChainCodeReveal(commitment BroadcastDerivationPhase2to4, reveal BroadcastDerivationPhase3to4) error {
	if commitment.SenderIndex != reveal.SenderIndex {
		return protocol.NewAbort(reveal.SenderIndex, protocol.FaultMalformedMessage,
			"chain-code reveal from %d does not match commitment from %d", reveal.SenderIndex, commitment.SenderIndex)
	}
	if err := commitment.CCCommitment.Verify(reveal.CCSalt, chainCodeParts(reveal.SenderIndex, reveal.AuxChainCode)...); err != nil {
		return protocol.NewAbort(reveal.SenderIndex, protocol.FaultCommitmentMismatch, "chain code does not match its commitment")
	}
	return nil
}
