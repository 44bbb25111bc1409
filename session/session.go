// Package session drives one party through a DKG or signing run over a
// message transport. It owns the per-phase barrier: a phase starts only once
// every message of the previous phase addressed to this party has arrived, and
// a phase that waits longer than the configured timeout ends the run with a
// missing-messages abort.
package session

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"sort"
	"time"

	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/chain5j/chain5j-dkls/rng"
	"github.com/chain5j/chain5j-dkls/wire"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultPhaseTimeout bounds the wait for the messages of one phase.
const DefaultPhaseTimeout = 30 * time.Second

// Transport moves opaque messages between parties. Collect blocks until the
// phase message of every party in from arrived; when ctx ends first it returns
// the messages that did arrive together with an error.
type Transport interface {
	Index() uint8
	Send(ctx context.Context, to uint8, phase string, msg []byte) error
	Collect(ctx context.Context, phase string, from []uint8) (map[uint8][]byte, error)
}

// Runner runs protocol sessions for the party behind Transport.
type Runner struct {
	Transport    Transport
	Log          *zap.Logger
	Rand         io.Reader
	PhaseTimeout time.Duration

	// Identity, when set, seals every outgoing envelope.
	Identity *wire.Identity
	// Keyring, when set, is required to verify every incoming envelope.
	Keyring wire.Keyring
}

func NewRunner(t Transport, log *zap.Logger) *Runner {
	return &Runner{
		Transport:    t,
		Log:          log,
		Rand:         rng.Reader(),
		PhaseTimeout: DefaultPhaseTimeout,
	}
}

func (r *Runner) logger() *zap.Logger {
	if r.Log != nil {
		return r.Log
	}
	return zap.L().Named("session")
}

func (r *Runner) rand() io.Reader {
	if r.Rand != nil {
		return r.Rand
	}
	return rng.Reader()
}

func (r *Runner) timeout() time.Duration {
	if r.PhaseTimeout > 0 {
		return r.PhaseTimeout
	}
	return DefaultPhaseTimeout
}

func (r *Runner) checkIndex(idx uint8) error {
	if r.Transport == nil {
		return errors.Wrap(protocol.ErrInvalidInput, "no transport")
	}
	if r.Transport.Index() != idx {
		return errors.Wrapf(protocol.ErrInvalidInput, "transport of party %d used for party %d", r.Transport.Index(), idx)
	}
	return nil
}

// send delivers v to a single party.
func (r *Runner) send(ctx context.Context, sid []byte, kind wire.Kind, phase string, to uint8, v interface{}) error {
	b, err := r.encode(sid, kind, to, v)
	if err != nil {
		return err
	}
	return errors.Wrapf(r.Transport.Send(ctx, to, mailbox(phase, sid), b), "session: send %s to %d", phase, to)
}

// broadcast delivers one envelope, addressed to nobody in particular, to
// every party in to.
func (r *Runner) broadcast(ctx context.Context, sid []byte, kind wire.Kind, phase string, to []uint8, v interface{}) error {
	b, err := r.encode(sid, kind, 0, v)
	if err != nil {
		return err
	}
	for _, j := range to {
		if err := r.Transport.Send(ctx, j, mailbox(phase, sid), b); err != nil {
			return errors.Wrapf(err, "session: broadcast %s to %d", phase, j)
		}
	}
	return nil
}

func (r *Runner) encode(sid []byte, kind wire.Kind, to uint8, v interface{}) ([]byte, error) {
	env, err := wire.NewEnvelope(kind, sid, r.Transport.Index(), to, v)
	if err != nil {
		return nil, err
	}
	if r.Identity != nil {
		if err := r.Identity.Seal(env); err != nil {
			return nil, err
		}
	}
	return env.Marshal()
}

// collect waits for the phase messages from every party in from and checks
// their envelopes. A missing message or a bad envelope ends the run with an
// Abort naming the lowest offending sender.
func (r *Runner) collect(ctx context.Context, sid []byte, phase string, from []uint8, broadcast bool) (map[uint8]*wire.Envelope, error) {
	from = sortedCopy(from)

	pctx, cancel := context.WithTimeout(ctx, r.timeout())
	msgs, err := r.Transport.Collect(pctx, mailbox(phase, sid), from)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "session: %s", phase)
		}
		for _, j := range from {
			if _, ok := msgs[j]; !ok {
				return nil, protocol.NewAbort(j, protocol.FaultMissingMessages, "phase %s: %v", phase, err)
			}
		}
		return nil, errors.Wrapf(err, "session: %s", phase)
	}

	receiver := r.Transport.Index()
	if broadcast {
		receiver = 0
	}

	envs := make(map[uint8]*wire.Envelope, len(from))
	for _, j := range from {
		env, err := wire.Parse(msgs[j])
		if err != nil {
			return nil, protocol.NewAbort(j, protocol.FaultMalformedMessage, "phase %s: %v", phase, err)
		}
		if env.Sender != j || env.Receiver != receiver || !bytes.Equal(env.SessionID, sid) {
			return nil, protocol.NewAbort(j, protocol.FaultMalformedMessage,
				"phase %s: envelope %d->%d does not belong here", phase, env.Sender, env.Receiver)
		}
		if r.Keyring != nil {
			if err := r.Keyring.Verify(env); err != nil {
				return nil, protocol.NewAbort(j, protocol.FaultMalformedMessage, "phase %s: %v", phase, err)
			}
		}
		envs[j] = env
	}
	return envs, nil
}

// open decodes a collected payload, charging decoding failures to its sender.
func open(env *wire.Envelope, kind wire.Kind, v interface{}) error {
	if err := env.Open(kind, v); err != nil {
		return protocol.NewAbort(env.Sender, protocol.FaultMalformedMessage, "%v", err)
	}
	return nil
}

// mailbox scopes a phase name to one session, so that sessions sharing a
// transport never see each other's messages.
func mailbox(phase string, sid []byte) string {
	return phase + "/" + hex.EncodeToString(sid)
}

func sortedCopy(set []uint8) []uint8 {
	out := append([]uint8(nil), set...)
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}
