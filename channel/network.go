package channel

import (
	"sync"

	"github.com/sbaloglu/proverif-codes/term"
	"golang.org/x/xerrors"
)

// Network is an orchestrator for the channels declared by a model. It owns
// the private queues and the public transcript of one session.
type Network struct {
	sync.Mutex

	sig        *term.Signature
	queues     map[string][]term.Term
	transcript []Broadcast
}

// NewNetwork creates a network with an empty queue per declared private
// channel.
func NewNetwork(sig *term.Signature) *Network {
	queues := make(map[string][]term.Term)
	for _, decl := range sig.Channels() {
		if decl.Private {
			queues[decl.Name] = nil
		}
	}

	return &Network{
		sig:    sig,
		queues: queues,
	}
}

// Send puts the message on the channel. On a private channel the message
// is queued for the endpoints; on a public channel it enters the
// transcript and the caller must add it to the attacker knowledge. The
// returned flag reports whether the channel is public.
func (n *Network) Send(name string, msg term.Term) (bool, error) {
	decl, found := n.sig.Channel(name)
	if !found {
		return false, xerrors.Errorf("channel '%s' is not declared", name)
	}

	n.Lock()
	defer n.Unlock()

	if decl.Private {
		n.queues[name] = append(n.queues[name], msg)
		return false, nil
	}

	n.transcript = append(n.transcript, Broadcast{Channel: name, Message: msg})

	return true, nil
}

// Consume takes the oldest message of the private channel matching the
// pattern out of the queue and returns it with the extended bindings. It
// returns false when no queued message matches, which suspends the
// receiving process.
func (n *Network) Consume(name string, pattern term.Expr, base term.Bindings) (term.Term, term.Bindings, bool, error) {
	decl, found := n.sig.Channel(name)
	if !found {
		return nil, nil, false, xerrors.Errorf("channel '%s' is not declared", name)
	}

	if !decl.Private {
		return nil, nil, false, xerrors.Errorf(
			"channel '%s' is public: receives take attacker messages", name)
	}

	n.Lock()
	defer n.Unlock()

	for i, msg := range n.queues[name] {
		binding := base.Clone()
		if !term.Match(pattern, msg, binding) {
			continue
		}

		n.queues[name] = append(n.queues[name][:i], n.queues[name][i+1:]...)

		return msg, binding, true, nil
	}

	return nil, nil, false, nil
}

// Matchable reports whether a Consume with the pattern would currently
// succeed, without consuming. The engine uses it to decide whether a
// receiving process is runnable.
func (n *Network) Matchable(name string, pattern term.Expr, base term.Bindings) (bool, error) {
	decl, found := n.sig.Channel(name)
	if !found {
		return false, xerrors.Errorf("channel '%s' is not declared", name)
	}

	if !decl.Private {
		return false, xerrors.Errorf(
			"channel '%s' is public: receives take attacker messages", name)
	}

	n.Lock()
	defer n.Unlock()

	for _, msg := range n.queues[name] {
		if term.Match(pattern, msg, base.Clone()) {
			return true, nil
		}
	}

	return false, nil
}

// RecordInjection appends an attacker-built message delivered on the
// public channel to the transcript.
func (n *Network) RecordInjection(name string, msg term.Term) error {
	decl, found := n.sig.Channel(name)
	if !found {
		return xerrors.Errorf("channel '%s' is not declared", name)
	}

	if decl.Private {
		return xerrors.Errorf("channel '%s' is private: the attacker cannot inject", name)
	}

	n.Lock()
	defer n.Unlock()

	n.transcript = append(n.transcript, Broadcast{Channel: name, Message: msg, Injected: true})

	return nil
}

// Transcript returns a snapshot of the public traffic in send order.
func (n *Network) Transcript() []Broadcast {
	n.Lock()
	defer n.Unlock()

	transcript := make([]Broadcast, len(n.transcript))
	copy(transcript, n.transcript)

	return transcript
}

// Queue returns a snapshot of the pending messages of the private channel.
func (n *Network) Queue(name string) []term.Term {
	n.Lock()
	defer n.Unlock()

	queue := make([]term.Term, len(n.queues[name]))
	copy(queue, n.queues[name])

	return queue
}
