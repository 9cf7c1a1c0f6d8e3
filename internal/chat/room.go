package chat

import (
	"sync"

	"github.com/omochice/chat-relay/pkg/protocol"
)

// HistorySize is the number of recent broadcasts retained for replay to
// newly joined participants.
const HistorySize = 128

// Participant is the delivery capability the Room holds for each member.
// Deliver enqueues a payload on the participant's own write pipeline and
// must not block; the Room calls it with its lock held.
type Participant interface {
	Deliver(p protocol.Payload)
}

// Room tracks named active participants and a bounded history of recent
// broadcasts. A single mutex serializes membership mutations, history
// mutations, and fan-out, so a join's history replay can never interleave
// with a concurrent broadcast. The Room holds participants as non-owning
// handles; it never closes a session, only removes its registration.
type Room struct {
	mu      sync.Mutex
	members map[string]Participant
	history []protocol.Payload
}

// NewRoom creates an empty Room.
func NewRoom() *Room {
	return &Room{
		members: make(map[string]Participant),
	}
}

// Contains reports whether a participant is currently registered under name.
func (r *Room) Contains(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[name]
	return ok
}

// Join atomically claims name for p and replays the buffered history to it,
// oldest first. It returns false without registering when name is already
// held, so two sessions authenticating as the same name concurrently can
// never overwrite each other.
func (r *Room) Join(name string, p Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[name]; ok {
		return false
	}
	r.members[name] = p

	for _, msg := range r.history {
		p.Deliver(msg)
	}
	return true
}

// Leave removes the registration for name. Removing an absent name is a
// no-op.
func (r *Room) Leave(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, name)
}

// Broadcast appends p to the history, evicting the oldest entry beyond
// HistorySize, then delivers it to every registered participant including
// the originator.
func (r *Room) Broadcast(p protocol.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append(r.history, p)
	if len(r.history) > HistorySize {
		r.history = r.history[1:]
	}

	for _, member := range r.members {
		member.Deliver(p)
	}
}

// DeliverTo sends a directed prv payload to the participant registered as
// to. When to is not registered the message is silently dropped; no error
// is surfaced to the sender.
func (r *Room) DeliverTo(to, from, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	member, ok := r.members[to]
	if !ok {
		return
	}
	member.Deliver(protocol.Payload{Type: protocol.TypePrv, User: from, Text: text})
}

// MemberCount returns the number of registered participants.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// History returns a copy of the buffered broadcasts, oldest first.
func (r *Room) History() []protocol.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.Payload, len(r.history))
	copy(out, r.history)
	return out
}
