// Package fingerprint implements the message fingerprint & TTL gate
// (spec.md §4.1, component C1): source allowlisting, TTL enforcement, and
// replay/duplicate rejection ahead of the device state machine.
package fingerprint

import (
	"github.com/nanoclaw/nanoclaw/internal/protocol"
)

// seenCapacity bounds the fingerprint set; on overflow it is cleared
// rather than evicted individually — coarse but bounded-memory, per
// spec.md §4.1.
const seenCapacity = 512

// Rejection is returned by Gate.Check when a frame fails validation.
type Rejection string

const (
	RejectDeniedUnauthorizedSource Rejection = protocol.ReasonDeniedUnauthorizedSource
	RejectExpiredTTL               Rejection = protocol.ReasonExpiredTTL
	RejectReplayOrDuplicate        Rejection = protocol.ReasonReplayOrDuplicate
)

// Gate tracks inbound sequence/fingerprint state for one sender and
// enforces the allowlist/TTL/replay checks in the order spec.md §4.1
// requires. A Gate is not safe for concurrent use; callers own it
// exclusively (it is owned by the device state machine in this system).
type Gate struct {
	allowlist []string
	lastSeq   uint64
	seen      map[string]struct{}
}

// New creates a Gate with the given source allowlist. An empty allowlist
// admits all sources; a literal "*" entry also admits all sources.
func New(allowlist []string) *Gate {
	return &Gate{
		allowlist: allowlist,
		seen:      make(map[string]struct{}),
	}
}

// LastSeq returns the highest accepted sequence number seen so far.
func (g *Gate) LastSeq() uint64 { return g.lastSeq }

// isAllowed reports whether source passes the allowlist check.
func (g *Gate) isAllowed(source string) bool {
	if len(g.allowlist) == 0 {
		return true
	}
	for _, allowed := range g.allowlist {
		if allowed == "*" || allowed == source {
			return true
		}
	}
	return false
}

// Check validates msg against the allowlist, TTL, and replay/duplicate
// rules, in that order (spec.md §4.1). On acceptance it advances LastSeq
// and records the message's fingerprint; callers must not call Check
// again for a message it has already accepted.
//
// I-1: after acceptance, LastSeq() >= msg.Seq and msg.MessageID is in the
// seen set.
// I-3: Check only ever inspects inbound frames; outbound command emission
// must never call Check or otherwise mutate this Gate.
func (g *Gate) Check(msg *protocol.TransportMessage, nowMS uint64) (Rejection, bool) {
	if !g.isAllowed(msg.Source) {
		return RejectDeniedUnauthorizedSource, false
	}
	if msg.IsExpired(nowMS) {
		return RejectExpiredTTL, false
	}
	if g.isDuplicateOrStale(msg) {
		return RejectReplayOrDuplicate, false
	}

	g.accept(msg)
	return "", true
}

func (g *Gate) isDuplicateOrStale(msg *protocol.TransportMessage) bool {
	if msg.IsReplay(g.lastSeq) {
		return true
	}
	_, seen := g.seen[msg.MessageID]
	return seen
}

func (g *Gate) accept(msg *protocol.TransportMessage) {
	if msg.Seq > g.lastSeq {
		g.lastSeq = msg.Seq
	}
	if len(g.seen) >= seenCapacity {
		g.seen = make(map[string]struct{})
	}
	g.seen[msg.MessageID] = struct{}{}
}
