package app

import (
	"sync"

	"github.com/ameles/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

// Pairs is the call registry: for every user currently in an active call,
// the identity of their peer. Both directions are stored so either side
// resolves in O(1). A user keys at most one pairing at a time.
type Pairs struct {
	mu    sync.RWMutex
	peers map[domain.UserID]domain.UserID
}

func NewPairs() *Pairs {
	return &Pairs{peers: make(map[domain.UserID]domain.UserID)}
}

// IsBusy reports whether uid holds an active pairing.
func (p *Pairs) IsBusy(uid domain.UserID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.peers[uid]
	return ok
}

// Pair installs both directed entries. Existing entries are overwritten
// rather than rejected so that teardown stays idempotent; exclusivity is
// the admission check's job, not this map's.
func (p *Pairs) Pair(a, b domain.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peers[a] = b
	p.peers[b] = a
	log.Info().Str("module", "app.pairs").Str("a", string(a)).Str("b", string(b)).Msg("call active")
}

// Unpair removes uid's pairing and its peer's reverse entry, returning the
// peer so the caller can notify it. A second Unpair for either side is a
// no-op.
func (p *Pairs) Unpair(uid domain.UserID) (domain.UserID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	peer, ok := p.peers[uid]
	if !ok {
		return "", false
	}
	delete(p.peers, uid)
	if p.peers[peer] == uid {
		delete(p.peers, peer)
	}
	log.Info().Str("module", "app.pairs").Str("a", string(uid)).Str("b", string(peer)).Msg("call cleared")
	return peer, true
}
