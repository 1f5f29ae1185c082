package app

import (
	"sync"

	"github.com/ameles/Duet/internal/core"
	"github.com/ameles/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

// PresenceDTO is the wire view of one roster entry, as carried by the
// online-users broadcast.
type PresenceDTO struct {
	UserID   domain.UserID `json:"userId"`
	Name     string        `json:"name"`
	SocketID string        `json:"socketId"`
}

type rosterEntry struct {
	SID     core.SessionID
	Session core.UserSession
}

// Roster is the presence directory: who is reachable right now, and on
// which connection. Pure process-lifetime state, one entry per user.
type Roster struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]*rosterEntry
	bySID  map[core.SessionID]domain.UserID
}

func NewRoster() *Roster {
	return &Roster{
		byUser: make(map[domain.UserID]*rosterEntry),
		bySID:  make(map[core.SessionID]domain.UserID),
	}
}

// Join upserts the caller's entry. A repeat join under the same user id
// replaces the connection handle rather than adding a duplicate.
func (r *Roster) Join(sid core.SessionID, sess core.UserSession) {
	uid := sess.User().ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byUser[uid]; ok && prev.SID != sid {
		delete(r.bySID, prev.SID)
		log.Info().Str("module", "app.roster").Str("user", string(uid)).Str("old_sid", string(prev.SID)).Msg("replaced stale connection")
	}
	r.byUser[uid] = &rosterEntry{SID: sid, Session: sess}
	r.bySID[sid] = uid
	log.Info().Str("module", "app.roster").Str("user", string(uid)).Str("sid", string(sid)).Msg("user joined")
}

// Leave removes the entry bound to sid and reports which user it was.
// Safe against duplicate disconnects and against a user that has since
// re-joined on a newer connection.
func (r *Roster) Leave(sid core.SessionID) (domain.UserID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	uid, ok := r.bySID[sid]
	if !ok {
		return "", false
	}
	delete(r.bySID, sid)
	if entry, ok := r.byUser[uid]; ok && entry.SID == sid {
		delete(r.byUser, uid)
		log.Info().Str("module", "app.roster").Str("user", string(uid)).Str("sid", string(sid)).Msg("user left")
		return uid, true
	}
	return "", false
}

// Lookup resolves a user to its current session, if connected.
func (r *Roster) Lookup(uid domain.UserID) (core.UserSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.byUser[uid]; ok {
		return entry.Session, true
	}
	return nil, false
}

// LookupSID resolves a connection id to its session. Used when a client
// addresses its peer by the socket id it saw in an earlier envelope.
func (r *Roster) LookupSID(sid core.SessionID) (core.UserSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uid, ok := r.bySID[sid]
	if !ok {
		return nil, false
	}
	if entry, ok := r.byUser[uid]; ok {
		return entry.Session, true
	}
	return nil, false
}

// UserOf reports the identity bound to a connection, if it joined.
func (r *Roster) UserOf(sid core.SessionID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uid, ok := r.bySID[sid]
	return uid, ok
}

// Snapshot returns the full membership list for the online-users broadcast.
func (r *Roster) Snapshot() []PresenceDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PresenceDTO, 0, len(r.byUser))
	for uid, entry := range r.byUser {
		out = append(out, PresenceDTO{
			UserID:   uid,
			Name:     entry.Session.User().Username,
			SocketID: string(entry.SID),
		})
	}
	return out
}

// Sessions returns every live session, for fan-out.
func (r *Roster) Sessions() []core.UserSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.UserSession, 0, len(r.byUser))
	for _, entry := range r.byUser {
		out = append(out, entry.Session)
	}
	return out
}
