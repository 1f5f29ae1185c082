package app

import (
	"encoding/json"

	"github.com/ameles/Duet/internal/core"
	"github.com/ameles/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

// CallerInfo is the identity block an invite carries to the callee.
type CallerInfo struct {
	ID         domain.UserID
	Name       string
	Email      string
	ProfilePic string
}

func (ci CallerInfo) user() domain.User {
	return domain.User{ID: ci.ID, Username: ci.Name, Email: ci.Email, ProfilePic: ci.ProfilePic}
}

// Relay brokers call setup between two live sessions. It owns the roster
// and the pair registry; connection adapters own the sockets. Delivery is
// at-most-once: a frame to a dead or saturated connection is dropped, the
// relay keeps no queue and never retries.
type Relay struct {
	Roster *Roster
	Pairs  *Pairs
	Users  *Directory
}

func NewRelay(roster *Roster, pairs *Pairs, users *Directory) *Relay {
	return &Relay{Roster: roster, Pairs: pairs, Users: users}
}

// Register binds an identity to its connection and announces the new
// membership list to everyone.
func (r *Relay) Register(sid core.SessionID, user *domain.User, conn core.SignalConnection) {
	r.Users.Record(*user)
	r.Roster.Join(sid, core.NewUserSession(user, conn))
	r.broadcastOnline()
}

// Invite runs the admission check and forwards the offer. Busy-detection
// guards the callee only: a caller mid-ring holds no server-side state, so
// a second outbound invite is the client's problem, not ours.
func (r *Relay) Invite(caller core.SignalConnection, from CallerInfo, to string, signal json.RawMessage, kind domain.MediaKind) {
	r.Users.Record(from.user())

	target, ok := r.resolve(to)
	if !ok {
		log.Info().Str("module", "app.relay").Str("from", string(from.ID)).Str("to", to).Msg("invite: callee offline")
		r.send(caller, CallFailedEvent{Type: EventUserUnavailable, Message: "User is offline."})
		return
	}

	if r.Pairs.IsBusy(target.User().ID) {
		log.Info().Str("module", "app.relay").Str("from", string(from.ID)).Str("to", to).Msg("invite: callee busy")
		r.send(caller, CallFailedEvent{Type: EventUserBusy, Message: "User is currently in another call."})
		r.send(target.Signal(), IncomingWhileBusyEvent{
			Type:       EventIncomingWhileBusy,
			From:       from.ID,
			Name:       from.Name,
			Email:      from.Email,
			ProfilePic: from.ProfilePic,
		})
		return
	}

	r.send(target.Signal(), IncomingCallEvent{
		Type:       EventIncomingCall,
		Signal:     signal,
		From:       from.ID,
		Name:       from.Name,
		Email:      from.Email,
		ProfilePic: from.ProfilePic,
		MediaKind:  kind,
	})
}

// Answer forwards the acceptance and marks the call active. This is the
// single point where a pairing is created; from here on both parties
// count as busy.
func (r *Relay) Answer(from domain.UserID, to string, signal json.RawMessage, kind domain.MediaKind) {
	target, ok := r.resolve(to)
	if !ok {
		// Caller vanished between invite and answer. Its disconnect already
		// cleaned up, so installing a pairing now would wedge the answerer.
		log.Warn().Str("module", "app.relay").Str("from", string(from)).Str("to", to).Msg("answer: caller gone")
		return
	}
	r.send(target.Signal(), CallAcceptedEvent{
		Type:      EventCallAccepted,
		Signal:    signal,
		From:      from,
		MediaKind: kind,
	})
	r.Pairs.Pair(from, target.User().ID)
}

// Reject forwards the refusal. No pairing exists before answer, so there
// is nothing to clear in the registry.
func (r *Relay) Reject(to string, name, profilePic string, callType domain.MediaKind) {
	target, ok := r.resolve(to)
	if !ok {
		log.Info().Str("module", "app.relay").Str("to", to).Msg("reject: caller gone")
		return
	}
	r.send(target.Signal(), CallRejectedEvent{
		Type:       EventCallRejected,
		Name:       name,
		ProfilePic: profilePic,
		CallType:   callType,
	})
}

// End forwards the hang-up and clears both sides of the pairing.
func (r *Relay) End(from domain.UserID, to string, name string) {
	if target, ok := r.resolve(to); ok {
		r.send(target.Signal(), CallEndedEvent{Type: EventCallEnded, Name: name})
	}
	r.Pairs.Unpair(from)
}

// Disconnect is the teardown hook for channel loss, graceful or not. It
// purges roster and pairs, tells an in-call peer its counterpart is gone,
// and refreshes everyone's membership list. Safe to run twice.
func (r *Relay) Disconnect(sid core.SessionID) {
	name := ""
	if sess, ok := r.Roster.LookupSID(sid); ok {
		name = sess.User().Username
	}

	uid, left := r.Roster.Leave(sid)
	if left {
		if peer, ok := r.Pairs.Unpair(uid); ok {
			if sess, ok := r.Roster.Lookup(peer); ok {
				r.send(sess.Signal(), CallEndedEvent{Type: EventCallEnded, Name: name})
			}
		}
		r.broadcastOnline()
	}
	r.broadcast(DisconnectUserEvent{Type: EventDisconnectUser, DisUser: sid})
	log.Info().Str("module", "app.relay").Str("sid", string(sid)).Bool("was_present", left).Msg("session closed")
}

// SessionOf exposes the identity bound to a connection for the adapters.
func (r *Relay) SessionOf(sid core.SessionID) (domain.UserID, bool) {
	return r.Roster.UserOf(sid)
}

// resolve accepts either a user id or a socket id, since clients echo back
// whichever `from` they were handed.
func (r *Relay) resolve(to string) (core.UserSession, bool) {
	if sess, ok := r.Roster.Lookup(domain.UserID(to)); ok {
		return sess, true
	}
	return r.Roster.LookupSID(core.SessionID(to))
}

func (r *Relay) broadcastOnline() {
	r.broadcast(OnlineUsersEvent{Type: EventOnlineUsers, Users: r.Roster.Snapshot()})
}

func (r *Relay) broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("broadcast marshal")
		return
	}
	for _, sess := range r.Roster.Sessions() {
		_ = sess.Signal().TrySend(b)
	}
}

func (r *Relay) send(conn core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("send marshal")
		return
	}
	if err := conn.TrySend(b); err != nil {
		// At-most-once: the frame is gone, nothing queues behind it.
		log.Warn().Err(err).Str("module", "app.relay").Msg("frame dropped")
	}
}
