package signal

import (
	"encoding/json"

	"github.com/ameles/Duet/internal/core"
	"github.com/ameles/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

// handleJoin binds the connection to the identity the upstream auth layer
// gave the client. A join without an id is logged and ignored: the socket
// stays open but never enters the roster.
func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type joinPayload struct {
		Type       string `json:"type"`
		ID         string `json:"id"`
		Name       string `json:"name"`
		Email      string `json:"email"`
		ProfilePic string `json:"profilepic"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		return
	}

	user, err := domain.NewUser(domain.UserID(p.ID), p.Name)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("invalid join, ignoring")
		return
	}
	user.Email = p.Email
	user.ProfilePic = p.ProfilePic

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", p.ID).Str("name", p.Name).Msg("join")
	ctl.Relay.Register(sid, user, conn)
}
