package signal

import (
	"encoding/json"

	"github.com/ameles/Duet/internal/app"
	"github.com/ameles/Duet/internal/core"
	"github.com/ameles/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleCallToUser(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type invitePayload struct {
		Type         string          `json:"type"`
		CallToUserID string          `json:"callToUserId"`
		SignalData   json.RawMessage `json:"signalData"`
		From         string          `json:"from"`
		Name         string          `json:"name"`
		Email        string          `json:"email"`
		ProfilePic   string          `json:"profilepic"`
		CallType     string          `json:"callType"`
	}
	var p invitePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad invite payload")
		return
	}

	from := app.CallerInfo{
		ID:         domain.UserID(p.From),
		Name:       p.Name,
		Email:      p.Email,
		ProfilePic: p.ProfilePic,
	}
	// Prefer the identity bound at join over whatever the client claims.
	if uid, ok := ctl.Relay.SessionOf(sid); ok {
		from.ID = uid
	}

	if ctl.Limiter != nil && !ctl.Limiter.Allow(from.ID) {
		log.Warn().Str("module", "signal").Str("from", string(from.ID)).Msg("invite rate limited")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "too_many_calls",
		})
		return
	}

	ctl.Relay.Invite(conn, from, p.CallToUserID, p.SignalData, domain.NormalizeMediaKind(p.CallType))
}

func (ctl *SignalWSController) handleAnsweredCall(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type answerPayload struct {
		Type     string          `json:"type"`
		Signal   json.RawMessage `json:"signal"`
		From     string          `json:"from"`
		To       string          `json:"to"`
		CallType string          `json:"callType"`
	}
	var p answerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad answer payload")
		return
	}

	from := domain.UserID(p.From)
	if uid, ok := ctl.Relay.SessionOf(sid); ok {
		from = uid
	}

	ctl.Relay.Answer(from, p.To, p.Signal, domain.NormalizeMediaKind(p.CallType))
}

func (ctl *SignalWSController) handleRejectCall(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type rejectPayload struct {
		Type       string `json:"type"`
		To         string `json:"to"`
		Name       string `json:"name"`
		ProfilePic string `json:"profilepic"`
		CallType   string `json:"callType"`
	}
	var p rejectPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad reject payload")
		return
	}

	ctl.Relay.Reject(p.To, p.Name, p.ProfilePic, domain.NormalizeMediaKind(p.CallType))
}

func (ctl *SignalWSController) handleCallEnded(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type endPayload struct {
		Type string `json:"type"`
		To   string `json:"to"`
		Name string `json:"name"`
	}
	var p endPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad end payload")
		return
	}

	from, _ := ctl.Relay.SessionOf(sid)
	ctl.Relay.End(from, p.To, p.Name)
}
