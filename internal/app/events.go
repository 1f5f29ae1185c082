package app

import (
	"encoding/json"

	"github.com/ameles/Duet/internal/core"
	"github.com/ameles/Duet/internal/domain"
)

// Outbound event names. Inbound names live in the signal adapter; these are
// the ones the relay itself puts on the wire.
const (
	EventMe                = "me"
	EventOnlineUsers       = "online-users"
	EventIncomingCall      = "callToUser"
	EventUserUnavailable   = "userUnavailable"
	EventUserBusy          = "userBusy"
	EventIncomingWhileBusy = "incomingCallWhileBusy"
	EventCallAccepted      = "callAccepted"
	EventCallRejected      = "callRejected"
	EventCallEnded         = "callEnded"
	EventDisconnectUser    = "disconnectUser"
)

type MeEvent struct {
	Type string         `json:"type"`
	ID   core.SessionID `json:"id"`
}

type OnlineUsersEvent struct {
	Type  string        `json:"type"`
	Users []PresenceDTO `json:"users"`
}

// IncomingCallEvent is the forwarded invite. Signal is the caller's
// negotiation blob, carried verbatim.
type IncomingCallEvent struct {
	Type       string           `json:"type"`
	Signal     json.RawMessage  `json:"signal"`
	From       domain.UserID    `json:"from"`
	Name       string           `json:"name"`
	Email      string           `json:"email,omitempty"`
	ProfilePic string           `json:"profilepic,omitempty"`
	MediaKind  domain.MediaKind `json:"callType"`
}

// CallFailedEvent answers an invite the admission policy refused.
type CallFailedEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type IncomingWhileBusyEvent struct {
	Type       string        `json:"type"`
	From       domain.UserID `json:"from"`
	Name       string        `json:"name"`
	Email      string        `json:"email,omitempty"`
	ProfilePic string        `json:"profilepic,omitempty"`
}

type CallAcceptedEvent struct {
	Type      string           `json:"type"`
	Signal    json.RawMessage  `json:"signal"`
	From      domain.UserID    `json:"from"`
	MediaKind domain.MediaKind `json:"callType"`
}

type CallRejectedEvent struct {
	Type       string           `json:"type"`
	Name       string           `json:"name"`
	ProfilePic string           `json:"profilepic,omitempty"`
	CallType   domain.MediaKind `json:"callType"`
}

type CallEndedEvent struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type DisconnectUserEvent struct {
	Type    string         `json:"type"`
	DisUser core.SessionID `json:"disUser"`
}
