package core

import "github.com/ameles/Duet/internal/domain"

// UserSession binds an authenticated identity to its live signaling
// transport. This is what the roster stores and routes to.
type UserSession interface {
	User() *domain.User
	Signal() SignalConnection
}

// userSession implements UserSession by pairing identity + transport.
type userSession struct {
	user *domain.User
	conn SignalConnection
}

func NewUserSession(user *domain.User, conn SignalConnection) UserSession {
	return &userSession{user: user, conn: conn}
}

func (s *userSession) User() *domain.User       { return s.user }
func (s *userSession) Signal() SignalConnection { return s.conn }
