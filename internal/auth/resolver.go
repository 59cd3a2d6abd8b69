package auth

import (
	"fmt"

	"github.com/mclemens/timekeep/internal/model"
	"github.com/mclemens/timekeep/internal/store"
)

// Resolver maps an opaque session token to its user. Both the HTTP auth
// middleware and the WebSocket handshake go through it so a token means the
// same thing at every entry point.
type Resolver struct {
	sessions *store.SessionStore
	users    *store.UserStore
}

func NewResolver(sessions *store.SessionStore, users *store.UserStore) *Resolver {
	return &Resolver{sessions: sessions, users: users}
}

// Resolve returns the user owning the session token, or nil if either the
// session or the user is missing. The two misses are deliberately
// indistinguishable: both just mean "not authenticated".
func (r *Resolver) Resolve(token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}
	sess, err := r.sessions.GetByToken(token)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	user, err := r.users.GetByID(sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return user, nil
}
