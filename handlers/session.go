package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	log "github.com/sirupsen/logrus"
)

const (
	SessionCookieName = "washclub_checkout"
	sessionIDKey      = "sid"
)

// SessionManager hands out the opaque id that scopes checkout storage.
// The id lives in a signed cookie.
type SessionManager struct {
	store sessions.Store
	name  string
}

func NewSessionManager(secret string, opts sessions.Options) *SessionManager {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &opts
	return &SessionManager{store: store, name: SessionCookieName}
}

// DefaultCookieOptions are the cookie settings used outside of tests.
func DefaultCookieOptions(domain string, maxAge int, secure bool) sessions.Options {
	return sessions.Options{
		Path:     "/",
		Domain:   domain,
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ID returns the caller's checkout session id, issuing a new one when the
// cookie is missing or unreadable.
func (m *SessionManager) ID(w http.ResponseWriter, r *http.Request) string {
	session, err := m.store.Get(r, m.name)
	if err != nil {
		// gorilla returns a fresh session alongside decode errors
		log.WithError(err).Debug("Discarding unreadable checkout cookie")
	}

	if id, ok := session.Values[sessionIDKey].(string); ok && id != "" {
		return id
	}

	id := uuid.NewString()
	session.Values[sessionIDKey] = id
	if err := session.Save(r, w); err != nil {
		log.WithError(err).Warn("Failed to set checkout session cookie")
	}
	return id
}
