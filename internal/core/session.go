package core

import "fmt"

// SessionStatus is the state of the hosted authentication session.
type SessionStatus int

const (
	SessionLoading SessionStatus = iota
	SessionAuthenticated
	SessionAnonymous
)

func (s SessionStatus) String() string {
	switch s {
	case SessionLoading:
		return "loading"
	case SessionAuthenticated:
		return "authenticated"
	case SessionAnonymous:
		return "anonymous"
	default:
		return fmt.Sprintf("SessionStatus(%d)", int(s))
	}
}

// Session is the tagged union the auth provider reports. Owner is only
// meaningful when Status is SessionAuthenticated.
type Session struct {
	Status SessionStatus
	owner  Owner
}

func LoadingSession() Session   { return Session{Status: SessionLoading} }
func AnonymousSession() Session { return Session{Status: SessionAnonymous} }

func AuthenticatedSession(o Owner) Session {
	return Session{Status: SessionAuthenticated, owner: o}
}

// Owner returns the session owner, or ErrUnauthenticated for any state other
// than authenticated.
func (s Session) Owner() (Owner, error) {
	switch s.Status {
	case SessionAuthenticated:
		if s.owner.ID == "" {
			return Owner{}, fmt.Errorf("session has no owner id: %w", ErrUnauthenticated)
		}
		return s.owner, nil
	case SessionLoading:
		return Owner{}, fmt.Errorf("session still loading: %w", ErrUnauthenticated)
	case SessionAnonymous:
		return Owner{}, fmt.Errorf("anonymous session: %w", ErrUnauthenticated)
	default:
		return Owner{}, fmt.Errorf("unknown session state %s: %w", s.Status, ErrUnauthenticated)
	}
}
