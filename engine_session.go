package netapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/netapi/security"
	"github.com/MrEthical07/netapi/session"
	"go.uber.org/zap"
)

// loadSession returns the session named by the request cookie, or a fresh
// unsaved session when the cookie is absent, invalid, or stale.
func (e *Engine) loadSession(ctx context.Context, r *http.Request) (*session.Session, error) {
	c, err := r.Cookie(e.config.Cookie.Name)
	if err != nil || c.Value == "" {
		return e.newSession(), nil
	}

	claims, err := e.tokens.Parse(c.Value)
	if err != nil {
		e.logger.Debug("rejected session cookie", zap.Error(err), zap.String("request_id", RequestID(ctx)))
		return e.newSession(), nil
	}

	sess, err := e.sessions.Load(ctx, claims.SID)
	switch {
	case err == nil:
		return sess, nil
	case errors.Is(err, session.ErrSessionNotFound):
		return e.newSession(), nil
	case errors.Is(err, session.ErrRedisUnavailable):
		return nil, dispatchError(CodeIOError, "session store unavailable", err)
	default:
		e.logger.Warn("discarding unreadable session", zap.String("session", claims.SID), zap.Error(err))
		return e.newSession(), nil
	}
}

func (e *Engine) newSession() *session.Session {
	return session.New(e.config.Session.AbsoluteSessionLifetime)
}

// commitSession persists a modified session and issues the cookie for a new
// one. It runs before any body byte is written.
func (e *Engine) commitSession(ctx context.Context, d *dispatch) error {
	sess := d.sess
	if sess == nil || !sess.Dirty() {
		return nil
	}
	created := sess.IsNew()

	ttl := e.config.Session.AbsoluteSessionLifetime
	if e.config.Session.SlidingExpiration {
		ttl = e.config.Session.IdleTTL
	}
	if err := e.sessions.Save(ctx, sess, ttl); err != nil {
		return dispatchError(CodeIOError, "cannot save session", err)
	}
	if !created {
		return nil
	}

	expires := time.Unix(sess.ExpiresAt, 0)
	token, err := e.tokens.Issue(sess.ID, expires)
	if err != nil {
		return dispatchError(CodeIOError, "cannot sign session cookie", err)
	}
	http.SetCookie(d.w, e.sessionCookie(token, expires))
	e.metrics.Inc(MetricSessionCreated)
	return nil
}

func (e *Engine) sessionCookie(value string, expires time.Time) *http.Cookie {
	c := e.config.Cookie
	return &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		Expires:  expires,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		SameSite: c.SameSite,
	}
}

// Profile returns the profile attached to the session named by r's cookie, or
// nil for anonymous callers. It never creates or saves a session.
func (e *Engine) Profile(r *http.Request) (security.Profile, error) {
	sess, err := e.loadSession(r.Context(), r)
	if err != nil {
		return nil, err
	}
	return sess.Profile(), nil
}
