package middleware

import (
	"context"
	"net/http"

	netapi "github.com/MrEthical07/netapi"
	"github.com/MrEthical07/netapi/security"
)

type profileContextKey struct{}

// ProfileFromContext returns the profile stored by [Guard].
func ProfileFromContext(ctx context.Context) (security.Profile, bool) {
	p, ok := ctx.Value(profileContextKey{}).(security.Profile)
	return p, ok && p != nil
}

type profileSource interface {
	Profile(r *http.Request) (security.Profile, error)
}

// Guard admits requests whose session profile is allowed to call
// owner.method. Anonymous callers get 401, authenticated callers lacking the
// permission get 403, and session store failures get 503. An empty owner
// admits any authenticated caller.
func Guard(engine *netapi.Engine, owner, method string) func(http.Handler) http.Handler {
	var src profileSource
	if engine != nil {
		src = engine
	}
	return guard(src, owner, method)
}

func guard(src profileSource, owner, method string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if src == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			profile, err := src.Profile(r)
			if err != nil {
				http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
				return
			}
			if profile == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if owner != "" && profile.IsAllowed(owner, method) == nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), profileContextKey{}, profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
