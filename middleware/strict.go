package middleware

import (
	"net/http"

	netapi "github.com/MrEthical07/netapi"
)

// RequireAuthenticated admits any caller with a logged-in session.
func RequireAuthenticated(engine *netapi.Engine) func(http.Handler) http.Handler {
	return Guard(engine, "", "")
}
