package netapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Routes returns a chi router dispatching GET and POST requests under
// Config.MountPath. Other methods on the mount receive 405. Middlewares wrap
// every route.
func (e *Engine) Routes(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares...)

	dispatch := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		e.Dispatch(w, req, chi.URLParam(req, "*"))
	})

	mount := strings.TrimSuffix(e.config.MountPath, "/")
	r.Get(mount+"/*", dispatch)
	r.Post(mount+"/*", dispatch)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if e.redis != nil {
			if _, err := e.Ping(req.Context()); err != nil {
				http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}
