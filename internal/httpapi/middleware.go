package httpapi

import (
	"net"
	"net/http"
	"net/url"

	"github.com/satring/gateway/internal/ratelimit"
)

func sourceIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// csrfCheck enforces §4.7's Origin-host-equality policy for mutating
// methods. Requests with no Origin header are allowed through (non-browser
// clients never send one).
func (d *Deps) csrfCheck(r *http.Request) *apiError {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return nil
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host != d.BaseHost {
		return errCrossOriginBlocked
	}
	return nil
}

// withRateLimit wraps handler with a Redis fixed-window check against limit.
func (d *Deps) withRateLimit(limit ratelimit.Limit, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowed, err := d.Limiter.Allow(r.Context(), limit, sourceIP(r))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal error"})
			return
		}
		if !allowed {
			writeError(w, errRateLimited)
			return
		}
		handler(w, r)
	}
}
