package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Auth guards the control API with a shared key, sent either as a Bearer
// token or in X-API-Key. Routes listed in open, written as "METHOD /path",
// skip the check so liveness probes work without the key. An empty apiKey
// disables the check entirely.
func Auth(apiKey string, open ...string) func(http.Handler) http.Handler {
	exempt := make(map[string]struct{}, len(open))
	for _, route := range open {
		exempt[route] = struct{}{}
	}
	key := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exempt[r.Method+" "+r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			switch token := requestKey(r); {
			case token == "":
				deny(w, "missing API key")
			case subtle.ConstantTimeCompare([]byte(token), key) != 1:
				deny(w, "invalid API key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func requestKey(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// deny writes the same {"error": ...} body the handlers use.
func deny(w http.ResponseWriter, msg string) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("WWW-Authenticate", `Bearer realm="sniper"`)
	w.WriteHeader(http.StatusUnauthorized)
	w.Write(body)
}
