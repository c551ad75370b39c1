package api

import (
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// requestLogger logs incoming HTTP requests.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("remote", r.RemoteAddr).
			WithField("duration", time.Since(start)).
			Debug("Request handled")
	})
}

// requireBasicAuth validates HTTP basic credentials against the configured
// users. Passwords in config are bcrypt hashes.
func (s *server) requireBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || !s.checkCredentials(username, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="querybench"`)
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"authentication required"})

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *server) checkCredentials(username, password string) bool {
	for _, u := range s.cfg.Auth.Users {
		if u.Username != username {
			continue
		}

		return bcrypt.CompareHashAndPassword(
			[]byte(u.Password), []byte(password),
		) == nil
	}

	return false
}
