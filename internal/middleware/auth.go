package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// CookieName is the cookie set by a successful login.
const CookieName = "authenticated"

// CookieValue derives the cookie value from the configured password so that
// changing the password invalidates issued cookies.
func CookieValue(password string) string {
	sum := sha256.Sum256([]byte("photolabels:" + password))
	return hex.EncodeToString(sum[:])
}

// AuthMiddleware requires the login cookie on every path except /auth/.
// With an empty password it lets everything through.
func AuthMiddleware(password string, next http.Handler) http.Handler {
	if password == "" {
		return next
	}
	expected := CookieValue(password)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/auth/") {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(CookieName)
		if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(expected)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
