package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"

	"konsult.org/internal/audit"
	"konsult.org/internal/obs"
)

// Double-submit cookie protocol: the token lives in an httpOnly cookie the
// attacker's page cannot read, and must be echoed back in a custom request
// header that cross-origin requests cannot set without a preflight. The
// response header mirror gives same-origin scripts their readable copy.
const (
	csrfCookieName     = "csrfToken"
	csrfRequestHeader  = "x-csrf-token"
	csrfResponseHeader = "X-CSRF-Token"
	csrfCookieMaxAge   = 24 * 60 * 60
	csrfTokenBytes     = 32
)

// Login and registration cannot yet hold a session cookie; they are
// protected by the rate limiter instead.
var csrfExemptPaths = []string{
	"/v1/auth/login",
	"/v1/auth/register",
}

type csrfTokenContextKey struct{}

func csrfTokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(csrfTokenContextKey{}).(string); ok {
		return v
	}
	return ""
}

// csrfGuard generates the token on safe methods and enforces the
// double-submit check on state-changing ones.
func (a *API) csrfGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			a.issueCsrfToken(w, r, next)
		default:
			a.checkCsrfToken(w, r, next)
		}
	})
}

func (a *API) issueCsrfToken(w http.ResponseWriter, r *http.Request, next http.Handler) {
	token := ""
	if c, err := r.Cookie(csrfCookieName); err == nil && c.Value != "" {
		token = c.Value
	}
	if token == "" {
		var err error
		token, err = newCsrfToken()
		if err != nil {
			a.internalError(w, r, err)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     csrfCookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   csrfCookieMaxAge,
			HttpOnly: true,
			Secure:   !a.isDevelopment(),
			SameSite: http.SameSiteStrictMode,
		})
	}
	// Always mirror the token so a caller can read it for later use.
	w.Header().Set(csrfResponseHeader, token)
	ctx := context.WithValue(r.Context(), csrfTokenContextKey{}, token)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func (a *API) checkCsrfToken(w http.ResponseWriter, r *http.Request, next http.Handler) {
	for _, p := range csrfExemptPaths {
		if r.URL.Path == p {
			next.ServeHTTP(w, r)
			return
		}
	}

	var cookieToken string
	if c, err := r.Cookie(csrfCookieName); err == nil {
		cookieToken = c.Value
	}
	headerToken := r.Header.Get(csrfRequestHeader)

	if cookieToken == "" || headerToken == "" {
		obs.ObserveAuth("csrf", "missing")
		_ = audit.LogEvent(r.Context(), "csrf.rejected", map[string]any{
			"path":   r.URL.Path,
			"reason": "missing",
		})
		writeError(w, http.StatusForbidden, "CSRF token missing")
		return
	}
	if !constantTimeEqual(cookieToken, headerToken) {
		obs.ObserveAuth("csrf", "mismatch")
		_ = audit.LogEvent(r.Context(), "csrf.rejected", map[string]any{
			"path":   r.URL.Path,
			"reason": "mismatch",
		})
		writeError(w, http.StatusForbidden, "CSRF token invalid")
		return
	}
	next.ServeHTTP(w, r)
}

// handleCsrfToken echoes the token the guard issued for this request.
func (a *API) handleCsrfToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	token := csrfTokenFromContext(r.Context())
	if token == "" {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"csrfToken": token})
}

func newCsrfToken() (string, error) {
	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// constantTimeEqual compares tokens without leaking the position of the
// first mismatching byte.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
