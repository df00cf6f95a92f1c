// Package middleware wires the engine's route guard into net/http.
package middleware

import (
	"context"
	"net/http"
	"net/url"

	credgate "github.com/kyralis/credgate"
	"github.com/kyralis/credgate/session"
)

type sessionContextKey struct{}

// SessionFromContext returns the session attached by [Guard] for the
// current request.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess, ok
}

// Guard protects a handler chain: it reads the session cookie, resolves the
// session record, and consults the engine's route guard. Denied requests
// are redirected to the configured login path with the originally requested
// path attached as a "next" query parameter. With sliding expiration
// enabled, each pass extends the session and re-sets the cookie with a
// freshly signed token.
func Guard(engine *credgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			guard := engine.GuardSettings()
			sess := sessionFromRequest(engine, r, guard.CookieName)

			decision := engine.Authorize(r.Context(), sess, r.URL.Path)
			if !decision.Allowed {
				redirectToLogin(w, r, guard.LoginPath, decision.RequestedPath)
				return
			}

			if engine.SlidingExpiration() {
				if touched, token, err := engine.TouchSession(r.Context(), sess.SessionID); err == nil {
					sess = touched
					// The re-signed token must reach the client, or the
					// cookie still dies at the original lifetime.
					http.SetCookie(w, &http.Cookie{
						Name:     guard.CookieName,
						Value:    token,
						Path:     "/",
						HttpOnly: true,
					})
				}
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromRequest(engine *credgate.Engine, r *http.Request, cookieName string) *session.Session {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	sess, err := engine.SessionFromToken(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return sess
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, loginPath, requestedPath string) {
	target := loginPath
	if requestedPath != "" && requestedPath != loginPath {
		target = loginPath + "?next=" + url.QueryEscape(requestedPath)
	}
	http.Redirect(w, r, target, http.StatusFound)
}
