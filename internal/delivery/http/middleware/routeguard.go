package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"bouncer/internal/domain"
)

// LoginPath is the page unauthenticated visitors are sent to.
const LoginPath = "/login"

// RouteGuard redirects page requests by session state. Unauthenticated requests for a
// protected path (or anything below it) go to /login?next=<original>, and authenticated
// requests for /login go to /events. API routes are never matched; they answer 401 themselves.
func RouteGuard(verifier domain.TokenVerifier, protected []string, next http.Handler) http.Handler {
	prefixes := make([]string, 0, len(protected))
	for _, p := range protected {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p != "" {
			prefixes = append(prefixes, p)
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		path := r.URL.Path
		isLogin := path == LoginPath
		guarded := isProtected(path, prefixes)
		if !isLogin && !guarded {
			next.ServeHTTP(w, r)
			return
		}

		authenticated := false
		if token := TokenFromRequest(r); token != "" {
			_, err := verifyAccess(verifier, token)
			authenticated = err == nil
		}

		switch {
		case isLogin && authenticated:
			http.Redirect(w, r, "/events", http.StatusFound)
		case guarded && !authenticated:
			http.Redirect(w, r, LoginPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func isProtected(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
