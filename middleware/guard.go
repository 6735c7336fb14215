package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/shiftcrew/authkit"
)

// TokenValidator resolves an access token to its user. Both
// [authkit.Service] and every [authkit.Provider] satisfy it.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken string) (*authkit.User, error)
}

type userContextKey struct{}

// UserFromContext returns the user injected by [Guard], if any.
func UserFromContext(ctx context.Context) (*authkit.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(*authkit.User)
	return user, ok
}

// Guard returns middleware that rejects requests without a valid bearer
// token. The resolved user is placed in the request context; the client IP
// and user agent are forwarded so downstream audit events carry them.
func Guard(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := requestContext(r)
			user, err := validator.ValidateToken(ctx, token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware like [Guard] that additionally rejects
// users whose role is not in the allow-list with 403.
func RequireRole(validator TokenValidator, roles ...authkit.Role) func(http.Handler) http.Handler {
	allowed := make(map[authkit.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	guard := Guard(validator)
	return func(next http.Handler) http.Handler {
		return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[user.Role]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host != "" {
		ctx = authkit.WithClientIP(ctx, host)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = authkit.WithUserAgent(ctx, ua)
	}
	return ctx
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
