package httpmw

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/chat-relay/internal/auth"
	"github.com/cwrk-planet/chat-relay/pkg/httputil"
)

type ctxKey string

const ctxKeyUsername ctxKey = "username"

type Resolver interface {
	Resolve(r *http.Request) (auth.Identity, error)
}

// RequireAuth rejects requests without an authenticated identity. Guests are
// not enough here.
func RequireAuth(res Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := res.Resolve(r)
			if err == nil && !id.Authenticated {
				err = auth.ErrUnauthorized
			}
			if err != nil {
				slog.Debug("httpmw.auth rejected", "path", r.URL.Path, "err", err)
				if errors.Is(err, auth.ErrInactiveUser) {
					httputil.Error(w, http.StatusForbidden, "inactive user")
					return
				}
				httputil.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUsername, id.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UsernameFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUsername).(string); ok {
		return v
	}
	return ""
}
