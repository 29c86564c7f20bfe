package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

type Identity struct {
	Username string
	// Authenticated is false for the guest fallback.
	Authenticated bool
}

// ActiveChecker reports whether a username may currently connect.
type ActiveChecker interface {
	IsActive(username string) bool
}

// DenyList is an ActiveChecker that rejects a fixed set of usernames.
type DenyList map[string]struct{}

func NewDenyList(users []string) DenyList {
	d := make(DenyList, len(users))
	for _, u := range users {
		if u = strings.TrimSpace(u); u != "" {
			d[u] = struct{}{}
		}
	}
	return d
}

func (d DenyList) IsActive(username string) bool {
	_, denied := d[username]
	return !denied
}

type ResolverConfig struct {
	// TrustClientUsername accepts ?username= when no token is presented.
	TrustClientUsername bool
	AllowGuests         bool
	GuestName           string
}

type Resolver struct {
	verifier *Verifier // nil disables tokens
	active   ActiveChecker
	cfg      ResolverConfig
}

func NewResolver(verifier *Verifier, active ActiveChecker, cfg ResolverConfig) *Resolver {
	if cfg.GuestName == "" {
		cfg.GuestName = "Guest"
	}

	return &Resolver{verifier: verifier, active: active, cfg: cfg}
}

// Resolve picks the identity for r. A presented token must verify; without one
// the trusted username, then the guest fallback, are tried in that order.
func (res *Resolver) Resolve(r *http.Request) (Identity, error) {
	if tok := TokenFromRequest(r); tok != "" {
		if res.verifier == nil {
			return Identity{}, ErrInvalidToken
		}
		user, err := res.verifier.Verify(tok)
		if err != nil {
			slog.Debug("auth.resolve token rejected", "err", err)
			return Identity{}, err
		}
		return res.checkActive(Identity{Username: user, Authenticated: true})
	}

	if res.cfg.TrustClientUsername {
		if user := strings.TrimSpace(r.URL.Query().Get("username")); user != "" {
			return res.checkActive(Identity{Username: user, Authenticated: true})
		}
	}

	if res.cfg.AllowGuests {
		return Identity{Username: res.cfg.GuestName}, nil
	}

	return Identity{}, ErrUnauthorized
}

func (res *Resolver) checkActive(id Identity) (Identity, error) {
	if res.active != nil && !res.active.IsActive(id.Username) {
		return Identity{}, ErrInactiveUser
	}
	return id, nil
}

// TokenFromRequest reads the access_token query parameter or a Bearer Authorization header.
func TokenFromRequest(r *http.Request) string {
	if tok := strings.TrimSpace(r.URL.Query().Get("access_token")); tok != "" {
		return tok
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
