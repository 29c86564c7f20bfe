package ws

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch {
		case o == "":
		case o == "*":
			p.allowAll = true
		default:
			n, ok := normalizeOrigin(o)
			if !ok {
				slog.Warn("ws.origin ignoring invalid origin", "origin", o)
				continue
			}
			p.allowed[n] = struct{}{}
		}
	}
	return p
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

// check allows requests without an Origin header (non-browser clients). With no
// configured origins only same-host requests pass.
func (p originPolicy) check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || p.allowAll {
		return true
	}
	n, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}

	var allowed bool
	if len(p.allowed) == 0 {
		u, _ := url.Parse(n)
		allowed = strings.EqualFold(u.Host, r.Host)
	} else {
		_, allowed = p.allowed[n]
	}
	if !allowed {
		slog.Warn("ws.origin blocked", "origin", origin)
	}
	return allowed
}
