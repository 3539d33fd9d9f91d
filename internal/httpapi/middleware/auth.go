package middleware

import (
	"context"
	"net/http"
	"strings"
)

type Keys struct {
	Public []string
	Admin  []string
}

func (k Keys) enabled() bool { return len(k.Public) > 0 || len(k.Admin) > 0 }

// Role is what a presented API key grants. Admin implies public.
type Role int

const (
	RoleNone Role = iota
	RolePublic
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RolePublic:
		return "public"
	case RoleAdmin:
		return "admin"
	default:
		return "none"
	}
}

type ctxKey int

const (
	roleKey ctxKey = iota
	apiKeyKey
)

// RoleFrom returns the role Authenticate attached to the request.
func RoleFrom(ctx context.Context) Role {
	r, _ := ctx.Value(roleKey).(Role)
	return r
}

// APIKeyFrom returns the caller's key when it is one of the configured keys.
func APIKeyFrom(ctx context.Context) string {
	k, _ := ctx.Value(apiKeyKey).(string)
	return k
}

func readAuth(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if k := r.Header.Get("X-API-Key"); k != "" {
		return strings.TrimSpace(k)
	}
	return ""
}

func hasKey(given string, set []string) bool {
	if given == "" {
		return false
	}
	for _, k := range set {
		if k == given {
			return true
		}
	}
	return false
}

func (k Keys) known(given string) bool {
	return hasKey(given, k.Admin) || hasKey(given, k.Public)
}

func (k Keys) roleOf(given string) Role {
	switch {
	case !k.enabled():
		// no keys configured: local dev, everything is open
		return RoleAdmin
	case hasKey(given, k.Admin):
		return RoleAdmin
	case hasKey(given, k.Public):
		if len(k.Admin) == 0 {
			return RoleAdmin
		}
		return RolePublic
	default:
		return RoleNone
	}
}

// Authenticate resolves the caller's role and stores it in the request
// context. It never rejects; pair it with Require.
func Authenticate(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := readAuth(r)
			ctx := context.WithValue(r.Context(), roleKey, keys.roleOf(key))
			if keys.known(key) {
				ctx = context.WithValue(ctx, apiKeyKey, key)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Require rejects callers below want: 401 without a usable key, 403 when the
// key does not grant enough.
func Require(want Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFrom(r.Context())
			if role >= want {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			if role == RoleNone {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden"}`))
		})
	}
}
