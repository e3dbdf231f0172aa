package api

import (
	"context"
	"net/http"
	"strings"
)

// userContextKey is unexported so only this package can store the request's
// User on its context.
type userContextKey struct{}

// User is the identity the external JWT/RBAC wrapper (spec.md §6: "not
// part of the core") attaches to a request before it reaches this router.
type User struct {
	ID          string
	Permissions map[string]bool
}

// RequirePermission is spec.md §6's capability check:
// require_permission(user, "resource:action"). The core only consults it;
// it never authenticates the user itself.
func RequirePermission(user *User, capability string) bool {
	if user == nil {
		return false
	}
	if user.Permissions[capability] {
		return true
	}
	resource := strings.SplitN(capability, ":", 2)[0]
	return user.Permissions[resource+":*"]
}

func userFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userContextKey{}).(*User)
	return u
}

// withUser stores user on the request context for downstream handlers.
func withUser(r *http.Request, user *User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userContextKey{}, user))
}

// requirePermissionMiddleware enforces capability on every request this
// router handles directly (auth/RBAC proper happens upstream; this is the
// core's own last-line capability gate per resource:action).
func requirePermissionMiddleware(capability string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		if !RequirePermission(user, capability) {
			writeError(w, http.StatusForbidden, "missing permission: "+capability)
			return
		}
		next(w, r)
	}
}
