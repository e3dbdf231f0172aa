package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequirePermissionNilUserDenied(t *testing.T) {
	assert.False(t, RequirePermission(nil, "sources:read"))
}

func TestRequirePermissionExactMatch(t *testing.T) {
	u := &User{Permissions: map[string]bool{"sources:read": true}}
	assert.True(t, RequirePermission(u, "sources:read"))
	assert.False(t, RequirePermission(u, "sources:write"))
}

func TestRequirePermissionWildcardMatch(t *testing.T) {
	u := &User{Permissions: map[string]bool{"sources:*": true}}
	assert.True(t, RequirePermission(u, "sources:read"))
	assert.True(t, RequirePermission(u, "sources:write"))
	assert.False(t, RequirePermission(u, "analytics:read"))
}

func TestRequirePermissionMiddlewareRejectsMissingPermission(t *testing.T) {
	handler := requirePermissionMiddleware("sources:write", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := withUser(httptest.NewRequest(http.MethodPost, "/sources", nil), &User{Permissions: map[string]bool{}})
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePermissionMiddlewareAllowsGrantedPermission(t *testing.T) {
	called := false
	handler := requirePermissionMiddleware("sources:write", func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := withUser(httptest.NewRequest(http.MethodPost, "/sources", nil), &User{Permissions: map[string]bool{"sources:write": true}})
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDevPermissionMiddlewarePopulatesUserFromHeaders(t *testing.T) {
	s := &Server{}
	var captured *User
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = userFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/sources", nil)
	req.Header.Set("X-Debug-User", "operator-1")
	req.Header.Set("X-Debug-Permissions", "sources:read, sources:write")

	s.devPermissionMiddleware(inner).ServeHTTP(httptest.NewRecorder(), req)

	require := assert.New(t)
	require.NotNil(captured)
	require.Equal("operator-1", captured.ID)
	require.True(captured.Permissions["sources:read"])
	require.True(captured.Permissions["sources:write"])
}
