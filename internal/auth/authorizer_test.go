package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"RestJSON/internal/config"
	"RestJSON/internal/rescue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asRole(role any) context.Context {
	return WithClaims(context.Background(), map[string]any{"role": role})
}

func TestCasbinAuthorizerDefaultPolicy(t *testing.T) {
	a, err := NewCasbinAuthorizer(config.AuthzConfig{Enabled: true}, "role", false)
	require.NoError(t, err)

	cases := []struct {
		ctx     context.Context
		action  string
		allowed bool
	}{
		{context.Background(), "read", true},
		{context.Background(), "create", false},
		{asRole("member"), "read", true},
		{asRole("member"), "update", true},
		{asRole("member"), "destroy", false},
		{asRole("admin"), "destroy", true},
		{asRole([]any{"guest", "admin"}), "destroy", true},
	}
	for _, tc := range cases {
		err := a.Authorize(tc.ctx, tc.action, "users", nil)
		if tc.allowed {
			assert.NoError(t, err, tc.action)
		} else {
			assert.True(t, rescue.IsKind(err, rescue.KindAccessDenied), tc.action)
		}
	}
}

func TestCasbinAuthorizerRequiresClaims(t *testing.T) {
	a, err := NewCasbinAuthorizer(config.AuthzConfig{Enabled: true}, "", true)
	require.NoError(t, err)

	err = a.Authorize(context.Background(), "read", "users", nil)
	assert.Same(t, rescue.KindUnauthenticated, rescue.KindOf(err))
	assert.NoError(t, a.Authorize(asRole("member"), "read", "users", nil))
}

func TestCasbinAuthorizerPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- principal: editor
  acl:
    - objects: "posts, comments"
      actions: "read,update"
`), 0o600))

	a, err := NewCasbinAuthorizer(config.AuthzConfig{Enabled: true, PolicyPath: path}, "role", false)
	require.NoError(t, err)

	assert.NoError(t, a.Authorize(asRole("editor"), "update", "comments", nil))
	assert.Error(t, a.Authorize(asRole("editor"), "update", "users", nil))
	assert.Error(t, a.Authorize(context.Background(), "read", "posts", nil))

	_, err = NewCasbinAuthorizer(config.AuthzConfig{PolicyPath: filepath.Join(t.TempDir(), "missing.yaml")}, "role", false)
	assert.Error(t, err)
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, []string{Anonymous}, Subjects(nil, "role"))
	assert.Equal(t, []string{"a", "b"}, Subjects(map[string]any{"roles": "a, b,a"}, "roles"))
	assert.Equal(t, []string{"x"}, Subjects(map[string]any{"role": []string{"x", ""}}, "role"))
}

func TestAllowAll(t *testing.T) {
	assert.NoError(t, AllowAll{}.Authorize(context.Background(), "destroy", "users", nil))
}
