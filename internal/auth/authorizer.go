package auth

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"RestJSON/internal/config"
	"RestJSON/internal/logger"
	"RestJSON/internal/model"
	"RestJSON/internal/rescue"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Anonymous is the subject of requests that carry no role claim.
const Anonymous = "anonymous"

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

//go:embed policies.yaml
var defaultPolicies []byte

// Policy grants a principal actions on resources. Objects and Actions are
// comma separated lists, "*" matches anything.
type Policy struct {
	Principal string   `yaml:"principal"`
	Inherit   []string `yaml:"inherit"`
	ACL       []ACL    `yaml:"acl"`
}

type ACL struct {
	Objects string `yaml:"objects"`
	Actions string `yaml:"actions"`
}

// AllowAll permits everything.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, string, string, *model.Record) error { return nil }

// CasbinAuthorizer checks the caller's role against an RBAC policy.
type CasbinAuthorizer struct {
	enforcer      *casbin.SyncedCachedEnforcer
	roleClaim     string
	requireClaims bool
}

// NewCasbinAuthorizer seeds the enforcer from cfg.PolicyPath, or from the
// built-in policy when no path is set. With requireClaims, requests
// without validated claims are rejected as unauthenticated.
func NewCasbinAuthorizer(cfg config.AuthzConfig, roleClaim string, requireClaims bool) (*CasbinAuthorizer, error) {
	data := defaultPolicies
	if cfg.PolicyPath != "" {
		raw, err := os.ReadFile(cfg.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("read authz policy: %w", err)
		}
		data = raw
	}
	var policies []Policy
	if err := yaml.Unmarshal(data, &policies); err != nil {
		return nil, fmt.Errorf("parse authz policy: %w", err)
	}
	return NewCasbinAuthorizerFromPolicies(policies, roleClaim, requireClaims)
}

func NewCasbinAuthorizerFromPolicies(policies []Policy, roleClaim string, requireClaims bool) (*CasbinAuthorizer, error) {
	m, err := casbinmodel.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("error creating rbac model: %w", err)
	}
	enforcer, err := casbin.NewSyncedCachedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("error creating rbac enforcer: %w", err)
	}

	for _, p := range policies {
		for _, inherited := range p.Inherit {
			if _, err := enforcer.AddGroupingPolicy(p.Principal, inherited); err != nil {
				return nil, fmt.Errorf("error adding group policy for %s -> %s: %w", p.Principal, inherited, err)
			}
		}
		for _, acl := range p.ACL {
			for _, obj := range splitList(acl.Objects) {
				for _, act := range splitList(acl.Actions) {
					if _, err := enforcer.AddPolicy(p.Principal, obj, act); err != nil {
						return nil, fmt.Errorf("error adding rbac policy %s %s %s: %w", p.Principal, obj, act, err)
					}
				}
			}
		}
	}
	logger.Info("authz_policies_loaded", map[string]any{"principals": len(policies)})

	if roleClaim == "" {
		roleClaim = "role"
	}
	return &CasbinAuthorizer{enforcer: enforcer, roleClaim: roleClaim, requireClaims: requireClaims}, nil
}

func (a *CasbinAuthorizer) Authorize(ctx context.Context, action, resource string, _ *model.Record) error {
	claims, ok := ClaimsFromContext(ctx)
	if !ok && a.requireClaims {
		return rescue.New(rescue.KindUnauthenticated, "authentication required for %s on %s", action, resource)
	}

	for _, sub := range Subjects(claims, a.roleClaim) {
		allowed, err := a.enforcer.Enforce(sub, resource, action)
		if err != nil {
			return rescue.Configuration("rbac enforce: %v", err)
		}
		if allowed {
			return nil
		}
	}
	logger.Debug("authz_denied", map[string]any{"action": action, "resource": resource})
	return rescue.AccessDenied(action, resource)
}

// Subjects extracts the roles named by the claim, a string or a list of
// strings. Without any, the caller is anonymous.
func Subjects(claims map[string]any, roleClaim string) []string {
	var roles []string
	switch v := claims[roleClaim].(type) {
	case string:
		roles = splitList(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				roles = append(roles, s)
			}
		}
	case []string:
		roles = v
	}
	roles = lo.Uniq(lo.Compact(roles))
	if len(roles) == 0 {
		return []string{Anonymous}
	}
	return roles
}

func splitList(s string) []string {
	return lo.Compact(lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	}))
}
