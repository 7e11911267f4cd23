// Package authz decides whether an authenticated subject may act on a
// tenant's configuration. Policies are Casbin RBAC-with-domains rules where
// the domain is the tenant id and "*" grants across all tenants.
package authz

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

// Mode selects how authorization decisions are applied.
type Mode string

const (
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
	ModeDisabled Mode = "disabled"
)

// ParseMode converts a configured mode string. An empty string is disabled.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return ModeDisabled, nil
	case ModeEnforce, ModeShadow, ModeDisabled:
		return m, nil
	default:
		return "", fmt.Errorf("authz: invalid mode %q (expected enforce|shadow|disabled)", raw)
	}
}

// Objects and actions checked by the API.
const (
	ObjectConfig   = "config"
	ActionEvaluate = "evaluate"
	ActionRead     = "read"
)

// Wildcard is the domain that matches every tenant.
const Wildcard = "*"

const modelText = `
[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act

[role_definition]
g = _, _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (r.sub == p.sub || g(r.sub, p.sub, r.dom) || g(r.sub, p.sub, "*")) && (p.dom == r.dom || p.dom == "*") && r.obj == p.obj && r.act == p.act
`

// ErrNoPolicy is returned when a non-disabled mode has no policy file.
var ErrNoPolicy = errors.New("authz: policy file required")

// Authorizer evaluates tenant access decisions.
type Authorizer struct {
	enforcer *casbin.Enforcer
	mode     Mode
	logger   *slog.Logger
}

// NewAuthorizer loads the policy at policyPath. In disabled mode no policy
// is loaded and every request is allowed.
func NewAuthorizer(policyPath string, mode Mode, logger *slog.Logger) (*Authorizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Authorizer{mode: mode, logger: logger.With("component", "authz")}
	if mode == ModeDisabled {
		return a, nil
	}
	if policyPath == "" {
		return nil, ErrNoPolicy
	}

	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("authz: model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m, fileadapter.NewAdapter(policyPath))
	if err != nil {
		return nil, fmt.Errorf("authz: load policy %s: %w", policyPath, err)
	}
	a.enforcer = enforcer
	return a, nil
}

// Mode returns the configured mode.
func (a *Authorizer) Mode() Mode {
	return a.mode
}

// Reload re-reads the policy file.
func (a *Authorizer) Reload() error {
	if a.enforcer == nil {
		return nil
	}
	return a.enforcer.LoadPolicy()
}

// Authorize checks whether subject may perform action on object in tenant.
// enforced reports whether a denial must be honored; in shadow mode denials
// are only logged.
func (a *Authorizer) Authorize(subject, tenant, object, action string) (allowed bool, enforced bool, err error) {
	tenant = DomainFromTenantID(tenant)
	switch a.mode {
	case ModeDisabled:
		return true, false, nil
	case ModeShadow:
		ok, err := a.enforcer.Enforce(subject, tenant, object, action)
		if err != nil {
			return false, false, err
		}
		if !ok {
			a.logger.Warn("authorization denied in shadow mode",
				"subject", subject,
				"organization_id", tenant,
				"object", object,
				"action", action,
			)
		}
		return ok, false, nil
	case ModeEnforce:
		ok, err := a.enforcer.Enforce(subject, tenant, object, action)
		if err != nil {
			return false, true, err
		}
		return ok, true, nil
	default:
		return false, false, fmt.Errorf("authz: unknown mode %q", a.mode)
	}
}

// DomainFromTenantID normalizes a tenant id into a policy domain.
func DomainFromTenantID(tenantID string) string {
	return strings.ToLower(strings.TrimSpace(tenantID))
}
