package accesscontrol

import (
	"fmt"

	"smallbiznis-crm/pkg/config"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("accesscontrol", fx.Provide(ProvideEnforcer))

// defaultModel matches a gate state against a route pattern and HTTP method.
const defaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch(r.obj, p.obj) && (p.act == "*" || r.act == p.act)
`

// Subjects are the gate states.
const (
	SubjectHidden      = "hidden"
	SubjectActiveTrial = "active_trial"
	SubjectExpired     = "expired"
)

// DefaultPolicy grants full access to subscribed and trialing tenants; expired tenants
// keep the billing routes so they can subscribe.
var DefaultPolicy = [][]string{
	{SubjectHidden, "/*", "*"},
	{SubjectActiveTrial, "/*", "*"},
	{SubjectExpired, "/api/billing/*", "*"},
	{SubjectExpired, "/api/tenants/*", "GET"},
}

type Enforcer interface {
	Allowed(subject, path, method string) (bool, error)
}

type enforcer struct {
	e *casbin.Enforcer
}

// ProvideEnforcer loads ACCESS_CONTROL.MODEL/POLICY files when both are configured and
// falls back to the built-in model and DefaultPolicy otherwise.
func ProvideEnforcer(cfg *config.Config) (Enforcer, error) {
	ac := cfg.AccessControl
	if ac.Model != "" && ac.Policy != "" {
		e, err := casbin.NewEnforcer(ac.Model, ac.Policy)
		if err != nil {
			return nil, fmt.Errorf("load access control policy: %w", err)
		}
		zap.L().Info("access control policy loaded", zap.String("model", ac.Model), zap.String("policy", ac.Policy))
		return &enforcer{e: e}, nil
	}

	return NewDefault()
}

func NewDefault() (Enforcer, error) {
	m, err := model.NewModelFromString(defaultModel)
	if err != nil {
		return nil, fmt.Errorf("parse access control model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	for _, rule := range DefaultPolicy {
		if _, err := e.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
			return nil, fmt.Errorf("add policy %v: %w", rule, err)
		}
	}

	return &enforcer{e: e}, nil
}

func (e *enforcer) Allowed(subject, path, method string) (bool, error) {
	return e.e.Enforce(subject, path, method)
}
