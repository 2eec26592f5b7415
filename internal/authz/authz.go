// Package authz decides which roles hold which capabilities.
package authz

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"lexpost/internal/domain"
)

// Capability names a resource/action pair, e.g. "letter:transition".
type Capability struct {
	Resource string
	Action   string
}

func (c Capability) String() string { return c.Resource + ":" + c.Action }

var (
	LetterReadAny         = Capability{"letter", "read_any"}
	LetterTransition      = Capability{"letter", "transition"}
	LetterTimeline        = Capability{"letter", "timeline"}
	LetterReview          = Capability{"letter", "review"}
	LetterGenerateAny     = Capability{"letter", "generate_any"}
	LetterCancelAny       = Capability{"letter", "cancel_any"}
	LetterSubscribeAll    = Capability{"letter", "subscribe_all"}
	ReferralViewOwn       = Capability{"referral", "view_own"}
	SubscriptionCancelAny = Capability{"subscription", "cancel_any"}
	AdminDashboard        = Capability{"admin", "dashboard"}
	AdminManageProfiles   = Capability{"admin", "profiles"}
	AdminManageCoupons    = Capability{"admin", "coupons"}
	AdminCommissions      = Capability{"admin", "commissions"}
	AdminSettings         = Capability{"admin", "settings"}
)

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
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// admin inherits every employee capability.
var defaultPolicies = map[domain.Role][]Capability{
	domain.RoleEmployee: {
		LetterReadAny, LetterTransition, LetterTimeline, LetterGenerateAny,
		LetterCancelAny, LetterSubscribeAll, ReferralViewOwn,
	},
	domain.RoleAdmin: {
		LetterReview, AdminDashboard, AdminManageProfiles, AdminManageCoupons,
		AdminCommissions, AdminSettings, SubscriptionCancelAny,
	},
}

// Authorizer is the single place role checks happen.
type Authorizer struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

func New() (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	for role, caps := range defaultPolicies {
		for _, c := range caps {
			if _, err := e.AddPolicy(string(role), c.Resource, c.Action); err != nil {
				return nil, fmt.Errorf("failed to add policy [%s, %s]: %w", role, c, err)
			}
		}
	}
	if _, err := e.AddGroupingPolicy(string(domain.RoleAdmin), string(domain.RoleEmployee)); err != nil {
		return nil, fmt.Errorf("failed to add role inheritance: %w", err)
	}
	return &Authorizer{enforcer: e}, nil
}

// MustNew panics on a malformed built-in model.
func MustNew() *Authorizer {
	a, err := New()
	if err != nil {
		panic(err)
	}
	return a
}

// Can reports whether role holds capability c. Unknown roles hold nothing.
func (a *Authorizer) Can(role domain.Role, c Capability) bool {
	if !role.Valid() {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	ok, err := a.enforcer.Enforce(string(role), c.Resource, c.Action)
	return err == nil && ok
}
