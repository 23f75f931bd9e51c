package rbac

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// RoleKiosk is the subject used for requests authenticated by a kiosk device token.
const RoleKiosk = "kiosk"

type Object string

const (
	ObjectAttendance Object = "attendance"
	ObjectShift      Object = "shift"
	ObjectKiosk      Object = "kiosk"
	ObjectEmployee   Object = "employee"
	ObjectReport     Object = "report"
)

type Action string

const (
	ActionSubmit  Action = "submit"
	ActionReadOwn Action = "read_own"
	ActionReadAll Action = "read_all"
	ActionManual  Action = "manual"
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionSession Action = "session"
	ActionManage  Action = "manage"
	ActionExport  Action = "export"
)

const modelText = `
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

type policy struct {
	role   string
	object Object
	action Action
}

var defaultPolicies = []policy{
	{"staff", ObjectAttendance, ActionSubmit},
	{"staff", ObjectAttendance, ActionReadOwn},
	{"staff", ObjectShift, ActionRead},
	{"staff", ObjectReport, ActionReadOwn},
	{"staff", ObjectKiosk, ActionRead},

	{"manager", ObjectAttendance, ActionReadAll},
	{"manager", ObjectAttendance, ActionManual},
	{"manager", ObjectShift, ActionWrite},
	{"manager", ObjectKiosk, ActionSession},
	{"manager", ObjectReport, ActionRead},
	{"manager", ObjectReport, ActionExport},

	{"admin", ObjectEmployee, ActionManage},

	{RoleKiosk, ObjectAttendance, ActionSubmit},
	{RoleKiosk, ObjectKiosk, ActionSession},
	{RoleKiosk, ObjectKiosk, ActionRead},
	{RoleKiosk, ObjectShift, ActionRead},
}

// admin inherits manager, manager inherits staff.
var defaultGroups = [][2]string{
	{"manager", "staff"},
	{"admin", "manager"},
}

// Enforcer wraps a casbin enforcer loaded with the in-code role policy.
type Enforcer struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rbac model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	for _, p := range defaultPolicies {
		if _, err := e.AddPolicy(p.role, string(p.object), string(p.action)); err != nil {
			return nil, fmt.Errorf("failed to add policy %s %s %s: %w", p.role, p.object, p.action, err)
		}
	}
	for _, g := range defaultGroups {
		if _, err := e.AddGroupingPolicy(g[0], g[1]); err != nil {
			return nil, fmt.Errorf("failed to add role %s -> %s: %w", g[0], g[1], err)
		}
	}

	return &Enforcer{enforcer: e}, nil
}

// Allowed reports whether role may perform act on obj. Unknown roles are denied.
func (e *Enforcer) Allowed(role string, obj Object, act Action) (bool, error) {
	if role == "" {
		return false, nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	ok, err := e.enforcer.Enforce(role, string(obj), string(act))
	if err != nil {
		return false, fmt.Errorf("failed to enforce %s on %s: %w", act, obj, err)
	}
	return ok, nil
}
