package auth

import "github.com/spec-kit/task-service/internal/domain"

// Operation names a gated action. TargetsResource distinguishes
// per-resource operations, which need an ownership fact, from collection
// operations the caller scopes to their own subject id. ConcealDenial
// marks operations whose forbidden responses must be indistinguishable
// from a missing resource, so reads cannot probe for existence.
type Operation struct {
	Name            string
	TargetsResource bool
	ConcealDenial   bool
}

var (
	OpTaskCreate = Operation{Name: "task.create"}
	OpTaskList   = Operation{Name: "task.list"}
	OpTaskRead   = Operation{Name: "task.read", TargetsResource: true, ConcealDenial: true}
	OpTaskUpdate = Operation{Name: "task.update", TargetsResource: true}
	OpTaskDelete = Operation{Name: "task.delete", TargetsResource: true}
)

// Ownership is the freshly fetched owner of a target resource. A nil
// *Ownership means the resource does not exist.
type Ownership struct {
	ResourceID string
	OwnerID    string
}

// DenyReason classifies a negative verdict.
type DenyReason string

const (
	DenyNotFound  DenyReason = "NOT_FOUND"
	DenyForbidden DenyReason = "FORBIDDEN"
)

// Verdict is the engine's decision. Rule records which table entry fired,
// for diagnostics.
type Verdict struct {
	Allowed bool
	Reason  DenyReason
	Rule    string
}

type accessRule struct {
	name    string
	applies func(id domain.Identity, op Operation, own *Ownership) bool
	verdict Verdict
}

// Engine decides allow/deny from role and ownership. The rule table is
// ordered; the first matching rule wins. Ordering is load-bearing:
// a missing resource must deny as NotFound before the owner comparison
// can ever produce Forbidden, so non-owners cannot distinguish "absent"
// from "not yours".
type Engine struct {
	rules []accessRule
}

// NewEngine builds the engine with the standard rule table.
func NewEngine() *Engine {
	return &Engine{rules: []accessRule{
		{
			name: "admin-bypass",
			applies: func(id domain.Identity, _ Operation, _ *Ownership) bool {
				return id.IsAdmin()
			},
			verdict: Verdict{Allowed: true},
		},
		{
			name: "unscoped-operation",
			applies: func(_ domain.Identity, op Operation, _ *Ownership) bool {
				return !op.TargetsResource
			},
			verdict: Verdict{Allowed: true},
		},
		{
			name: "resource-missing",
			applies: func(_ domain.Identity, _ Operation, own *Ownership) bool {
				return own == nil
			},
			verdict: Verdict{Reason: DenyNotFound},
		},
		{
			name: "not-owner",
			applies: func(id domain.Identity, _ Operation, own *Ownership) bool {
				return own.OwnerID != id.SubjectID
			},
			verdict: Verdict{Reason: DenyForbidden},
		},
		{
			name: "owner",
			applies: func(domain.Identity, Operation, *Ownership) bool {
				return true
			},
			verdict: Verdict{Allowed: true},
		},
	}}
}

// Decide evaluates the rule table for one identity/operation/ownership
// triple. Pure: no clock, no I/O, no caching of prior verdicts.
func (e *Engine) Decide(id domain.Identity, op Operation, own *Ownership) Verdict {
	for _, rule := range e.rules {
		if rule.applies(id, op, own) {
			verdict := rule.verdict
			verdict.Rule = rule.name
			return verdict
		}
	}
	// unreachable: the final rule always applies
	return Verdict{Reason: DenyForbidden, Rule: "default-deny"}
}
