package workflow

import "fmt"

// Attributes carries the request metadata that institutional routing rules
// may branch on.
type Attributes struct {
	College    string
	Department string
}

// RoleResolver computes the roles authorized to act at a stage, given the
// request's attributes. It lets routing rules change per deployment without
// touching the engine.
type RoleResolver func(stage Stage, attrs Attributes) RoleSet

// StageRule declares who may act at a stage and where approval leads.
// Reject from any non-terminal stage always targets StageRejected, so the
// rule only carries the approval edge.
type StageRule struct {
	Roles    RoleSet
	Next     Stage
	Parallel bool
}

// QueryPolicy governs how clarification queries interact with other actions.
// The defaults are the strict interpretation: one outstanding query at a
// time, and all approve/reject actions frozen until the requester responds.
type QueryPolicy struct {
	// AllowRejectDuringQuery permits reject while a clarification is
	// outstanding.
	AllowRejectDuringQuery bool

	// AllowConcurrentQueries permits a second clarification to be raised
	// while one is already outstanding.
	AllowConcurrentQueries bool
}

// Definition is the static declaration of the approval pipeline: stage
// ordering, role authorization, and parallel-join membership. It holds no
// mutable state and is safe to share across concurrent callers.
type Definition struct {
	rules    map[Stage]StageRule
	resolver RoleResolver
	policy   QueryPolicy
}

// Option configures a Definition
type Option func(*Definition)

// WithRoleResolver overrides role resolution for attribute-dependent stages
func WithRoleResolver(r RoleResolver) Option {
	return func(d *Definition) {
		d.resolver = r
	}
}

// WithQueryPolicy overrides the clarification policy
func WithQueryPolicy(p QueryPolicy) Option {
	return func(d *Definition) {
		d.policy = p
	}
}

// WithRules replaces the entire stage-rule table
func WithRules(rules map[Stage]StageRule) Option {
	return func(d *Definition) {
		d.rules = rules
	}
}

// defaultRules is the SRM approval pipeline. department_checks is resolved
// per request attributes, so its rule carries no static role set.
func defaultRules() map[Stage]StageRule {
	return map[Stage]StageRule{
		StageManagerReview: {
			Roles: NewRoleSet(RoleInstitutionManager),
			Next:  StageParallelVerification,
		},
		StageParallelVerification: {
			Roles:    NewRoleSet(RoleSOPVerifier, RoleAccountant),
			Next:     StageVPApproval,
			Parallel: true,
		},
		StageVPApproval: {
			Roles: NewRoleSet(RoleVP),
			Next:  StageHOIApproval,
		},
		StageHOIApproval: {
			Roles: NewRoleSet(RoleHeadOfInstitution),
			Next:  StageDeanReview,
		},
		StageDeanReview: {
			Roles: NewRoleSet(RoleDean),
			Next:  StageDepartmentChecks,
		},
		StageDepartmentChecks: {
			Next: StageChiefDirectorApproval,
		},
		StageChiefDirectorApproval: {
			Roles: NewRoleSet(RoleChiefDirector),
			Next:  StageChairmanApproval,
		},
		StageChairmanApproval: {
			Roles: NewRoleSet(RoleChairman),
			Next:  StageApproved,
		},
	}
}

// DefaultRoleResolver routes department_checks on the request's department
// and falls back to the static rule table for every other stage.
func DefaultRoleResolver(rules map[Stage]StageRule) RoleResolver {
	departmentRoles := map[string]Role{
		"mma":   RoleMMA,
		"hr":    RoleHR,
		"audit": RoleAudit,
		"it":    RoleIT,
	}

	return func(stage Stage, attrs Attributes) RoleSet {
		if stage == StageDepartmentChecks {
			if role, ok := departmentRoles[attrs.Department]; ok {
				return NewRoleSet(role)
			}
			return NewRoleSet(RoleMMA)
		}
		if rule, ok := rules[stage]; ok {
			return rule.Roles.Clone()
		}
		return NewRoleSet()
	}
}

// NewDefinition builds the workflow definition. With no options it yields
// the default SRM pipeline with the strict query policy.
func NewDefinition(opts ...Option) *Definition {
	d := &Definition{
		rules: defaultRules(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.resolver == nil {
		d.resolver = DefaultRoleResolver(d.rules)
	}

	return d
}

// RolesFor returns the roles authorized to act at the stage for a request
// with the given attributes.
func (d *Definition) RolesFor(stage Stage, attrs Attributes) (RoleSet, error) {
	if stage.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is terminal", ErrUnknownStage, stage)
	}
	if _, ok := d.rules[stage]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	return d.resolver(stage, attrs), nil
}

// NextOnApprove returns the stage reached when the stage's approval
// requirement is satisfied.
func (d *Definition) NextOnApprove(stage Stage) (Stage, error) {
	rule, ok := d.rules[stage]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	return rule.Next, nil
}

// IsParallel returns true if the stage requires independent approval from
// every authorized role before advancing.
func (d *Definition) IsParallel(stage Stage) bool {
	rule, ok := d.rules[stage]
	return ok && rule.Parallel
}

// IsTerminal returns true if the stage admits no further transitions
func (d *Definition) IsTerminal(stage Stage) bool {
	return stage.IsTerminal()
}

// InitialStage is the stage a request reaches synchronously at submit
func (d *Definition) InitialStage() Stage {
	return StageManagerReview
}

// Policy returns the clarification policy in force
func (d *Definition) Policy() QueryPolicy {
	return d.policy
}
