package tenancy

import "time"

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// OrgStatus is the lifecycle status of an organization.
type OrgStatus string

const (
	OrgActive          OrgStatus = "ACTIVE"
	OrgPendingDeletion OrgStatus = "PENDING_DELETION"
)

// AccountStatus is the lifecycle status of an account.
type AccountStatus string

const (
	AccountActive         AccountStatus = "ACTIVE"
	AccountSuspended      AccountStatus = "SUSPENDED"
	AccountPendingClosure AccountStatus = "PENDING_CLOSURE"
)

// OUStatus is the lifecycle status of an organizational unit.
type OUStatus string

const (
	OUActive   OUStatus = "ACTIVE"
	OURetiring OUStatus = "RETIRING"
)

// Organization is a collection of accounts under common administrative
// control. It owns a tree of organizational units and accounts rooted at a
// single OrganizationRoot.
type Organization struct {
	ID                 string    `json:"id" yaml:"id"`
	Name               string    `json:"name" yaml:"name"`
	MasterAccountID    string    `json:"master_account_id" yaml:"master_account_id"`
	EnabledPolicyTypes []string  `json:"enabled_policy_types,omitempty" yaml:"enabled_policy_types,omitempty"`
	Status             OrgStatus `json:"status" yaml:"status"`
	CreatedAt          time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// OrganizationRoot is the single root node of an organization's OU tree.
// OU and account parent references point at it via its ID.
type OrganizationRoot struct {
	ID             string `json:"id" yaml:"id"`
	OrganizationID string `json:"organization_id" yaml:"organization_id"`
	Name           string `json:"name" yaml:"name"`
}

// OrganizationalUnit is a grouping node in an organization's account tree.
// ParentID references either the organization root or another OU; the tree
// is acyclic by construction and not runtime-checked.
type OrganizationalUnit struct {
	ID             string   `json:"id" yaml:"id"`
	OrganizationID string   `json:"organization_id" yaml:"organization_id"`
	ParentID       string   `json:"parent_id" yaml:"parent_id"`
	Name           string   `json:"name" yaml:"name"`
	Status         OUStatus `json:"status" yaml:"status"`
}

// Account is a billing/resource-isolation boundary. An account belongs to
// exactly one organization and hangs off exactly one OU (or the root).
type Account struct {
	ID             string            `json:"id" yaml:"id"`
	OrganizationID string            `json:"organization_id" yaml:"organization_id"`
	ParentID       string            `json:"parent_id" yaml:"parent_id"`
	Name           string            `json:"name" yaml:"name"`
	Email          string            `json:"email,omitempty" yaml:"email,omitempty"`
	Status         AccountStatus     `json:"status" yaml:"status"`
	Tags           map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt      time.Time         `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Role is one of a fixed set of labels; its effect on authorization is
// expressed entirely through the permission statements attached to a
// membership. The one exception is organization management, which is
// role-gated (see Session.CanManageOrganization).
type Role string

const (
	RoleOrganizationAdmin Role = "ORGANIZATION_ADMIN"
	RoleAccountAdmin      Role = "ACCOUNT_ADMIN"
	RolePowerUser         Role = "POWER_USER"
	RoleDeveloper         Role = "DEVELOPER"
	RoleReadOnly          Role = "READ_ONLY"
	RoleBillingAdmin      Role = "BILLING_ADMIN"
)

// Roles lists every recognized role.
func Roles() []Role {
	return []Role{
		RoleOrganizationAdmin,
		RoleAccountAdmin,
		RolePowerUser,
		RoleDeveloper,
		RoleReadOnly,
		RoleBillingAdmin,
	}
}

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOrganizationAdmin, RoleAccountAdmin, RolePowerUser,
		RoleDeveloper, RoleReadOnly, RoleBillingAdmin:
		return true
	}
	return false
}

// Effect is the outcome a statement contributes when it matches.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Valid reports whether e is a recognized effect.
func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// Statement is one Allow/Deny rule with wildcard action and resource
// patterns. Patterns are whole-string globs where '*' is the only wildcard.
// Statement order inside a membership's permission list is load-bearing:
// evaluation stops at the first matching statement.
type Statement struct {
	Actions   []string `json:"actions" yaml:"actions"`
	Resources []string `json:"resources,omitempty" yaml:"resources,omitempty"`
	Effect    Effect   `json:"effect" yaml:"effect"`
}

// AccountMember binds one principal to one account with one role and an
// ordered list of permission statements. At most one membership per
// principal carries IsDefault, used for session bootstrap.
type AccountMember struct {
	ID          string      `json:"id" yaml:"id"`
	PrincipalID string      `json:"principal_id" yaml:"principal_id"`
	AccountID   string      `json:"account_id" yaml:"account_id"`
	Role        Role        `json:"role" yaml:"role"`
	Permissions []Statement `json:"permissions" yaml:"permissions"`
	IsDefault   bool        `json:"is_default,omitempty" yaml:"is_default,omitempty"`
	AddedBy     string      `json:"added_by,omitempty" yaml:"added_by,omitempty"`
	AddedAt     time.Time   `json:"added_at,omitempty" yaml:"added_at,omitempty"`
}

// Clone returns a deep copy so stores can hand out records without
// exposing internal state to mutation.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	dup := *a
	if a.Tags != nil {
		dup.Tags = make(map[string]string, len(a.Tags))
		for k, v := range a.Tags {
			dup.Tags[k] = v
		}
	}
	return &dup
}

// Clone returns a deep copy of the organization.
func (o *Organization) Clone() *Organization {
	if o == nil {
		return nil
	}
	dup := *o
	dup.EnabledPolicyTypes = append([]string(nil), o.EnabledPolicyTypes...)
	return &dup
}

// Clone returns a deep copy of the OU.
func (u *OrganizationalUnit) Clone() *OrganizationalUnit {
	if u == nil {
		return nil
	}
	dup := *u
	return &dup
}

// Clone returns a deep copy of the membership, including its ordered
// statement list.
func (m *AccountMember) Clone() *AccountMember {
	if m == nil {
		return nil
	}
	dup := *m
	dup.Permissions = CloneStatements(m.Permissions)
	return &dup
}

// CloneStatements deep-copies a statement list preserving order.
func CloneStatements(statements []Statement) []Statement {
	if statements == nil {
		return nil
	}
	out := make([]Statement, len(statements))
	for i, s := range statements {
		out[i] = Statement{
			Actions:   append([]string(nil), s.Actions...),
			Resources: append([]string(nil), s.Resources...),
			Effect:    s.Effect,
		}
	}
	return out
}
