package tenancy

import "time"

// Builders provide a fluent API for assembling directory records in tests
// and seeding code.

// StatementBuilder builds a Statement
type StatementBuilder struct {
	s Statement
}

func NewStatementBuilder() *StatementBuilder {
	return &StatementBuilder{s: Statement{Effect: EffectAllow}}
}

func (b *StatementBuilder) Allow() *StatementBuilder { b.s.Effect = EffectAllow; return b }
func (b *StatementBuilder) Deny() *StatementBuilder  { b.s.Effect = EffectDeny; return b }
func (b *StatementBuilder) Actions(patterns ...string) *StatementBuilder {
	b.s.Actions = append(b.s.Actions, patterns...)
	return b
}
func (b *StatementBuilder) Resources(patterns ...string) *StatementBuilder {
	b.s.Resources = append(b.s.Resources, patterns...)
	return b
}
func (b *StatementBuilder) Build() Statement { return b.s }

// MemberBuilder builds an AccountMember
type MemberBuilder struct {
	m *AccountMember
}

func NewMemberBuilder() *MemberBuilder {
	return &MemberBuilder{m: &AccountMember{Permissions: []Statement{}}}
}

func (b *MemberBuilder) ID(id string) *MemberBuilder               { b.m.ID = id; return b }
func (b *MemberBuilder) Principal(id string) *MemberBuilder        { b.m.PrincipalID = id; return b }
func (b *MemberBuilder) Account(id string) *MemberBuilder          { b.m.AccountID = id; return b }
func (b *MemberBuilder) Role(r Role) *MemberBuilder                { b.m.Role = r; return b }
func (b *MemberBuilder) Default() *MemberBuilder                   { b.m.IsDefault = true; return b }
func (b *MemberBuilder) AddedBy(principal string) *MemberBuilder   { b.m.AddedBy = principal; return b }
func (b *MemberBuilder) AddedAt(t time.Time) *MemberBuilder        { b.m.AddedAt = t; return b }
func (b *MemberBuilder) Statement(s Statement) *MemberBuilder {
	b.m.Permissions = append(b.m.Permissions, s)
	return b
}
func (b *MemberBuilder) Grant(text string) *MemberBuilder {
	// Convenience for tests; malformed text is dropped silently, use
	// ParseStatement directly when errors matter.
	if stmt, err := ParseStatement(text); err == nil {
		b.m.Permissions = append(b.m.Permissions, stmt)
	}
	return b
}
func (b *MemberBuilder) Build() *AccountMember { return b.m }

// AccountBuilder builds an Account
type AccountBuilder struct {
	a *Account
}

func NewAccountBuilder() *AccountBuilder {
	return &AccountBuilder{a: &Account{Status: AccountActive, Tags: map[string]string{}}}
}

func (b *AccountBuilder) ID(id string) *AccountBuilder             { b.a.ID = id; return b }
func (b *AccountBuilder) Organization(id string) *AccountBuilder   { b.a.OrganizationID = id; return b }
func (b *AccountBuilder) Parent(id string) *AccountBuilder         { b.a.ParentID = id; return b }
func (b *AccountBuilder) Name(name string) *AccountBuilder         { b.a.Name = name; return b }
func (b *AccountBuilder) Email(email string) *AccountBuilder       { b.a.Email = email; return b }
func (b *AccountBuilder) Status(s AccountStatus) *AccountBuilder   { b.a.Status = s; return b }
func (b *AccountBuilder) Tag(key, value string) *AccountBuilder    { b.a.Tags[key] = value; return b }
func (b *AccountBuilder) Build() *Account                          { return b.a }

// OrganizationBuilder builds an Organization
type OrganizationBuilder struct {
	o *Organization
}

func NewOrganizationBuilder() *OrganizationBuilder {
	return &OrganizationBuilder{o: &Organization{Status: OrgActive}}
}

func (b *OrganizationBuilder) ID(id string) *OrganizationBuilder          { b.o.ID = id; return b }
func (b *OrganizationBuilder) Name(name string) *OrganizationBuilder      { b.o.Name = name; return b }
func (b *OrganizationBuilder) MasterAccount(id string) *OrganizationBuilder {
	b.o.MasterAccountID = id
	return b
}
func (b *OrganizationBuilder) PolicyTypes(types ...string) *OrganizationBuilder {
	b.o.EnabledPolicyTypes = append(b.o.EnabledPolicyTypes, types...)
	return b
}
func (b *OrganizationBuilder) Status(s OrgStatus) *OrganizationBuilder { b.o.Status = s; return b }
func (b *OrganizationBuilder) Build() *Organization                    { return b.o }
