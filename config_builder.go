package tenancy

// ConfigBuilder provides a fluent API for assembling directory datasets in
// tooling and tests.
type ConfigBuilder struct {
	cfg *Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: &Config{
			Version:       1,
			Organizations: []*Organization{},
			Roots:         []*OrganizationRoot{},
			Units:         []*OrganizationalUnit{},
			Accounts:      []*Account{},
			Members:       []*AccountMember{},
			Session: SessionConfig{
				DecisionCacheTTL: 1000,
			},
		},
	}
}

func (b *ConfigBuilder) Version(v uint16) *ConfigBuilder {
	b.cfg.Version = v
	return b
}

func (b *ConfigBuilder) AddOrganization(org *Organization) *ConfigBuilder {
	b.cfg.Organizations = append(b.cfg.Organizations, org)
	return b
}

func (b *ConfigBuilder) AddRoot(id, orgID, name string) *ConfigBuilder {
	b.cfg.Roots = append(b.cfg.Roots, &OrganizationRoot{ID: id, OrganizationID: orgID, Name: name})
	return b
}

func (b *ConfigBuilder) AddUnit(ou *OrganizationalUnit) *ConfigBuilder {
	b.cfg.Units = append(b.cfg.Units, ou)
	return b
}

func (b *ConfigBuilder) AddAccount(account *Account) *ConfigBuilder {
	b.cfg.Accounts = append(b.cfg.Accounts, account)
	return b
}

func (b *ConfigBuilder) AddMember(m *AccountMember) *ConfigBuilder {
	b.cfg.Members = append(b.cfg.Members, m)
	return b
}

func (b *ConfigBuilder) SessionSettings(fn func(*SessionConfig)) *ConfigBuilder {
	fn(&b.cfg.Session)
	return b
}

func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

func (b *ConfigBuilder) ToYAML() ([]byte, error) {
	return b.cfg.ToYAML()
}

func (b *ConfigBuilder) ToJSON() ([]byte, error) {
	return b.cfg.ToJSON()
}
