package tenancy

import (
	"context"
	"strings"
	"testing"
)

func sampleConfig() *Config {
	return NewConfigBuilder().
		Version(1).
		AddOrganization(&Organization{ID: "org-1", Name: "Acme", MasterAccountID: "acct-mgmt", Status: OrgActive,
			EnabledPolicyTypes: []string{"SERVICE_CONTROL"}}).
		AddRoot("r-1", "org-1", "Root").
		AddUnit(&OrganizationalUnit{ID: "ou-prod", OrganizationID: "org-1", ParentID: "r-1", Name: "Production", Status: OUActive}).
		AddAccount(&Account{ID: "acct-mgmt", OrganizationID: "org-1", ParentID: "r-1", Name: "Management", Status: AccountActive}).
		AddAccount(&Account{ID: "acct-prod", OrganizationID: "org-1", ParentID: "ou-prod", Name: "Prod",
			Email: "prod@acme.example", Status: AccountActive, Tags: map[string]string{"env": "prod"}}).
		AddMember(&AccountMember{ID: "m-1", PrincipalID: "user-1", AccountID: "acct-prod", Role: RoleDeveloper, IsDefault: true,
			Permissions: []Statement{
				{Effect: EffectDeny, Actions: []string{"iam:*"}},
				{Effect: EffectAllow, Actions: []string{"*:*"}, Resources: []string{"arn:bhoomi:*"}},
			}}).
		SessionSettings(func(sc *SessionConfig) {
			sc.DecisionCacheTTL = 5000
			sc.RistrettoNumCounter = 1000
			sc.RistrettoMaxCost = 1 << 16
			sc.RistrettoBuffer = 64
		}).
		Build()
}

func configsEquivalent(t *testing.T, want, got *Config) {
	t.Helper()
	if got.Version != want.Version {
		t.Fatalf("version: want %d got %d", want.Version, got.Version)
	}
	if len(got.Organizations) != len(want.Organizations) ||
		len(got.Roots) != len(want.Roots) ||
		len(got.Units) != len(want.Units) ||
		len(got.Accounts) != len(want.Accounts) ||
		len(got.Members) != len(want.Members) {
		t.Fatalf("component counts differ: want %+v got %+v", want, got)
	}
	if got.Organizations[0].MasterAccountID != "acct-mgmt" {
		t.Fatalf("organization lost master account: %+v", got.Organizations[0])
	}
	if len(got.Organizations[0].EnabledPolicyTypes) != 1 {
		t.Fatalf("organization lost policy types: %+v", got.Organizations[0])
	}
	account := got.Accounts[1]
	if account.Email != "prod@acme.example" || account.Tags["env"] != "prod" {
		t.Fatalf("account lost fields: %+v", account)
	}
	m := got.Members[0]
	if !m.IsDefault || m.Role != RoleDeveloper {
		t.Fatalf("member lost fields: %+v", m)
	}
	if len(m.Permissions) != 2 {
		t.Fatalf("member lost statements: %+v", m.Permissions)
	}
	// statement order is the evaluation order and must survive encoding
	if m.Permissions[0].Effect != EffectDeny || m.Permissions[1].Effect != EffectAllow {
		t.Fatalf("statement order not preserved: %+v", m.Permissions)
	}
	if len(m.Permissions[1].Resources) != 1 || m.Permissions[1].Resources[0] != "arn:bhoomi:*" {
		t.Fatalf("statement resources not preserved: %+v", m.Permissions[1])
	}
	if got.Session != want.Session {
		t.Fatalf("session config: want %+v got %+v", want.Session, got.Session)
	}
}

func TestConfigYAMLRoundtrip(t *testing.T) {
	cfg := sampleConfig()
	data, err := cfg.ToYAML()
	if err != nil {
		t.Fatalf("to yaml: %v", err)
	}
	back, err := NewConfigLoader().LoadYAML(data)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	configsEquivalent(t, cfg, back)
}

func TestConfigJSONRoundtrip(t *testing.T) {
	cfg := sampleConfig()
	data, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	back, err := NewConfigLoader().LoadJSON(data)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	configsEquivalent(t, cfg, back)
}

func TestConfigBinaryRoundtrip(t *testing.T) {
	cfg := sampleConfig()
	data, err := EncodeBinaryConfig(cfg)
	if err != nil {
		t.Fatalf("encode binary: %v", err)
	}
	back, err := NewConfigLoader().LoadBinary(data)
	if err != nil {
		t.Fatalf("load binary: %v", err)
	}
	configsEquivalent(t, cfg, back)
}

func TestConfigBinaryRejectsGarbage(t *testing.T) {
	if _, err := NewConfigLoader().LoadBinary([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Fatalf("expected error for truncated input")
	}
	if _, err := NewConfigLoader().LoadBinary([]byte("not a binary config at all")); err == nil {
		t.Fatalf("expected error for wrong magic")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := sampleConfig().Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"duplicate organization", func(c *Config) {
			c.Organizations = append(c.Organizations, &Organization{ID: "org-1"})
		}, "duplicate organization"},
		{"second root", func(c *Config) {
			c.Roots = append(c.Roots, &OrganizationRoot{ID: "r-2", OrganizationID: "org-1"})
		}, "more than one root"},
		{"unit with unknown parent", func(c *Config) {
			c.Units = append(c.Units, &OrganizationalUnit{ID: "ou-x", OrganizationID: "org-1", ParentID: "nope"})
		}, "unknown parent"},
		{"account with unknown organization", func(c *Config) {
			c.Accounts = append(c.Accounts, &Account{ID: "acct-x", OrganizationID: "org-nope"})
		}, "unknown organization"},
		{"member with unknown account", func(c *Config) {
			c.Members = append(c.Members, &AccountMember{ID: "m-x", PrincipalID: "user-1", AccountID: "acct-nope", Role: RoleDeveloper})
		}, "unknown account"},
		{"member with bad role", func(c *Config) {
			c.Members[0].Role = "SUPERUSER"
		}, "unknown role"},
		{"two defaults for one principal", func(c *Config) {
			c.Members = append(c.Members, &AccountMember{ID: "m-2", PrincipalID: "user-1", AccountID: "acct-mgmt", Role: RoleReadOnly, IsDefault: true})
		}, "more than one default"},
		{"statement without actions", func(c *Config) {
			c.Members[0].Permissions = append(c.Members[0].Permissions, Statement{Effect: EffectAllow})
		}, "no action patterns"},
		{"statement with bad effect", func(c *Config) {
			c.Members[0].Permissions[0].Effect = "maybe"
		}, "unknown effect"},
	}
	for _, tc := range cases {
		cfg := sampleConfig()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected %q in error, got %v", tc.name, tc.want, err)
		}
	}
}

type recordingWriter struct {
	calls []string
}

func (w *recordingWriter) PutOrganization(ctx context.Context, org *Organization) error {
	w.calls = append(w.calls, "org:"+org.ID)
	return nil
}
func (w *recordingWriter) PutRoot(ctx context.Context, root *OrganizationRoot) error {
	w.calls = append(w.calls, "root:"+root.ID)
	return nil
}
func (w *recordingWriter) PutOU(ctx context.Context, ou *OrganizationalUnit) error {
	w.calls = append(w.calls, "ou:"+ou.ID)
	return nil
}
func (w *recordingWriter) PutAccount(ctx context.Context, account *Account) error {
	w.calls = append(w.calls, "account:"+account.ID)
	return nil
}
func (w *recordingWriter) PutMember(ctx context.Context, member *AccountMember) error {
	w.calls = append(w.calls, "member:"+member.ID)
	return nil
}

func TestConfigApplyDependencyOrder(t *testing.T) {
	cfg := sampleConfig()
	w := &recordingWriter{}
	if err := cfg.Apply(context.Background(), w); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := []string{"org:org-1", "root:r-1", "ou:ou-prod", "account:acct-mgmt", "account:acct-prod", "member:m-1"}
	if len(w.calls) != len(want) {
		t.Fatalf("expected %v, got %v", want, w.calls)
	}
	for i := range want {
		if w.calls[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, w.calls)
		}
	}
}

func TestSessionConfigOptions(t *testing.T) {
	var cfg SessionConfig
	if opts := cfg.SessionOptions(); opts != nil {
		t.Fatalf("zero TTL should disable the decision cache")
	}
	cfg = SessionConfig{DecisionCacheTTL: 5000}
	if opts := cfg.SessionOptions(); len(opts) != 1 {
		t.Fatalf("expected one option with TTL set, got %d", len(opts))
	}
}
