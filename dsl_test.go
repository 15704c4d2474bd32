package tenancy

import (
	"strings"
	"testing"
)

const sampleDSL = `# acme directory
organization org-1 "Acme Corp" master:acct-mgmt status:ACTIVE policies:SERVICE_CONTROL
root r-1 org-1 "Root"
ou ou-prod org-1 r-1 "Production" status:ACTIVE
account acct-mgmt org-1 r-1 "Management"
account acct-prod org-1 ou-prod "Prod Workloads" email:prod@acme.example tags:env=prod,team=core

member m-1 user-1 acct-prod DEVELOPER default added-by:admin-1
grant user-1 acct-prod deny iam:*
grant user-1 acct-prod allow *:* arn:bhoomi:*

session cache_ttl=5000 counters=1000
`

func TestDSLParse(t *testing.T) {
	cfg, err := NewDSLParser().Parse([]byte(sampleDSL))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(cfg.Organizations) != 1 {
		t.Fatalf("expected 1 organization, got %d", len(cfg.Organizations))
	}
	org := cfg.Organizations[0]
	if org.Name != "Acme Corp" || org.MasterAccountID != "acct-mgmt" {
		t.Fatalf("organization fields: %+v", org)
	}
	if len(org.EnabledPolicyTypes) != 1 || org.EnabledPolicyTypes[0] != "SERVICE_CONTROL" {
		t.Fatalf("policy types: %v", org.EnabledPolicyTypes)
	}

	if len(cfg.Roots) != 1 || cfg.Roots[0].OrganizationID != "org-1" {
		t.Fatalf("roots: %+v", cfg.Roots)
	}
	if len(cfg.Units) != 1 || cfg.Units[0].ParentID != "r-1" {
		t.Fatalf("units: %+v", cfg.Units)
	}

	if len(cfg.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(cfg.Accounts))
	}
	prod := cfg.Accounts[1]
	if prod.Name != "Prod Workloads" || prod.Email != "prod@acme.example" {
		t.Fatalf("account fields: %+v", prod)
	}
	if prod.Tags["env"] != "prod" || prod.Tags["team"] != "core" {
		t.Fatalf("account tags: %v", prod.Tags)
	}

	if len(cfg.Members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(cfg.Members))
	}
	m := cfg.Members[0]
	if m.Role != RoleDeveloper || !m.IsDefault || m.AddedBy != "admin-1" {
		t.Fatalf("member fields: %+v", m)
	}
	// grant file order is the statement evaluation order
	if len(m.Permissions) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(m.Permissions))
	}
	if m.Permissions[0].Effect != EffectDeny || m.Permissions[0].Actions[0] != "iam:*" {
		t.Fatalf("first statement: %+v", m.Permissions[0])
	}
	if m.Permissions[1].Effect != EffectAllow || m.Permissions[1].Resources[0] != "arn:bhoomi:*" {
		t.Fatalf("second statement: %+v", m.Permissions[1])
	}

	if cfg.Session.DecisionCacheTTL != 5000 || cfg.Session.RistrettoNumCounter != 1000 {
		t.Fatalf("session settings: %+v", cfg.Session)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("parsed config should validate: %v", err)
	}
}

func TestDSLGrantBeforeMember(t *testing.T) {
	input := `organization org-1 "Acme"
root r-1 org-1 "Root"
account acct-1 org-1 r-1 "One"
grant user-1 acct-1 allow *:*
member m-1 user-1 acct-1 DEVELOPER
`
	_, err := NewDSLParser().Parse([]byte(input))
	if err == nil {
		t.Fatalf("grant before member declaration must fail")
	}
	if !strings.Contains(err.Error(), "line 4") {
		t.Fatalf("expected failing line number in error, got %v", err)
	}
}

func TestDSLUnknownDirective(t *testing.T) {
	_, err := NewDSLParser().Parse([]byte("tenant t-1 \"Acme\"\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown directive") {
		t.Fatalf("expected unknown directive error, got %v", err)
	}
}

func TestDSLRoundtrip(t *testing.T) {
	cfg, err := NewDSLParser().Parse([]byte(sampleDSL))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	encoded, err := NewDSLEncoder().Encode(cfg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := NewDSLParser().Parse(encoded)
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, encoded)
	}

	if len(back.Organizations) != 1 || back.Organizations[0].Name != "Acme Corp" {
		t.Fatalf("organizations lost in roundtrip: %+v", back.Organizations)
	}
	if len(back.Accounts) != 2 || back.Accounts[1].Tags["env"] != "prod" {
		t.Fatalf("accounts lost in roundtrip: %+v", back.Accounts[1])
	}
	if len(back.Members) != 1 || len(back.Members[0].Permissions) != 2 {
		t.Fatalf("members lost in roundtrip: %+v", back.Members)
	}
	if back.Members[0].Permissions[0].Effect != EffectDeny {
		t.Fatalf("statement order lost in roundtrip: %+v", back.Members[0].Permissions)
	}
	if back.Session.DecisionCacheTTL != 5000 {
		t.Fatalf("session settings lost in roundtrip: %+v", back.Session)
	}
}

func TestDSLQuotedNamesWithSpaces(t *testing.T) {
	input := `organization org-1 "Name With  Spaces" master:acct-1
root r-1 org-1 "The Root"
`
	cfg, err := NewDSLParser().Parse([]byte(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Organizations[0].Name != "Name With  Spaces" {
		t.Fatalf("quoted name mangled: %q", cfg.Organizations[0].Name)
	}
	if cfg.Roots[0].Name != "The Root" {
		t.Fatalf("quoted name mangled: %q", cfg.Roots[0].Name)
	}
}
