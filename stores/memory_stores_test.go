package stores

import (
	"context"
	"testing"

	tenancy "github.com/prashantrr143/bhoomi-tenancy"
)

func seedMemoryStore(t *testing.T) *MemoryOrgStore {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryOrgStore()

	if err := s.PutOrganization(ctx, &tenancy.Organization{ID: "org-1", Name: "Acme", MasterAccountID: "acct-1", Status: tenancy.OrgActive}); err != nil {
		t.Fatalf("put organization: %v", err)
	}
	if err := s.PutRoot(ctx, &tenancy.OrganizationRoot{ID: "r-1", OrganizationID: "org-1", Name: "Root"}); err != nil {
		t.Fatalf("put root: %v", err)
	}
	if err := s.PutOU(ctx, &tenancy.OrganizationalUnit{ID: "ou-1", OrganizationID: "org-1", ParentID: "r-1", Name: "Prod", Status: tenancy.OUActive}); err != nil {
		t.Fatalf("put ou: %v", err)
	}
	for _, account := range []*tenancy.Account{
		{ID: "acct-1", OrganizationID: "org-1", ParentID: "r-1", Name: "One", Status: tenancy.AccountActive, Tags: map[string]string{"env": "prod"}},
		{ID: "acct-2", OrganizationID: "org-1", ParentID: "ou-1", Name: "Two", Status: tenancy.AccountActive},
	} {
		if err := s.PutAccount(ctx, account); err != nil {
			t.Fatalf("put account: %v", err)
		}
	}
	for _, m := range []*tenancy.AccountMember{
		{ID: "m-1", PrincipalID: "user-1", AccountID: "acct-1", Role: tenancy.RoleAccountAdmin,
			Permissions: []tenancy.Statement{{Effect: tenancy.EffectAllow, Actions: []string{"*:*"}}}},
		{ID: "m-2", PrincipalID: "user-1", AccountID: "acct-2", Role: tenancy.RoleReadOnly, IsDefault: true},
	} {
		if err := s.PutMember(ctx, m); err != nil {
			t.Fatalf("put member: %v", err)
		}
	}
	return s
}

func TestMemoryOrgStoreLookups(t *testing.T) {
	s := seedMemoryStore(t)
	ctx := context.Background()

	org, err := s.OrganizationByID(ctx, "org-1")
	if err != nil || org.Name != "Acme" {
		t.Fatalf("organization: %+v err=%v", org, err)
	}
	if _, err := s.OrganizationByID(ctx, "org-missing"); !tenancy.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}

	account, err := s.AccountByID(ctx, "acct-1")
	if err != nil || account.Tags["env"] != "prod" {
		t.Fatalf("account: %+v err=%v", account, err)
	}
	if _, err := s.AccountByID(ctx, "acct-missing"); !tenancy.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}

	m, err := s.Membership(ctx, "user-1", "acct-1")
	if err != nil || m.Role != tenancy.RoleAccountAdmin {
		t.Fatalf("membership: %+v err=%v", m, err)
	}
	if _, err := s.Membership(ctx, "user-2", "acct-1"); !tenancy.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}

	root, err := s.OrganizationRoot(ctx, "org-1")
	if err != nil || root.ID != "r-1" {
		t.Fatalf("root: %+v err=%v", root, err)
	}
}

func TestMemoryOrgStoreListingOrder(t *testing.T) {
	s := seedMemoryStore(t)
	ctx := context.Background()

	accounts, err := s.AccountsForPrincipal(ctx, "user-1")
	if err != nil {
		t.Fatalf("accounts for principal: %v", err)
	}
	if len(accounts) != 2 || accounts[0].ID != "acct-1" || accounts[1].ID != "acct-2" {
		t.Fatalf("expected membership insertion order, got %+v", accounts)
	}

	// re-putting a member keeps its position
	m, _ := s.Membership(ctx, "user-1", "acct-1")
	m.Role = tenancy.RolePowerUser
	if err := s.PutMember(ctx, m); err != nil {
		t.Fatalf("put member: %v", err)
	}
	accounts, _ = s.AccountsForPrincipal(ctx, "user-1")
	if accounts[0].ID != "acct-1" {
		t.Fatalf("update must not reorder listings, got %+v", accounts)
	}

	def, err := s.DefaultAccount(ctx, "user-1")
	if err != nil || def.ID != "acct-2" {
		t.Fatalf("default account: %+v err=%v", def, err)
	}
	if _, err := s.DefaultAccount(ctx, "user-2"); !tenancy.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestMemoryOrgStoreHandsOutClones(t *testing.T) {
	s := seedMemoryStore(t)
	ctx := context.Background()

	account, _ := s.AccountByID(ctx, "acct-1")
	account.Tags["env"] = "hacked"
	account.Name = "Hacked"

	fresh, _ := s.AccountByID(ctx, "acct-1")
	if fresh.Tags["env"] != "prod" || fresh.Name != "One" {
		t.Fatalf("store state mutated through a returned record: %+v", fresh)
	}

	m, _ := s.Membership(ctx, "user-1", "acct-1")
	m.Permissions[0].Actions[0] = "nothing:*"
	freshM, _ := s.Membership(ctx, "user-1", "acct-1")
	if freshM.Permissions[0].Actions[0] != "*:*" {
		t.Fatalf("statements mutated through a returned record: %+v", freshM.Permissions)
	}
}

func TestMemoryOrgStoreTreeQueries(t *testing.T) {
	s := seedMemoryStore(t)
	ctx := context.Background()

	ous, err := s.ChildOUs(ctx, "r-1")
	if err != nil || len(ous) != 1 || ous[0].ID != "ou-1" {
		t.Fatalf("child OUs: %+v err=%v", ous, err)
	}
	accounts, err := s.AccountsUnderOU(ctx, "ou-1")
	if err != nil || len(accounts) != 1 || accounts[0].ID != "acct-2" {
		t.Fatalf("accounts under OU: %+v err=%v", accounts, err)
	}
}

func TestMemoryOrgStoreSnapshot(t *testing.T) {
	s := seedMemoryStore(t)
	ctx := context.Background()

	snap, err := s.Snapshot(ctx, "org-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Organization.ID != "org-1" || snap.Root.ID != "r-1" {
		t.Fatalf("snapshot header: %+v", snap)
	}
	if len(snap.Units) != 1 || len(snap.Accounts) != 2 || len(snap.Members) != 2 {
		t.Fatalf("snapshot contents: units=%d accounts=%d members=%d",
			len(snap.Units), len(snap.Accounts), len(snap.Members))
	}

	if _, err := s.Snapshot(ctx, "org-missing"); !tenancy.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	if _, err := kv.Get(ctx, "k"); err == nil {
		t.Fatalf("expected not-found for absent key")
	}
	if err := kv.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, err := kv.Get(ctx, "k")
	if err != nil || value != "v" {
		t.Fatalf("get: %q err=%v", value, err)
	}
	if err := kv.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := kv.Get(ctx, "k"); err == nil {
		t.Fatalf("expected not-found after delete")
	}
}
