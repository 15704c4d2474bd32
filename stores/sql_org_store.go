package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"

	tenancy "github.com/prashantrr143/bhoomi-tenancy"
)

// SQLOrgStore persists the organization directory in SQL (squealx).
// Membership listing order is the rowid insertion order, which keeps
// AccountsForPrincipal stable across calls.
type SQLOrgStore struct {
	db *squealx.DB
}

func NewSQLOrgStore(db *squealx.DB) *SQLOrgStore {
	return &SQLOrgStore{db: db}
}

func (s *SQLOrgStore) PutOrganization(ctx context.Context, org *tenancy.Organization) error {
	if org == nil || org.ID == "" {
		return fmt.Errorf("organization id is required")
	}
	createdAt := org.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	policies, _ := json.Marshal(org.EnabledPolicyTypes)
	q := `INSERT INTO organizations(id, name, master_account_id, policy_types_json, status, created_at)
	      VALUES(:id, :name, :master_account_id, :policy_types_json, :status, :created_at)
	      ON CONFLICT(id) DO UPDATE SET name=excluded.name, master_account_id=excluded.master_account_id,
	      policy_types_json=excluded.policy_types_json, status=excluded.status`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":                org.ID,
		"name":              org.Name,
		"master_account_id": org.MasterAccountID,
		"policy_types_json": string(policies),
		"status":            string(org.Status),
		"created_at":        createdAt,
	})
	return err
}

func (s *SQLOrgStore) PutRoot(ctx context.Context, root *tenancy.OrganizationRoot) error {
	if root == nil || root.OrganizationID == "" {
		return fmt.Errorf("root organization id is required")
	}
	q := `INSERT INTO organization_roots(id, organization_id, name)
	      VALUES(:id, :organization_id, :name)
	      ON CONFLICT(organization_id) DO UPDATE SET id=excluded.id, name=excluded.name`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":              root.ID,
		"organization_id": root.OrganizationID,
		"name":            root.Name,
	})
	return err
}

func (s *SQLOrgStore) PutOU(ctx context.Context, ou *tenancy.OrganizationalUnit) error {
	if ou == nil || ou.ID == "" {
		return fmt.Errorf("ou id is required")
	}
	q := `INSERT INTO org_units(id, organization_id, parent_id, name, status)
	      VALUES(:id, :organization_id, :parent_id, :name, :status)
	      ON CONFLICT(id) DO UPDATE SET organization_id=excluded.organization_id,
	      parent_id=excluded.parent_id, name=excluded.name, status=excluded.status`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":              ou.ID,
		"organization_id": ou.OrganizationID,
		"parent_id":       ou.ParentID,
		"name":            ou.Name,
		"status":          string(ou.Status),
	})
	return err
}

func (s *SQLOrgStore) PutAccount(ctx context.Context, account *tenancy.Account) error {
	if account == nil || account.ID == "" {
		return fmt.Errorf("account id is required")
	}
	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	tags, _ := json.Marshal(account.Tags)
	q := `INSERT INTO accounts(id, organization_id, parent_id, name, email, status, tags_json, created_at)
	      VALUES(:id, :organization_id, :parent_id, :name, :email, :status, :tags_json, :created_at)
	      ON CONFLICT(id) DO UPDATE SET organization_id=excluded.organization_id, parent_id=excluded.parent_id,
	      name=excluded.name, email=excluded.email, status=excluded.status, tags_json=excluded.tags_json`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":              account.ID,
		"organization_id": account.OrganizationID,
		"parent_id":       account.ParentID,
		"name":            account.Name,
		"email":           account.Email,
		"status":          string(account.Status),
		"tags_json":       string(tags),
		"created_at":      createdAt,
	})
	return err
}

func (s *SQLOrgStore) PutMember(ctx context.Context, member *tenancy.AccountMember) error {
	if member == nil || member.PrincipalID == "" || member.AccountID == "" {
		return fmt.Errorf("member principal id and account id are required")
	}
	addedAt := member.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}
	// permissions are an ordered JSON array; order is the evaluation order
	permissions, _ := json.Marshal(member.Permissions)
	q := `INSERT INTO account_members(id, principal_id, account_id, role, permissions_json, is_default, added_by, added_at)
	      VALUES(:id, :principal_id, :account_id, :role, :permissions_json, :is_default, :added_by, :added_at)
	      ON CONFLICT(principal_id, account_id) DO UPDATE SET id=excluded.id, role=excluded.role,
	      permissions_json=excluded.permissions_json, is_default=excluded.is_default, added_by=excluded.added_by`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":               member.ID,
		"principal_id":     member.PrincipalID,
		"account_id":       member.AccountID,
		"role":             string(member.Role),
		"permissions_json": string(permissions),
		"is_default":       boolToInt(member.IsDefault),
		"added_by":         member.AddedBy,
		"added_at":         addedAt,
	})
	return err
}

func (s *SQLOrgStore) AccountsForPrincipal(ctx context.Context, principalID string) ([]*tenancy.Account, error) {
	q := `SELECT a.id, a.organization_id, a.parent_id, a.name, a.email, a.status, a.tags_json, a.created_at
	      FROM account_members m JOIN accounts a ON a.id = m.account_id
	      WHERE m.principal_id = :principal_id ORDER BY m.rowid ASC`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"principal_id": principalID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*tenancy.Account, 0)
	for r.Next() {
		account, err := scanAccount(r)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, nil
}

func (s *SQLOrgStore) OrganizationByID(ctx context.Context, id string) (*tenancy.Organization, error) {
	q := `SELECT id, name, master_account_id, policy_types_json, status, created_at FROM organizations WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("organization %s: %w", id, tenancy.ErrNotFound)
	}
	var idv, name, master, policiesJSON, status string
	var createdRaw interface{}
	if err := r.Scan(&idv, &name, &master, &policiesJSON, &status, &createdRaw); err != nil {
		return nil, err
	}
	org := &tenancy.Organization{
		ID:              idv,
		Name:            name,
		MasterAccountID: master,
		Status:          tenancy.OrgStatus(status),
		CreatedAt:       scanTime(createdRaw),
	}
	_ = json.Unmarshal([]byte(policiesJSON), &org.EnabledPolicyTypes)
	return org, nil
}

func (s *SQLOrgStore) AccountByID(ctx context.Context, id string) (*tenancy.Account, error) {
	q := `SELECT id, organization_id, parent_id, name, email, status, tags_json, created_at FROM accounts WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("account %s: %w", id, tenancy.ErrNotFound)
	}
	return scanAccount(r)
}

func (s *SQLOrgStore) Membership(ctx context.Context, principalID, accountID string) (*tenancy.AccountMember, error) {
	q := `SELECT id, principal_id, account_id, role, permissions_json, is_default, added_by, added_at
	      FROM account_members WHERE principal_id = :principal_id AND account_id = :account_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"principal_id": principalID, "account_id": accountID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("membership %s/%s: %w", principalID, accountID, tenancy.ErrNotFound)
	}
	return scanMember(r)
}

func (s *SQLOrgStore) DefaultAccount(ctx context.Context, principalID string) (*tenancy.Account, error) {
	q := `SELECT a.id, a.organization_id, a.parent_id, a.name, a.email, a.status, a.tags_json, a.created_at
	      FROM account_members m JOIN accounts a ON a.id = m.account_id
	      WHERE m.principal_id = :principal_id AND m.is_default = 1 ORDER BY m.rowid ASC LIMIT 1`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"principal_id": principalID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("default account for %s: %w", principalID, tenancy.ErrNotFound)
	}
	return scanAccount(r)
}

func (s *SQLOrgStore) OrganizationRoot(ctx context.Context, orgID string) (*tenancy.OrganizationRoot, error) {
	q := `SELECT id, organization_id, name FROM organization_roots WHERE organization_id = :organization_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"organization_id": orgID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("root for organization %s: %w", orgID, tenancy.ErrNotFound)
	}
	root := &tenancy.OrganizationRoot{}
	if err := r.Scan(&root.ID, &root.OrganizationID, &root.Name); err != nil {
		return nil, err
	}
	return root, nil
}

func (s *SQLOrgStore) ChildOUs(ctx context.Context, parentID string) ([]*tenancy.OrganizationalUnit, error) {
	q := `SELECT id, organization_id, parent_id, name, status FROM org_units WHERE parent_id = :parent_id ORDER BY rowid ASC`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"parent_id": parentID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*tenancy.OrganizationalUnit, 0)
	for r.Next() {
		ou := &tenancy.OrganizationalUnit{}
		var status string
		if err := r.Scan(&ou.ID, &ou.OrganizationID, &ou.ParentID, &ou.Name, &status); err != nil {
			return nil, err
		}
		ou.Status = tenancy.OUStatus(status)
		out = append(out, ou)
	}
	return out, nil
}

func (s *SQLOrgStore) AccountsUnderOU(ctx context.Context, ouID string) ([]*tenancy.Account, error) {
	q := `SELECT id, organization_id, parent_id, name, email, status, tags_json, created_at
	      FROM accounts WHERE parent_id = :parent_id ORDER BY rowid ASC`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"parent_id": ouID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*tenancy.Account, 0)
	for r.Next() {
		account, err := scanAccount(r)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(r rowScanner) (*tenancy.Account, error) {
	var id, orgID, parentID, name, email, status, tagsJSON string
	var createdRaw interface{}
	if err := r.Scan(&id, &orgID, &parentID, &name, &email, &status, &tagsJSON, &createdRaw); err != nil {
		return nil, err
	}
	account := &tenancy.Account{
		ID:             id,
		OrganizationID: orgID,
		ParentID:       parentID,
		Name:           name,
		Email:          email,
		Status:         tenancy.AccountStatus(status),
		CreatedAt:      scanTime(createdRaw),
	}
	if tagsJSON != "" && tagsJSON != "null" {
		_ = json.Unmarshal([]byte(tagsJSON), &account.Tags)
	}
	return account, nil
}

func scanMember(r rowScanner) (*tenancy.AccountMember, error) {
	var id, principalID, accountID, role, permissionsJSON, addedBy string
	var isDefaultInt int
	var addedRaw interface{}
	if err := r.Scan(&id, &principalID, &accountID, &role, &permissionsJSON, &isDefaultInt, &addedBy, &addedRaw); err != nil {
		return nil, err
	}
	m := &tenancy.AccountMember{
		ID:          id,
		PrincipalID: principalID,
		AccountID:   accountID,
		Role:        tenancy.Role(role),
		IsDefault:   isDefaultInt != 0,
		AddedBy:     addedBy,
		AddedAt:     scanTime(addedRaw),
	}
	_ = json.Unmarshal([]byte(permissionsJSON), &m.Permissions)
	return m, nil
}
