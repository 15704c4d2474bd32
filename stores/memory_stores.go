package stores

import (
	"context"
	"fmt"
	"sync"
	"time"

	tenancy "github.com/prashantrr143/bhoomi-tenancy"
)

// MemoryOrgStore implements organization directory persistence in-memory
// for testing/demo. Membership insertion order is preserved so that
// AccountsForPrincipal returns a stable listing.
type MemoryOrgStore struct {
	mu           sync.RWMutex
	orgs         map[string]*tenancy.Organization
	roots        map[string]*tenancy.OrganizationRoot // keyed by organization id
	units        map[string]*tenancy.OrganizationalUnit
	unitOrder    []string
	accounts     map[string]*tenancy.Account
	accountOrder []string
	members      map[string]*tenancy.AccountMember // keyed by principal\x00account
	memberOrder  []string
}

func NewMemoryOrgStore() *MemoryOrgStore {
	return &MemoryOrgStore{
		orgs:     make(map[string]*tenancy.Organization),
		roots:    make(map[string]*tenancy.OrganizationRoot),
		units:    make(map[string]*tenancy.OrganizationalUnit),
		accounts: make(map[string]*tenancy.Account),
		members:  make(map[string]*tenancy.AccountMember),
	}
}

func memberKey(principalID, accountID string) string {
	return principalID + "\x00" + accountID
}

func (s *MemoryOrgStore) PutOrganization(ctx context.Context, org *tenancy.Organization) error {
	if org == nil || org.ID == "" {
		return fmt.Errorf("organization id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := org.Clone()
	if dup.CreatedAt.IsZero() {
		dup.CreatedAt = time.Now()
	}
	s.orgs[org.ID] = dup
	return nil
}

func (s *MemoryOrgStore) PutRoot(ctx context.Context, root *tenancy.OrganizationRoot) error {
	if root == nil || root.OrganizationID == "" {
		return fmt.Errorf("root organization id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *root
	s.roots[root.OrganizationID] = &dup
	return nil
}

func (s *MemoryOrgStore) PutOU(ctx context.Context, ou *tenancy.OrganizationalUnit) error {
	if ou == nil || ou.ID == "" {
		return fmt.Errorf("ou id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.units[ou.ID]; !exists {
		s.unitOrder = append(s.unitOrder, ou.ID)
	}
	s.units[ou.ID] = ou.Clone()
	return nil
}

func (s *MemoryOrgStore) PutAccount(ctx context.Context, account *tenancy.Account) error {
	if account == nil || account.ID == "" {
		return fmt.Errorf("account id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := account.Clone()
	if dup.CreatedAt.IsZero() {
		dup.CreatedAt = time.Now()
	}
	if _, exists := s.accounts[account.ID]; !exists {
		s.accountOrder = append(s.accountOrder, account.ID)
	}
	s.accounts[account.ID] = dup
	return nil
}

func (s *MemoryOrgStore) PutMember(ctx context.Context, member *tenancy.AccountMember) error {
	if member == nil || member.PrincipalID == "" || member.AccountID == "" {
		return fmt.Errorf("member principal id and account id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := member.Clone()
	if dup.AddedAt.IsZero() {
		dup.AddedAt = time.Now()
	}
	key := memberKey(member.PrincipalID, member.AccountID)
	if _, exists := s.members[key]; !exists {
		s.memberOrder = append(s.memberOrder, key)
	}
	s.members[key] = dup
	return nil
}

func (s *MemoryOrgStore) AccountsForPrincipal(ctx context.Context, principalID string) ([]*tenancy.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*tenancy.Account, 0)
	for _, key := range s.memberOrder {
		m := s.members[key]
		if m.PrincipalID != principalID {
			continue
		}
		if account, ok := s.accounts[m.AccountID]; ok {
			result = append(result, account.Clone())
		}
	}
	return result, nil
}

func (s *MemoryOrgStore) OrganizationByID(ctx context.Context, id string) (*tenancy.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", id, tenancy.ErrNotFound)
	}
	return org.Clone(), nil
}

func (s *MemoryOrgStore) AccountByID(ctx context.Context, id string) (*tenancy.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, tenancy.ErrNotFound)
	}
	return account.Clone(), nil
}

func (s *MemoryOrgStore) Membership(ctx context.Context, principalID, accountID string) (*tenancy.AccountMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey(principalID, accountID)]
	if !ok {
		return nil, fmt.Errorf("membership %s/%s: %w", principalID, accountID, tenancy.ErrNotFound)
	}
	return m.Clone(), nil
}

func (s *MemoryOrgStore) DefaultAccount(ctx context.Context, principalID string) (*tenancy.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.memberOrder {
		m := s.members[key]
		if m.PrincipalID != principalID || !m.IsDefault {
			continue
		}
		if account, ok := s.accounts[m.AccountID]; ok {
			return account.Clone(), nil
		}
	}
	return nil, fmt.Errorf("default account for %s: %w", principalID, tenancy.ErrNotFound)
}

func (s *MemoryOrgStore) OrganizationRoot(ctx context.Context, orgID string) (*tenancy.OrganizationRoot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	root, ok := s.roots[orgID]
	if !ok {
		return nil, fmt.Errorf("root for organization %s: %w", orgID, tenancy.ErrNotFound)
	}
	dup := *root
	return &dup, nil
}

func (s *MemoryOrgStore) ChildOUs(ctx context.Context, parentID string) ([]*tenancy.OrganizationalUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*tenancy.OrganizationalUnit, 0)
	for _, id := range s.unitOrder {
		ou := s.units[id]
		if ou.ParentID == parentID {
			result = append(result, ou.Clone())
		}
	}
	return result, nil
}

func (s *MemoryOrgStore) AccountsUnderOU(ctx context.Context, ouID string) ([]*tenancy.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*tenancy.Account, 0)
	for _, id := range s.accountOrder {
		account := s.accounts[id]
		if account.ParentID == ouID {
			result = append(result, account.Clone())
		}
	}
	return result, nil
}

// Snapshot exports one organization's directory for distribution.
func (s *MemoryOrgStore) Snapshot(ctx context.Context, orgID string) (*tenancy.DirectorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[orgID]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", orgID, tenancy.ErrNotFound)
	}
	snap := &tenancy.DirectorySnapshot{Organization: org.Clone()}
	if root, ok := s.roots[orgID]; ok {
		dup := *root
		snap.Root = &dup
	}
	for _, id := range s.unitOrder {
		if ou := s.units[id]; ou.OrganizationID == orgID {
			snap.Units = append(snap.Units, ou.Clone())
		}
	}
	inOrg := make(map[string]bool)
	for _, id := range s.accountOrder {
		if account := s.accounts[id]; account.OrganizationID == orgID {
			snap.Accounts = append(snap.Accounts, account.Clone())
			inOrg[account.ID] = true
		}
	}
	for _, key := range s.memberOrder {
		if m := s.members[key]; inOrg[m.AccountID] {
			snap.Members = append(snap.Members, m.Clone())
		}
	}
	return snap, nil
}

// MemoryKV implements session persistence in-memory.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (s *MemoryKV) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, tenancy.ErrKeyNotFound)
	}
	return value, nil
}

func (s *MemoryKV) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryKV) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
