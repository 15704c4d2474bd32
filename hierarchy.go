package tenancy

import (
	"context"
	"fmt"
)

// ============================================================================
// ORGANIZATION HIERARCHY
// ============================================================================

// Hierarchy provides read-only traversal helpers over an organization's
// OU/account tree. All methods are pass-through or walk operations against
// the underlying store; empty inputs yield empty slices.
type Hierarchy struct {
	store OrgStore
}

func NewHierarchy(store OrgStore) *Hierarchy {
	return &Hierarchy{store: store}
}

// ChildOUs returns the OUs whose parent is parentID (root id or OU id).
// Direct children only, no recursion.
func (h *Hierarchy) ChildOUs(ctx context.Context, parentID string) ([]*OrganizationalUnit, error) {
	return h.store.ChildOUs(ctx, parentID)
}

// AccountsUnderOU returns the accounts whose parent is ouID. Direct
// children only, not a subtree walk.
func (h *Hierarchy) AccountsUnderOU(ctx context.Context, ouID string) ([]*Account, error) {
	return h.store.AccountsUnderOU(ctx, ouID)
}

// OUsForOrganization collects every OU belonging to the organization by
// walking the tree breadth-first from the organization root through
// ChildOUs. Results come back in walk order (parents before children).
func (h *Hierarchy) OUsForOrganization(ctx context.Context, org *Organization) ([]*OrganizationalUnit, error) {
	if org == nil {
		return []*OrganizationalUnit{}, nil
	}
	root, err := h.store.OrganizationRoot(ctx, org.ID)
	if err != nil {
		if IsNotFound(err) {
			return []*OrganizationalUnit{}, nil
		}
		return nil, fmt.Errorf("organization root for %s: %w", org.ID, err)
	}

	out := make([]*OrganizationalUnit, 0)
	queue := []string{root.ID}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		children, err := h.store.ChildOUs(ctx, parent)
		if err != nil {
			return nil, fmt.Errorf("child OUs of %s: %w", parent, err)
		}
		for _, ou := range children {
			out = append(out, ou)
			queue = append(queue, ou.ID)
		}
	}
	return out, nil
}

// AccountsInSubtree collects every account under parentID (root id or OU
// id), including accounts of all descendant OUs, in walk order.
func (h *Hierarchy) AccountsInSubtree(ctx context.Context, parentID string) ([]*Account, error) {
	out := make([]*Account, 0)
	queue := []string{parentID}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		accounts, err := h.store.AccountsUnderOU(ctx, parent)
		if err != nil {
			return nil, fmt.Errorf("accounts under %s: %w", parent, err)
		}
		out = append(out, accounts...)
		children, err := h.store.ChildOUs(ctx, parent)
		if err != nil {
			return nil, fmt.Errorf("child OUs of %s: %w", parent, err)
		}
		for _, ou := range children {
			queue = append(queue, ou.ID)
		}
	}
	return out, nil
}
